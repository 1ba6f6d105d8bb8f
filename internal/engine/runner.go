package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/recurring-server/internal/recurrence"
	"github.com/carson-networks/recurring-server/internal/storage/ledger"
	"github.com/carson-networks/recurring-server/internal/storage/rulestore"
)

// Runner orchestrates scheduling passes. It is stateless between passes:
// the instant to run against is a parameter, never the wall clock, and all
// schedule state lives in the rule store. Concurrent runners (another
// process, another device) are safe; per-rule versioned advances serialize
// them.
type Runner struct {
	rules         rulestore.IRuleStore
	materializer  *Materializer
	logger        *logrus.Logger
	catchUpCap    int
	catchUpWindow time.Duration
}

func NewRunner(rules rulestore.IRuleStore, sink ledger.ILedgerTable, logger *logrus.Logger, catchUpCap int, catchUpWindow time.Duration) *Runner {
	if catchUpCap < 1 {
		catchUpCap = 1
	}
	return &Runner{
		rules:         rules,
		materializer:  NewMaterializer(rules, sink, logger),
		logger:        logger,
		catchUpCap:    catchUpCap,
		catchUpWindow: catchUpWindow,
	}
}

// RunPass materializes every occurrence due at now, rule by rule. Rules are
// independent: a failure on one is recorded and the pass moves on. The pass
// may be cancelled between rules; a single advance+append is the atomic
// unit and is never interrupted by cancellation checks.
func (r *Runner) RunPass(ctx context.Context, now time.Time) (*PassReport, error) {
	report := &PassReport{StartedAt: now}

	due, err := r.rules.LoadDueRules(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("load due rules: %w", err)
	}
	report.RulesDue = len(due)

	for _, rule := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		r.runRule(ctx, rule, now, report)
	}

	r.logger.WithFields(logrus.Fields{
		"rulesDue":     report.RulesDue,
		"materialized": report.Materialized,
		"truncations":  len(report.Truncations),
		"errors":       len(report.Errors),
	}).Info("SchedulerRunner.RunPass.complete")

	return report, nil
}

func (r *Runner) runRule(ctx context.Context, rule *rulestore.RecurringRule, now time.Time, report *PassReport) {
	for i := 0; ; i++ {
		if !isDue(rule, now) {
			return
		}
		if i >= r.catchUpCap {
			r.truncateBacklog(ctx, rule, now, report)
			return
		}

		appended, err := r.materializer.MaterializeNext(ctx, rule, now)
		if appended {
			report.Materialized++
		}
		if err == nil {
			continue
		}

		var sinkErr *SinkError
		switch {
		case errors.As(err, &sinkErr):
			// Rule already advanced; the occurrence is lost and must be
			// surfaced. Scheduling continues from the advanced state.
			occ := sinkErr.Occurrence
			report.Errors = append(report.Errors, RuleError{
				RuleID:     rule.ID,
				Stage:      "sink",
				Occurrence: &occ,
				Message:    sinkErr.Error(),
			})
		case errors.Is(err, rulestore.ErrVersionConflict):
			// Transient; the next pass picks the rule up again.
			return
		default:
			report.Errors = append(report.Errors, RuleError{
				RuleID:  rule.ID,
				Stage:   "materialize",
				Message: err.Error(),
			})
			r.logger.WithError(err).WithFields(logrus.Fields{
				"ruleID": rule.ID,
			}).Error("SchedulerRunner.RunPass.ruleFailed")
			return
		}
	}
}

// truncateBacklog jumps a rule whose backlog exceeded the cap to the first
// occurrence inside the catch-up window, without materializing the skipped
// occurrences. The skip is reported, not fatal: the rule schedules normally
// from the new point.
func (r *Runner) truncateBacklog(ctx context.Context, rule *rulestore.RecurringRule, now time.Time, report *PassReport) {
	resumeAfter := now.Add(-r.catchUpWindow)
	newNext := recurrence.Next(rule.AnchorDate, rule.Frequency, rule.Interval, resumeAfter)
	if !newNext.After(rule.NextExecution) {
		// The remaining backlog is already inside the window; leave it for
		// the next pass rather than skipping anything.
		return
	}

	eps := time.Nanosecond
	skipped := recurrence.IndexAfter(rule.AnchorDate, rule.Frequency, rule.Interval, newNext.Add(-eps)) -
		recurrence.IndexAfter(rule.AnchorDate, rule.Frequency, rule.Interval, rule.NextExecution.Add(-eps))

	if err := r.rules.CommitAdvance(ctx, rule.ID, rule.Version, newNext, rule.LastMaterialized); err != nil {
		if errors.Is(err, rulestore.ErrVersionConflict) {
			return
		}
		report.Errors = append(report.Errors, RuleError{
			RuleID:  rule.ID,
			Stage:   "truncate",
			Message: err.Error(),
		})
		return
	}
	rule.NextExecution = newNext
	rule.Version++

	report.Truncations = append(report.Truncations, Truncation{
		RuleID:    rule.ID,
		Skipped:   skipped,
		ResumedAt: newNext,
	})
	r.logger.WithFields(logrus.Fields{
		"ruleID":    rule.ID,
		"skipped":   skipped,
		"resumedAt": newNext.Format(time.RFC3339),
	}).Warn("SchedulerRunner.RunPass.catchUpTruncated")
}
