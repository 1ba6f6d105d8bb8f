package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/recurring-server/internal/recurrence"
	"github.com/carson-networks/recurring-server/internal/storage/ledger"
	"github.com/carson-networks/recurring-server/internal/storage/rulestore"
)

// amounts are stored in currency minor units; the ledger takes decimals.
const minorUnitExponent = -2

// SinkError reports a ledger append that failed after the rule was already
// advanced. The occurrence is permanently skipped.
type SinkError struct {
	RuleID     uuid.UUID
	Occurrence time.Time
	Err        error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("ledger append failed for rule %s occurrence %s: %v",
		e.RuleID, e.Occurrence.Format(time.RFC3339), e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Materializer turns one due occurrence into a ledger transaction and
// advances the rule's schedule state. The protocol is advance-then-append:
// the rule's CAS advance commits before the ledger write, so a crash in
// between skips the occurrence instead of duplicating it.
type Materializer struct {
	rules  rulestore.IRuleStore
	sink   ledger.ILedgerTable
	logger *logrus.Logger
}

func NewMaterializer(rules rulestore.IRuleStore, sink ledger.ILedgerTable, logger *logrus.Logger) *Materializer {
	return &Materializer{
		rules:  rules,
		sink:   sink,
		logger: logger,
	}
}

// MaterializeNext materializes the occurrence at rule.NextExecution and
// advances the rule in place. Returns whether a transaction was appended.
// A version conflict is retried once after reloading the rule; if the
// reloaded rule is no longer due the call is a no-op.
func (m *Materializer) MaterializeNext(ctx context.Context, rule *rulestore.RecurringRule, now time.Time) (bool, error) {
	if !isDue(rule, now) {
		return false, nil
	}

	appended, err := m.materializeOnce(ctx, rule)
	if !errors.Is(err, rulestore.ErrVersionConflict) {
		return appended, err
	}

	// Another writer advanced the rule. Reload and retry once; contention
	// is expected to be rare (one scheduler owner in the common case).
	m.logger.WithFields(logrus.Fields{
		"ruleID": rule.ID,
	}).Info("Materializer.MaterializeNext.conflictReload")

	fresh, ferr := m.rules.FindByID(ctx, rule.ID)
	if ferr != nil {
		return false, fmt.Errorf("reload rule %s after conflict: %w", rule.ID, ferr)
	}
	*rule = *fresh
	if !isDue(rule, now) {
		return false, nil
	}

	appended, err = m.materializeOnce(ctx, rule)
	if errors.Is(err, rulestore.ErrVersionConflict) {
		m.logger.WithFields(logrus.Fields{
			"ruleID": rule.ID,
		}).Warn("Materializer.MaterializeNext.conflictPersists")
	}
	return appended, err
}

func (m *Materializer) materializeOnce(ctx context.Context, rule *rulestore.RecurringRule) (bool, error) {
	occurrence := rule.NextExecution
	payload := buildPayload(rule)
	candidateNext := recurrence.Next(rule.AnchorDate, rule.Frequency, rule.Interval, occurrence)

	err := m.rules.CommitAdvance(ctx, rule.ID, rule.Version, candidateNext, &occurrence)
	if err != nil {
		return false, err
	}

	// Advance committed; keep the in-memory rule in step for the caller's
	// catch-up loop.
	rule.NextExecution = candidateNext
	rule.LastMaterialized = &occurrence
	rule.Version++

	if _, err := m.sink.Append(ctx, payload); err != nil {
		sinkErr := &SinkError{RuleID: rule.ID, Occurrence: occurrence, Err: err}
		m.logger.WithError(err).WithFields(logrus.Fields{
			"ruleID":     rule.ID,
			"occurrence": occurrence.Format(time.RFC3339),
		}).Error("Materializer.MaterializeNext.occurrenceSkipped")
		return false, sinkErr
	}

	return true, nil
}

func buildPayload(rule *rulestore.RecurringRule) *ledger.TransactionCreate {
	amount := decimal.New(rule.AmountMinorUnits, minorUnitExponent)
	if rule.Type == rulestore.RuleTypeExpense {
		amount = amount.Neg()
	}

	note := rule.Note
	if note == "" {
		note = "Recurring: " + rule.Name
	}

	ruleID := rule.ID
	return &ledger.TransactionCreate{
		AccountID:       rule.AccountID,
		CategoryID:      rule.CategoryID,
		Amount:          amount,
		TransactionName: rule.Name,
		TransactionDate: rule.NextExecution,
		Note:            note,
		RuleID:          &ruleID,
		RequestTag:      ProvenanceTag(rule.ID, rule.NextExecution),
	}
}

// ProvenanceTag is a deterministic tag identifying one nominal occurrence of
// one rule, stamped onto materialized transactions for traceability.
func ProvenanceTag(ruleID uuid.UUID, nominal time.Time) string {
	return fmt.Sprintf("rule/%s/occ/%s", ruleID, nominal.UTC().Format(time.RFC3339))
}

// isDue reports whether the rule's next occurrence should materialize at
// now. Expired rules never materialize, regardless of IsActive.
func isDue(rule *rulestore.RecurringRule, now time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if rule.NextExecution.After(now) {
		return false
	}
	if rule.EndDate != nil && rule.NextExecution.After(*rule.EndDate) {
		return false
	}
	return true
}
