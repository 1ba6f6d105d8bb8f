package operator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Loop triggers a scheduling pass on a fixed interval, and immediately when
// notified (e.g. right after a rule is created so its first occurrence does
// not wait for the next tick).
type Loop struct {
	delegator *Delegator
	interval  time.Duration
	logger    *logrus.Logger
	notifyCh  chan struct{}
}

func NewLoop(delegator *Delegator, interval time.Duration, logger *logrus.Logger) *Loop {
	return &Loop{
		delegator: delegator,
		interval:  interval,
		logger:    logger,
		notifyCh:  make(chan struct{}, 1),
	}
}

// Notify requests an immediate pass. Non-blocking if one is already pending.
func (l *Loop) Notify() {
	select {
	case l.notifyCh <- struct{}{}:
	default:
	}
}

func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("SchedulerLoop.Run.started")
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// First pass on startup drains anything that came due while the
	// process was down.
	l.trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("SchedulerLoop.Run.stopped")
			return
		case <-ticker.C:
			l.trigger(ctx)
		case <-l.notifyCh:
			l.trigger(ctx)
		}
	}
}

func (l *Loop) trigger(ctx context.Context) {
	report, err := l.delegator.RunPassNow(ctx)
	if err != nil {
		l.logger.WithError(err).Error("SchedulerLoop.trigger.passFailed")
		return
	}
	if len(report.Errors) > 0 || len(report.Truncations) > 0 {
		l.logger.WithFields(logrus.Fields{
			"materialized": report.Materialized,
			"truncations":  len(report.Truncations),
			"errors":       len(report.Errors),
		}).Warn("SchedulerLoop.trigger.passDegraded")
	}
}
