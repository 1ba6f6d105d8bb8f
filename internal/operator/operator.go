package operator

import (
	"context"

	"github.com/carson-networks/recurring-server/internal/clock"
	"github.com/carson-networks/recurring-server/internal/engine"
)

// Operator is the worker that executes queued scheduling passes one at a
// time. Serializing passes locally keeps version conflicts rare; the rule
// store's CAS still guards against other processes.
type Operator struct {
	runner *engine.Runner
	clock  clock.Clock
	queue  chan passItem
}

func NewOperator(runner *engine.Runner, clk clock.Clock, queue chan passItem) *Operator {
	return &Operator{
		runner: runner,
		clock:  clk,
		queue:  queue,
	}
}

// Run listens to the queue and processes items. Exits when the queue is closed.
func (o *Operator) Run() {
	for item := range o.queue {
		o.processItem(item)
	}
}

func (o *Operator) processItem(item passItem) {
	report, err := o.runner.RunPass(item.ctx, o.clock.Now())
	item.response <- passResponse{report: report, err: err}
}

type passItem struct {
	ctx      context.Context
	response chan passResponse
}

type passResponse struct {
	report *engine.PassReport
	err    error
}
