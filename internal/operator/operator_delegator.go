package operator

import (
	"context"
	"sync"

	"github.com/carson-networks/recurring-server/internal/clock"
	"github.com/carson-networks/recurring-server/internal/engine"
)

// Delegator manages the pass queue, starts/stops the worker, and enqueues
// pass requests from the HTTP surface and the background trigger loop.
type Delegator struct {
	runner   *engine.Runner
	clock    clock.Clock
	queue    chan passItem
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewDelegator(runner *engine.Runner, clk clock.Clock) *Delegator {
	return &Delegator{
		runner: runner,
		clock:  clk,
		queue:  make(chan passItem, 16),
	}
}

func (d *Delegator) Start() {
	d.wg.Add(1)
	op := NewOperator(d.runner, d.clock, d.queue)
	go func() {
		defer d.wg.Done()
		op.Run()
	}()
}

func (d *Delegator) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
		d.wg.Wait()
	})
}

// RunPassNow enqueues a scheduling pass and waits for its report.
func (d *Delegator) RunPassNow(ctx context.Context) (*engine.PassReport, error) {
	respCh := make(chan passResponse, 1)
	item := passItem{
		ctx:      ctx,
		response: respCh,
	}

	d.queue <- item

	select {
	case resp := <-respCh:
		return resp.report, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
