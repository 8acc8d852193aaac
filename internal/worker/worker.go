// Package worker runs the item-enumeration step of a generation run off the
// interactive flow, streaming progress back to the caller. It performs no
// drawing; the planner applies the encode logic after the terminal message.
package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/codesheet/codesheet-engine/internal/generator"
)

// progressEvery controls how often a progress message is emitted: after
// every 10th processed item, and unconditionally on the final item.
const progressEvery = 10

type job struct {
	req generator.ExpandRequest
	out chan generator.ExpandOutcome
}

// Worker is a single background executor for expansion jobs. It owns no
// shared mutable state: jobs carry value copies in and out.
type Worker struct {
	log    *zap.Logger
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts the worker goroutine.
func New(log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		log:    log,
		jobs:   make(chan job, 4),
		ctx:    ctx,
		cancel: cancel,
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// Expand queues an expansion job and returns the channel its single
// terminal outcome will arrive on. Implements generator.Delegator.
func (w *Worker) Expand(req generator.ExpandRequest) <-chan generator.ExpandOutcome {
	out := make(chan generator.ExpandOutcome, 1)

	// The jobs channel is buffered, so a send alone cannot detect shutdown.
	if w.ctx.Err() != nil {
		out <- generator.ExpandOutcome{Err: fmt.Errorf("worker is shut down")}
		return out
	}

	select {
	case w.jobs <- job{req: req, out: out}:
	case <-w.ctx.Done():
		out <- generator.ExpandOutcome{Err: fmt.Errorf("worker is shut down")}
	}

	return out
}

// Stop shuts the worker down and waits for the in-flight job to finish.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case j := <-w.jobs:
			j.out <- w.process(j.req)
		}
	}
}

// process recomputes the total count, then re-walks blocks and items in the
// same order as the direct path, emitting one flat request per item. A panic
// during expansion becomes a terminal error for the run; no partial results
// are delivered.
func (w *Worker) process(req generator.ExpandRequest) (outcome generator.ExpandOutcome) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("expansion failed", zap.Any("panic", r))
			outcome = generator.ExpandOutcome{Err: fmt.Errorf("expansion failed: %v", r)}
		}
	}()

	total := generator.CountItems(req.Blocks, req.Settings)
	w.log.Debug("expansion started",
		zap.Int("blocks", len(req.Blocks)),
		zap.Int("total", total))

	var requests []generator.EncodeRequest
	for _, flat := range generator.Expand(req.Blocks, req.Settings) {
		requests = append(requests, flat)
		current := len(requests)
		if req.OnProgress != nil && (current%progressEvery == 0 || current == total) {
			req.OnProgress(generator.Progress{Current: current, Total: total})
		}
	}

	w.log.Debug("expansion complete", zap.Int("items", len(requests)))
	return generator.ExpandOutcome{Requests: requests}
}
