package sim

import (
	"context"
	"sync"
	"time"

	"github.com/tturner/fieldsim/internal/logging"
)

// Model is one simulated process. Tick advances it one step; models
// reach their memory through the same store surface protocol clients
// use, so a tick and a concurrent client write interleave safely.
type Model interface {
	Name() string
	Tick() error
}

// Engine drives a Model on a fixed interval until stopped.
type Engine struct {
	model    Model
	interval time.Duration
	logger   *logging.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewEngine creates an engine for one model.
func NewEngine(model Model, interval time.Duration, logger *logging.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		model:    model,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the tick loop. A failing tick is logged and the loop
// keeps running; the process owns the memory, a transient range problem
// must not kill it.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.logger.Info("simulator %s running every %s", e.model.Name(), e.interval)
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				if err := e.model.Tick(); err != nil {
					e.logger.Error("simulator %s: %v", e.model.Name(), err)
				}
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.logger.Info("simulator %s stopped", e.model.Name())
}
