package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/infrastructure/metrics"
)

var ErrPoolStopped = errors.New("worker pool is stopped")

// Task is one unit of work, typically a user turn.
type Task func(ctx context.Context)

// Config contains worker pool configuration.
type Config struct {
	// TaskTimeout bounds a single task. Zero means no bound.
	TaskTimeout time.Duration
	// ShutdownTimeout bounds how long Stop waits for in-flight tasks.
	ShutdownTimeout time.Duration
}

// Pool runs tasks concurrently across keys and strictly in submission order
// within a key. Each submission waits for the previous task of its key.
type Pool struct {
	cfg Config
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tails   map[string]chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, log zerolog.Logger) *Pool {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg,
		log:    log.With().Str("component", "worker-pool").Logger(),
		ctx:    ctx,
		cancel: cancel,
		tails:  make(map[string]chan struct{}),
	}
}

// Submit enqueues task behind any earlier task with the same key. It never blocks
// on the task itself; ordering is fixed at the moment Submit is called.
func (p *Pool) Submit(key string, task Task) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	previous := p.tails[key]
	done := make(chan struct{})
	p.tails[key] = done
	p.wg.Add(1)
	p.mu.Unlock()

	metrics.PendingTurns.Inc()
	go func() {
		defer p.wg.Done()
		defer metrics.PendingTurns.Dec()
		defer close(done)
		defer p.release(key, done)

		if previous != nil {
			<-previous
		}
		p.run(key, task)
	}()
	return nil
}

func (p *Pool) run(key string, task Task) {
	ctx := p.ctx
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Str("key", key).Interface("panic", rec).Msg("task panicked")
		}
	}()
	task(ctx)
}

func (p *Pool) release(key string, done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tails[key] == done {
		delete(p.tails, key)
	}
}

// Stop rejects new tasks and waits for in-flight ones. Tasks still running after
// the shutdown timeout have their context cancelled.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.log.Info().Msg("stopping worker pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all tasks finished")
	case <-time.After(p.cfg.ShutdownTimeout):
		p.log.Warn().Msg("worker pool shutdown timed out, cancelling remaining tasks")
	}
	p.cancel()
}

// Keys returns the number of keys with queued or running tasks.
func (p *Pool) Keys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tails)
}
