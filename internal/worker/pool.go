// Package worker runs graph evaluations in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
	"github.com/ewilliams-labs/songtagger/internal/core/services"
	"github.com/ewilliams-labs/songtagger/internal/logging"
)

// ErrQueueFull is returned by Submit when the queue has no room.
var ErrQueueFull = errors.New("worker: queue full")

// Runner evaluates one graph.
type Runner interface {
	Run(ctx context.Context, graphID string, opts graph.RunOptions) (*services.RunReport, error)
}

// State is the lifecycle stage of a background run.
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateCanceled State = "canceled"
)

// Run is a snapshot of one background run.
type Run struct {
	ID       string
	GraphID  string
	Options  graph.RunOptions
	State    State
	Report   *services.RunReport
	Error    string
	Queued   time.Time
	Started  time.Time
	Finished time.Time
}

type entry struct {
	run    Run
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool manages background workers for graph runs.
type Pool struct {
	runner  Runner
	jobs    chan string
	wg      sync.WaitGroup
	logger  *slog.Logger
	timeout time.Duration

	retainFor time.Duration
	retainMax int
	now       func() time.Time

	base context.Context
	stop context.CancelFunc

	mu   sync.Mutex
	runs map[string]*entry
}

// Option configures a Pool.
type Option func(*Pool)

// WithRunTimeout bounds every run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(p *Pool) { p.timeout = d }
}

// WithRetention bounds how long finished runs stay queryable and how many
// are kept. A non-positive value leaves the corresponding default.
func WithRetention(ttl time.Duration, maxFinished int) Option {
	return func(p *Pool) {
		if ttl > 0 {
			p.retainFor = ttl
		}
		if maxFinished > 0 {
			p.retainMax = maxFinished
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a pool with the given queue size.
func NewPool(runner Runner, queueSize int, opts ...Option) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	base, stop := context.WithCancel(context.Background())
	p := &Pool{
		runner: runner,
		jobs:   make(chan string, queueSize),
		logger:    slog.Default(),
		retainFor: 15 * time.Minute,
		retainMax: 256,
		now:       time.Now,
		base:      base,
		stop:      stop,
		runs:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for id := range p.jobs {
				p.process(id)
			}
		}()
	}
}

// Stop cancels queued and in-flight runs and waits for the workers.
func (p *Pool) Stop() {
	p.stop()
	close(p.jobs)
	p.wg.Wait()
}

// Submit queues a run without blocking.
func (p *Pool) Submit(graphID string, opts graph.RunOptions) (Run, error) {
	ctx, cancel := context.WithCancel(p.base)
	e := &entry{
		run: Run{
			ID:      uuid.NewString(),
			GraphID: graphID,
			Options: opts,
			State:   StateQueued,
			Queued:  p.now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}

	p.mu.Lock()
	p.pruneLocked()
	p.runs[e.run.ID] = e
	snapshot := e.run
	p.mu.Unlock()

	select {
	case p.jobs <- e.run.ID:
		return snapshot, nil
	default:
		cancel()
		p.mu.Lock()
		delete(p.runs, e.run.ID)
		p.mu.Unlock()
		p.logger.Warn("dropping run", "graph", graphID)
		return Run{}, ErrQueueFull
	}
}

// Get returns the current snapshot of a run.
func (p *Pool) Get(id string) (Run, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.runs[id]
	if !ok {
		return Run{}, false
	}
	return e.run, true
}

// Cancel stops a queued or running run. Cancelling a finished run is a
// no-op.
func (p *Pool) Cancel(id string) (Run, error) {
	p.mu.Lock()
	e, ok := p.runs[id]
	if !ok {
		p.mu.Unlock()
		return Run{}, fmt.Errorf("worker: run %s: %w", id, domain.ErrNotFound)
	}
	if e.run.State == StateQueued {
		e.run.State = StateCanceled
		e.run.Finished = p.now()
	}
	snapshot := e.run
	p.mu.Unlock()

	e.cancel()
	return snapshot, nil
}

func (p *Pool) process(id string) {
	p.mu.Lock()
	e, ok := p.runs[id]
	if !ok || e.run.State != StateQueued {
		p.mu.Unlock()
		return
	}
	e.run.State = StateRunning
	e.run.Started = p.now()
	graphID, opts := e.run.GraphID, e.run.Options
	p.mu.Unlock()

	ctx := e.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer e.cancel()

	log := p.logger.With("run", id)
	report, err := p.runner.Run(logging.WithLogger(ctx, log), graphID, opts)
	log = log.With("graph", graphID)

	p.mu.Lock()
	defer p.mu.Unlock()
	e.run.Report = report
	e.run.Finished = p.now()
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		e.run.State = StateCanceled
		e.run.Error = err.Error()
		log.Info("run canceled")
	case err != nil:
		e.run.State = StateFailed
		e.run.Error = err.Error()
		log.Error("run failed", "error", err)
	case report != nil && report.Err != nil:
		e.run.State = StateFailed
		e.run.Error = report.Err.Error()
		log.Warn("run finished with failures", "error", report.Err)
	default:
		e.run.State = StateDone
		log.Info("run finished", "elapsed", e.run.Finished.Sub(e.run.Started))
	}
}

func (s State) finished() bool {
	return s == StateDone || s == StateFailed || s == StateCanceled
}

// pruneLocked forgets finished runs older than the retention window, then
// the oldest finished runs beyond the retention cap. Queued and running
// runs are never pruned.
func (p *Pool) pruneLocked() {
	cutoff := p.now().Add(-p.retainFor)
	var finished []*entry
	for id, e := range p.runs {
		if !e.run.State.finished() {
			continue
		}
		if e.run.Finished.Before(cutoff) {
			delete(p.runs, id)
			continue
		}
		finished = append(finished, e)
	}
	if len(finished) <= p.retainMax {
		return
	}
	slices.SortFunc(finished, func(a, b *entry) int { return a.run.Finished.Compare(b.run.Finished) })
	for _, e := range finished[:len(finished)-p.retainMax] {
		delete(p.runs, e.run.ID)
	}
}
