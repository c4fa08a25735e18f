package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/logging"
)

// Status is the outcome of one node in one run.
type Status int

const (
	StatusUnset Status = iota
	StatusComputed
	StatusFailed
	StatusSkipped
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusComputed:
		return "computed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusCanceled:
		return "canceled"
	default:
		return "unset"
	}
}

// RunOptions tunes a single run.
type RunOptions struct {
	// IncludeAll makes every source fetch every optional join.
	IncludeAll bool
	// Persist lets sinks write their output through the collaborators.
	Persist bool
}

// RunResult is what a run produced.
type RunResult struct {
	// Outputs holds one entry per terminal. A nil slice means unset.
	Outputs     map[ID][]domain.Track
	Status      map[ID]Status
	Diagnostics []Diagnostic
	Failures    []error
}

// Err joins the collaborator failures of the run.
func (r *RunResult) Err() error {
	return errors.Join(r.Failures...)
}

// Driver evaluates graphs in dependency order.
type Driver struct {
	env     Env
	workers int
	logger  *slog.Logger
	tracer  trace.Tracer
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithWorkers bounds how many nodes are evaluated concurrently.
func WithWorkers(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDriver returns a driver over the given collaborators.
func NewDriver(env Env, opts ...DriverOption) *Driver {
	d := &Driver{
		env:     env,
		workers: 4,
		logger:  env.logger(),
		tracer:  otel.Tracer("github.com/ewilliams-labs/songtagger/internal/core/graph"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.env.Logger = d.logger
	return d
}

type plan struct {
	order      []ID
	inputs     map[ID][]ID
	dependents map[ID][]ID
	unplanned  []ID // nodes on a cycle or downstream of one
}

// plan snapshots the topology and orders it with Kahn's algorithm.
func (g *Graph) plan() plan {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p := plan{inputs: make(map[ID][]ID), dependents: make(map[ID][]ID)}
	indeg := make(map[ID]int)
	var queue []ID
	for i, s := range g.slots {
		if s == nil {
			continue
		}
		id := ID(i)
		p.inputs[id] = append([]ID(nil), s.inputs...)
		p.dependents[id] = append([]ID(nil), s.outputs...)
		indeg[id] = len(s.inputs)
		if len(s.inputs) == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		p.order = append(p.order, id)
		for _, d := range p.dependents[id] {
			indeg[d]--
			if indeg[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	for i, s := range g.slots {
		if s != nil && indeg[ID(i)] > 0 {
			p.unplanned = append(p.unplanned, ID(i))
		}
	}
	return p
}

type runState struct {
	log    *slog.Logger
	mu     sync.Mutex
	result *RunResult
	deps   map[ID]*atomic.Int32
}

func (st *runState) status(id ID) Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.result.Status[id]
}

func (st *runState) set(id ID, s Status) {
	st.mu.Lock()
	st.result.Status[id] = s
	st.mu.Unlock()
}

func (st *runState) fail(id ID, err error) {
	st.mu.Lock()
	st.result.Status[id] = StatusFailed
	st.result.Failures = append(st.result.Failures, err)
	st.mu.Unlock()
}

// Run evaluates every node of g whose inputs can be satisfied and returns
// the outputs of the graph's terminals.
//
// Collaborator failures do not abort the run: the failing node's forward
// set is skipped and the failures are reported in RunResult. The returned
// error is non-nil only when ctx ends before the run completes; the partial
// RunResult is still returned.
func (d *Driver) Run(ctx context.Context, g *Graph, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	defer func() { runSeconds.Observe(time.Since(start).Seconds()) }()

	ctx, span := d.tracer.Start(ctx, "graph.Run", trace.WithAttributes(
		attribute.Bool("include_all", opts.IncludeAll),
		attribute.Bool("persist", opts.Persist),
	))
	defer span.End()

	log := logging.FromContextOr(ctx, d.logger)
	p := g.plan()
	st := &runState{
		log: log,
		result: &RunResult{
			Outputs: make(map[ID][]domain.Track),
			Status:  make(map[ID]Status),
		},
		deps: make(map[ID]*atomic.Int32, len(p.order)),
	}
	for _, id := range p.unplanned {
		st.result.Status[id] = StatusUnset
		log.Warn("node is on a cycle and will not be evaluated", "node", id)
	}

	env := d.env
	env.Logger = log
	env.Diagnose = func(diag Diagnostic) {
		st.mu.Lock()
		st.result.Diagnostics = append(st.result.Diagnostics, diag)
		st.mu.Unlock()
		if d.env.Diagnose != nil {
			d.env.Diagnose(diag)
		}
	}

	ready := make(chan ID, len(p.order))
	var remaining atomic.Int32
	remaining.Store(int32(len(p.order)))
	for _, id := range p.order {
		c := &atomic.Int32{}
		c.Store(int32(len(p.inputs[id])))
		st.deps[id] = c
		if len(p.inputs[id]) == 0 {
			ready <- id
		}
	}
	if len(p.order) == 0 {
		close(ready)
	}

	workers := min(d.workers, max(len(p.order), 1))
	log.Debug("starting graph run", "nodes", len(p.order), "workers", workers)

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for id := range ready {
				d.evaluate(ctx, g, env, opts, p, st, id)
				for _, dep := range p.dependents[id] {
					if c, ok := st.deps[dep]; ok && c.Add(-1) == 0 {
						ready <- dep
					}
				}
				if remaining.Add(-1) == 0 {
					close(ready)
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	for _, t := range g.Terminals() {
		out, ok := g.Output(t)
		if ok && st.result.Status[t] != StatusFailed {
			st.result.Outputs[t] = out
		} else {
			st.result.Outputs[t] = nil
		}
	}

	if err := st.result.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collaborator failure")
	}
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		return st.result, fmt.Errorf("graph: run: %w", err)
	}
	return st.result, nil
}

func (d *Driver) evaluate(ctx context.Context, g *Graph, env Env, opts RunOptions, p plan, st *runState, id ID) {
	n, ok := g.Node(id)
	if !ok {
		return
	}
	log := st.log.With("node", id, "kind", n.Kind())

	status := d.upstreamStatus(p, st, id)
	if status == StatusUnset && ctx.Err() != nil {
		status = StatusCanceled
	}
	if status != StatusUnset {
		if status == StatusSkipped {
			log.Warn("skipping node due to upstream failure")
		}
		st.set(id, status)
		nodeEvaluations.WithLabelValues(n.Kind(), status.String()).Inc()
		return
	}

	ctx, span := d.tracer.Start(ctx, "graph.Node", trace.WithAttributes(
		attribute.Int("node", int(id)),
		attribute.String("kind", n.Kind()),
	))
	defer span.End()

	status = d.compute(ctx, g, env, opts, st, id, n, log)
	span.SetAttributes(attribute.String("status", status.String()))
	if status == StatusFailed {
		span.SetStatus(codes.Error, "failed")
	}
	nodeEvaluations.WithLabelValues(n.Kind(), status.String()).Inc()
}

func (d *Driver) compute(ctx context.Context, g *Graph, env Env, opts RunOptions, st *runState, id ID, n Node, log *slog.Logger) Status {
	failed := func(err error) Status {
		if ctx.Err() != nil {
			st.set(id, StatusCanceled)
			return StatusCanceled
		}
		log.Error("node evaluation failed", "error", err)
		st.fail(id, err)
		return StatusFailed
	}

	if err := g.CalculateInputResult(ctx, id, env, opts.IncludeAll); err != nil {
		return failed(err)
	}
	if ctx.Err() != nil {
		st.set(id, StatusCanceled)
		return StatusCanceled
	}
	if err := g.MapInputToOutput(ctx, id); err != nil {
		return failed(err)
	}

	out, ok := g.Output(id)
	if !ok {
		log.Debug("node result unset")
		st.set(id, StatusUnset)
		return StatusUnset
	}

	if sink, isSink := n.(Sink); isSink && opts.Persist {
		if err := sink.Persist(ctx, env, out); err != nil {
			return failed(fmt.Errorf("graph: persist %s node %d: %w", n.Kind(), id, err))
		}
	}
	st.set(id, StatusComputed)
	return StatusComputed
}

// upstreamStatus returns StatusSkipped when an input failed or was skipped,
// StatusCanceled when an input was canceled and StatusUnset otherwise.
func (d *Driver) upstreamStatus(p plan, st *runState, id ID) Status {
	out := StatusUnset
	for _, in := range p.inputs[id] {
		switch st.status(in) {
		case StatusFailed, StatusSkipped:
			return StatusSkipped
		case StatusCanceled:
			out = StatusCanceled
		}
	}
	return out
}
