package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
	"github.com/ewilliams-labs/songtagger/internal/core/services"
	"github.com/ewilliams-labs/songtagger/internal/logging"
)

type mockRunner struct {
	started chan string
	block   bool
	err     error
}

func (m *mockRunner) Run(ctx context.Context, graphID string, _ graph.RunOptions) (*services.RunReport, error) {
	if m.started != nil {
		m.started <- graphID
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &services.RunReport{GraphID: graphID, Outputs: map[string][]domain.Track{"out": {{ID: "t1"}}}}, nil
}

func waitState(t *testing.T, p *Pool, id string, want State) Run {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := p.Get(id); ok && r.State == want {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	r, _ := p.Get(id)
	t.Fatalf("run %s: state %q, want %q", id, r.State, want)
	return r
}

func TestPool_RunStates(t *testing.T) {
	tests := []struct {
		name   string
		runner *mockRunner
		want   State
	}{
		{name: "done", runner: &mockRunner{}, want: StateDone},
		{name: "failed", runner: &mockRunner{err: errors.New("boom")}, want: StateFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPool(tc.runner, 4, WithLogger(logging.NewNop()))
			p.Start(1)
			defer p.Stop()

			r, err := p.Submit("g1", graph.RunOptions{})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if r.State != StateQueued || r.ID == "" {
				t.Fatalf("unexpected snapshot %+v", r)
			}
			got := waitState(t, p, r.ID, tc.want)
			if tc.want == StateDone && len(got.Report.Outputs["out"]) != 1 {
				t.Fatalf("report not recorded: %+v", got.Report)
			}
			if tc.want == StateFailed && got.Error == "" {
				t.Fatalf("failed run should carry its error")
			}
		})
	}
}

func TestPool_CancelRunning(t *testing.T) {
	runner := &mockRunner{started: make(chan string, 1), block: true}
	p := NewPool(runner, 4, WithLogger(logging.NewNop()))
	p.Start(1)
	defer p.Stop()

	r, err := p.Submit("g1", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-runner.started
	if _, err := p.Cancel(r.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitState(t, p, r.ID, StateCanceled)

	if _, err := p.Cancel("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPool_QueueFullAndQueuedCancel(t *testing.T) {
	runner := &mockRunner{started: make(chan string, 4), block: true}
	p := NewPool(runner, 1, WithLogger(logging.NewNop()))
	p.Start(1)
	defer p.Stop()

	first, err := p.Submit("g1", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-runner.started // worker busy, queue empty

	queued, err := p.Submit("g2", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := p.Submit("g3", graph.RunOptions{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	r, err := p.Cancel(queued.ID)
	if err != nil || r.State != StateCanceled {
		t.Fatalf("cancel queued: %+v %v", r, err)
	}
	if _, err := p.Cancel(first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitState(t, p, first.ID, StateCanceled)
	waitState(t, p, queued.ID, StateCanceled)
}

func TestPool_Timeout(t *testing.T) {
	runner := &mockRunner{block: true}
	p := NewPool(runner, 1, WithLogger(logging.NewNop()), WithRunTimeout(20*time.Millisecond))
	p.Start(1)
	defer p.Stop()

	r, err := p.Submit("g1", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := waitState(t, p, r.ID, StateFailed)
	if got.Error == "" {
		t.Fatalf("timed out run should carry its error")
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func retained(p *Pool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runs)
}

func TestPool_FinishedRunsCapped(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p := NewPool(&mockRunner{}, 4, WithLogger(logging.NewNop()), WithRetention(time.Hour, 3))
	p.now = clock.Now
	p.Start(1)
	defer p.Stop()

	var ids []string
	for i := 0; i < 10; i++ {
		r, err := p.Submit("g1", graph.RunOptions{})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		waitState(t, p, r.ID, StateDone)
		ids = append(ids, r.ID)
		clock.Advance(time.Second)
	}
	if n := retained(p); n > 4 {
		t.Fatalf("retained %d runs, want at most 4", n)
	}
	if _, ok := p.Get(ids[0]); ok {
		t.Fatalf("oldest finished run should have been evicted")
	}
	if _, ok := p.Get(ids[9]); !ok {
		t.Fatalf("latest run should still be queryable")
	}
}

func TestPool_FinishedRunsExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p := NewPool(&mockRunner{}, 4, WithLogger(logging.NewNop()), WithRetention(time.Hour, 100))
	p.now = clock.Now
	p.Start(1)
	defer p.Stop()

	old, err := p.Submit("g1", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitState(t, p, old.ID, StateDone)

	clock.Advance(2 * time.Hour)
	fresh, err := p.Submit("g1", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := p.Get(old.ID); ok {
		t.Fatalf("expired run still retained")
	}
	waitState(t, p, fresh.ID, StateDone)
}

func TestPool_ActiveRunsNotPruned(t *testing.T) {
	runner := &mockRunner{block: true, started: make(chan string, 4)}
	p := NewPool(runner, 4, WithLogger(logging.NewNop()), WithRetention(time.Nanosecond, 1))
	p.Start(1)
	defer p.Stop()

	running, err := p.Submit("g1", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-runner.started
	queued, err := p.Submit("g2", graph.RunOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := p.Submit("g3", graph.RunOptions{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, id := range []string{running.ID, queued.ID} {
		if _, ok := p.Get(id); !ok {
			t.Fatalf("active run %s was pruned", id)
		}
	}
}
