// Package services holds the application use cases that sit between the
// adapters and the graph engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
	"github.com/ewilliams-labs/songtagger/internal/core/ports"
	"github.com/ewilliams-labs/songtagger/internal/logging"
)

// Generator owns the live graphs built from stored definitions. Every
// mutation is applied to the live graph through the node setters, so cached
// results survive on branches the mutation does not touch, and the
// resulting definition is written back to the repository.
type Generator struct {
	repo    ports.GraphRepository
	catalog ports.TagCatalog
	driver  *graph.Driver
	logger  *slog.Logger

	mu   sync.Mutex
	live map[string]*liveGraph

	runs singleflight.Group
}

type liveGraph struct {
	mu   sync.Mutex // serializes mutations
	name string
	g    *graph.Graph
}

// NewGenerator constructs a Generator. catalog may be nil, in which case
// tag references are never reconciled.
func NewGenerator(repo ports.GraphRepository, catalog ports.TagCatalog, driver *graph.Driver, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		repo:    repo,
		catalog: catalog,
		driver:  driver,
		logger:  logger,
		live:    make(map[string]*liveGraph),
	}
}

// RunReport is the outcome of one run keyed by node key.
type RunReport struct {
	GraphID string
	// Outputs holds one entry per terminal. A nil slice means unset.
	Outputs     map[string][]domain.Track
	Status      map[string]string
	Diagnostics []Diagnostic
	// Err joins collaborator failures. The run itself still completed.
	Err error
}

// Diagnostic is a data anomaly reported during a run.
type Diagnostic struct {
	Node    string
	Code    string
	Message string
}

// GraphStatus summarizes whether a graph can produce output.
type GraphStatus struct {
	ID       string
	Name     string
	Runnable bool
	Nodes    []NodeStatus
}

// NodeStatus describes one node of a live graph.
type NodeStatus struct {
	Key      string
	Kind     string
	Valid    bool
	Computed bool
}

// SaveDefinition validates def, applies it to the live graph (or builds
// one) and stores it. An empty id gets a generated one.
func (s *Generator) SaveDefinition(ctx context.Context, def domain.GraphDefinition) (domain.GraphDefinition, error) {
	if strings.TrimSpace(def.Name) == "" {
		return domain.GraphDefinition{}, fmt.Errorf("service: %w: graph name is required", domain.ErrInvalidArgument)
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	// Build first so a bad definition never leaves a live graph half applied.
	built, err := graph.Build(def, s.logger)
	if err != nil {
		return domain.GraphDefinition{}, fmt.Errorf("service: %w: %w", domain.ErrInvalidArgument, err)
	}

	s.mu.Lock()
	lg, ok := s.live[def.ID]
	if !ok {
		lg = &liveGraph{name: def.Name, g: built}
		s.live[def.ID] = lg
	}
	s.mu.Unlock()

	lg.mu.Lock()
	defer lg.mu.Unlock()
	if ok {
		if err := graph.Apply(lg.g, withKeys(def, built)); err != nil {
			return domain.GraphDefinition{}, fmt.Errorf("service: apply graph %s: %w", def.ID, err)
		}
		lg.name = def.Name
	}
	return s.persistLocked(ctx, def.ID, lg)
}

// withKeys copies the keys Build generated for unkeyed nodes into def so
// Apply can match them.
func withKeys(def domain.GraphDefinition, built *graph.Graph) domain.GraphDefinition {
	described := graph.Describe(built, def.ID, def.Name)
	out := def
	out.Nodes = append([]domain.NodeDefinition(nil), def.Nodes...)
	for i := range out.Nodes {
		if out.Nodes[i].Key == "" && i < len(described.Nodes) {
			out.Nodes[i].Key = described.Nodes[i].Key
		}
	}
	return out
}

// Definition returns the current definition of a graph.
func (s *Generator) Definition(ctx context.Context, id string) (domain.GraphDefinition, error) {
	lg, err := s.load(ctx, id)
	if err != nil {
		return domain.GraphDefinition{}, err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return graph.Describe(lg.g, id, lg.name), nil
}

// ListDefinitions returns every stored definition.
func (s *Generator) ListDefinitions(ctx context.Context) ([]domain.GraphDefinition, error) {
	defs, err := s.repo.ListGraphs(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list graphs: %w", err)
	}
	return defs, nil
}

// UpdateNode patches the configuration of one node. Keys absent from patch
// keep their value.
func (s *Generator) UpdateNode(ctx context.Context, graphID, key string, patch map[string]any) (domain.NodeDefinition, error) {
	lg, err := s.load(ctx, graphID)
	if err != nil {
		return domain.NodeDefinition{}, err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()

	id, ok := lg.g.Lookup(key)
	if !ok {
		return domain.NodeDefinition{}, fmt.Errorf("service: node %q: %w", key, domain.ErrNotFound)
	}
	n, _ := lg.g.Node(id)
	c, ok := n.(graph.Configurable)
	if !ok {
		return domain.NodeDefinition{}, fmt.Errorf("service: %w: %s node takes no config", domain.ErrInvalidArgument, n.Kind())
	}
	if err := c.Configure(patch); err != nil {
		return domain.NodeDefinition{}, fmt.Errorf("service: %w: %w", domain.ErrInvalidArgument, err)
	}
	if _, err := s.persistLocked(ctx, graphID, lg); err != nil {
		return domain.NodeDefinition{}, err
	}
	return domain.NodeDefinition{Key: key, Kind: n.Kind(), Config: c.Config()}, nil
}

// Connect adds an edge between two nodes identified by key.
func (s *Generator) Connect(ctx context.Context, graphID, from, to string) error {
	return s.edit(ctx, graphID, from, to, (*graph.Graph).Connect)
}

// Disconnect removes an edge between two nodes identified by key.
func (s *Generator) Disconnect(ctx context.Context, graphID, from, to string) error {
	return s.edit(ctx, graphID, from, to, (*graph.Graph).Disconnect)
}

func (s *Generator) edit(ctx context.Context, graphID, from, to string, op func(*graph.Graph, graph.ID, graph.ID) error) error {
	lg, err := s.load(ctx, graphID)
	if err != nil {
		return err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()

	src, ok := lg.g.Lookup(from)
	if !ok {
		return fmt.Errorf("service: node %q: %w", from, domain.ErrNotFound)
	}
	dst, ok := lg.g.Lookup(to)
	if !ok {
		return fmt.Errorf("service: node %q: %w", to, domain.ErrNotFound)
	}
	if err := op(lg.g, src, dst); err != nil {
		return translate(fmt.Errorf("service: edge %q -> %q: %w", from, to, err))
	}
	_, err = s.persistLocked(ctx, graphID, lg)
	return err
}

// Run evaluates a graph. Concurrent runs of the same graph with the same
// options share one evaluation; the first caller's context governs it.
func (s *Generator) Run(ctx context.Context, graphID string, opts graph.RunOptions) (*RunReport, error) {
	key := fmt.Sprintf("%s|%t|%t", graphID, opts.IncludeAll, opts.Persist)
	v, err, shared := s.runs.Do(key, func() (any, error) {
		return s.run(ctx, graphID, opts)
	})
	if shared {
		s.logger.Debug("run coalesced", "graph", graphID)
	}
	report, _ := v.(*RunReport)
	return report, err
}

func (s *Generator) run(ctx context.Context, graphID string, opts graph.RunOptions) (*RunReport, error) {
	lg, err := s.load(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if s.catalog != nil {
		tags, err := s.catalog.Tags(ctx)
		if err != nil {
			return nil, fmt.Errorf("service: load tags: %w", err)
		}
		lg.g.SetKnownTags(tags)
	}

	log := logging.FromContextOr(ctx, s.logger).With("graph", graphID)
	ctx = logging.WithLogger(ctx, log)
	log.Info("running graph", "include_all", opts.IncludeAll, "persist", opts.Persist)

	res, runErr := s.driver.Run(ctx, lg.g, opts)
	report := s.report(lg.g, graphID, res)
	if report.Err != nil {
		log.Error("graph run finished with failures", "error", report.Err)
	}
	if runErr != nil {
		return report, fmt.Errorf("service: run graph %s: %w", graphID, runErr)
	}
	return report, nil
}

func (s *Generator) report(g *graph.Graph, graphID string, res *graph.RunResult) *RunReport {
	keyOf := func(id graph.ID) string {
		n, ok := g.Node(id)
		if !ok {
			return fmt.Sprint(int(id))
		}
		return n.Binding().Key()
	}
	r := &RunReport{
		GraphID: graphID,
		Outputs: make(map[string][]domain.Track, len(res.Outputs)),
		Status:  make(map[string]string, len(res.Status)),
		Err:     res.Err(),
	}
	for id, out := range res.Outputs {
		r.Outputs[keyOf(id)] = out
	}
	for id, st := range res.Status {
		r.Status[keyOf(id)] = st.String()
	}
	for _, d := range res.Diagnostics {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{Node: keyOf(d.Node), Code: d.Code, Message: d.Message})
	}
	return r
}

// Status reports node validity and whether the graph is runnable.
func (s *Generator) Status(ctx context.Context, graphID string) (GraphStatus, error) {
	lg, err := s.load(ctx, graphID)
	if err != nil {
		return GraphStatus{}, err
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()

	st := GraphStatus{ID: graphID, Name: lg.name, Runnable: lg.g.Runnable()}
	for _, id := range lg.g.Nodes() {
		n, ok := lg.g.Node(id)
		if !ok {
			continue
		}
		_, computed := lg.g.Output(id)
		st.Nodes = append(st.Nodes, NodeStatus{
			Key:      n.Binding().Key(),
			Kind:     n.Kind(),
			Valid:    lg.g.IsValid(id),
			Computed: computed,
		})
	}
	return st, nil
}

// Graph exposes the live graph of id, building it from storage if needed.
func (s *Generator) Graph(ctx context.Context, id string) (*graph.Graph, error) {
	lg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return lg.g, nil
}

func (s *Generator) load(ctx context.Context, id string) (*liveGraph, error) {
	s.mu.Lock()
	lg, ok := s.live[id]
	s.mu.Unlock()
	if ok {
		return lg, nil
	}

	def, err := s.repo.GetGraph(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: load graph %s: %w", id, err)
	}
	g, err := graph.Build(def, s.logger)
	if err != nil {
		return nil, fmt.Errorf("service: build graph %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lg, ok := s.live[id]; ok {
		return lg, nil
	}
	lg = &liveGraph{name: def.Name, g: g}
	s.live[id] = lg
	return lg, nil
}

func (s *Generator) persistLocked(ctx context.Context, id string, lg *liveGraph) (domain.GraphDefinition, error) {
	def := graph.Describe(lg.g, id, lg.name)
	if err := s.repo.SaveGraph(ctx, def); err != nil {
		return domain.GraphDefinition{}, fmt.Errorf("service: save graph %s: %w", id, err)
	}
	return def, nil
}

// translate maps engine topology errors to the domain sentinels the
// adapters understand.
func translate(err error) error {
	switch {
	case errors.Is(err, graph.ErrNodeNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, graph.ErrInputRejected), errors.Is(err, graph.ErrCycle):
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	default:
		return err
	}
}
