package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

const (
	KindConcat      = "concat"
	KindUnion       = "union"
	KindIntersect   = "intersect"
	KindRemove      = "remove"
	KindDeduplicate = "deduplicate"
	KindSort        = "sort"
	KindLimit       = "limit"
)

// setOp is the shared shape of the multi-input combinators.
type setOp struct {
	Base
	kind string
	fn   func(input [][]domain.Track) []domain.Track
}

func (c *setOp) Kind() string                       { return c.kind }
func (c *setOp) Requirements() domain.Requirements { return domain.Requirements{} }
func (c *setOp) Valid() bool                        { return true }
func (c *setOp) Config() map[string]any             { return map[string]any{} }
func (c *setOp) Configure(cfg map[string]any) error { return checkKeys(c.kind, cfg) }

func (c *setOp) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	return c.fn(input), nil
}

// NewConcat appends its inputs in input order, keeping duplicates.
func NewConcat() Node {
	return &setOp{kind: KindConcat, fn: func(input [][]domain.Track) []domain.Track {
		var out []domain.Track
		for _, in := range input {
			out = append(out, in...)
		}
		return out
	}}
}

// NewUnion keeps the first occurrence of every track across its inputs,
// in input order.
func NewUnion() Node {
	return &setOp{kind: KindUnion, fn: func(input [][]domain.Track) []domain.Track {
		seen := make(map[string]struct{})
		var out []domain.Track
		for _, in := range input {
			for _, t := range in {
				if _, ok := seen[t.ID]; ok {
					continue
				}
				seen[t.ID] = struct{}{}
				out = append(out, t)
			}
		}
		return out
	}}
}

// NewIntersect keeps tracks of the first input that appear in every other
// input, in the first input's order.
func NewIntersect() Node {
	return &setOp{kind: KindIntersect, fn: func(input [][]domain.Track) []domain.Track {
		if len(input) == 0 {
			return nil
		}
		others := make([]map[string]struct{}, 0, len(input)-1)
		for _, in := range input[1:] {
			others = append(others, idSet(in))
		}
		seen := make(map[string]struct{})
		var out []domain.Track
		for _, t := range input[0] {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			if !slices.ContainsFunc(others, func(s map[string]struct{}) bool {
				_, ok := s[t.ID]
				return !ok
			}) {
				seen[t.ID] = struct{}{}
				out = append(out, t)
			}
		}
		return out
	}}
}

// NewRemove keeps tracks of the first input that appear in none of the
// other inputs.
func NewRemove() Node {
	return &setOp{kind: KindRemove, fn: func(input [][]domain.Track) []domain.Track {
		if len(input) == 0 {
			return nil
		}
		drop := make(map[string]struct{})
		for _, in := range input[1:] {
			for _, t := range in {
				drop[t.ID] = struct{}{}
			}
		}
		var out []domain.Track
		for _, t := range input[0] {
			if _, ok := drop[t.ID]; !ok {
				out = append(out, t)
			}
		}
		return out
	}}
}

// Deduplicate keeps the first occurrence of each track of its sole input.
type Deduplicate struct {
	Base
}

func NewDeduplicate() *Deduplicate { return &Deduplicate{} }

func (d *Deduplicate) Kind() string                       { return KindDeduplicate }
func (d *Deduplicate) Requirements() domain.Requirements { return domain.Requirements{} }
func (d *Deduplicate) Valid() bool                        { return true }
func (d *Deduplicate) CanAddInput(Node) bool              { return d.singleInput() }
func (d *Deduplicate) Config() map[string]any             { return map[string]any{} }
func (d *Deduplicate) Configure(cfg map[string]any) error { return checkKeys(KindDeduplicate, cfg) }

func (d *Deduplicate) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	seen := make(map[string]struct{})
	return keep(input, func(t domain.Track) bool {
		if _, ok := seen[t.ID]; ok {
			return false
		}
		seen[t.ID] = struct{}{}
		return true
	}), nil
}

// Sort orders its sole input by name, artist or any Feature. The sort is
// stable; tracks without a value for the key keep their relative order
// after all tracks that have one.
type Sort struct {
	Base
	by         string
	descending bool
}

const (
	SortByName   = "name"
	SortByArtist = "artist"
)

func NewSort(by string, descending bool) *Sort { return &Sort{by: by, descending: descending} }

func (s *Sort) Kind() string          { return KindSort }
func (s *Sort) CanAddInput(Node) bool { return s.singleInput() }

func (s *Sort) Valid() bool {
	by, _ := s.Order()
	if by == SortByName || by == SortByArtist {
		return true
	}
	_, ok := Features[by]
	return ok
}

func (s *Sort) Requirements() domain.Requirements {
	by, _ := s.Order()
	if by == SortByArtist {
		return domain.Requirements{Artists: true}
	}
	if f, ok := Features[by]; ok {
		return f.Requires
	}
	return domain.Requirements{}
}

func (s *Sort) Order() (by string, descending bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.by, s.descending
}

// SetOrder changes the sort key. A key with different requirements also
// refetches upstream sources on the next run.
func (s *Sort) SetOrder(by string, descending bool) {
	s.mu.Lock()
	if s.by == by && s.descending == descending {
		s.mu.Unlock()
		return
	}
	s.by, s.descending = by, descending
	s.mu.Unlock()
	s.changed(true)
	s.refetchUpstream()
}

func (s *Sort) refetchUpstream() {
	g := s.graph
	if g == nil {
		return
	}
	need := s.Requirements()
	for _, up := range g.backward(s.id) {
		n, ok := g.Node(up)
		if !ok {
			continue
		}
		if _, isSource := n.(Source); !isSource {
			continue
		}
		if inc, ok := g.Included(up); ok && !inc.Covers(need) {
			g.ClearResult(up)
		}
	}
}

func (s *Sort) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	if len(input) == 0 {
		return nil, nil
	}
	by, desc := s.Order()
	var key func(domain.Track) (string, float64, bool)
	switch by {
	case SortByName:
		key = func(t domain.Track) (string, float64, bool) {
			return strings.ToLower(t.Name), 0, t.Name != ""
		}
	case SortByArtist:
		key = func(t domain.Track) (string, float64, bool) {
			return strings.ToLower(t.ArtistNames()), 0, len(t.Artists) > 0
		}
	default:
		f, ok := Features[by]
		if !ok {
			return nil, fmt.Errorf("%w: sort key %q", ErrInvalidConfig, by)
		}
		key = func(t domain.Track) (string, float64, bool) {
			v, ok := f.Extract(t)
			return "", v, ok
		}
	}

	type keyed struct {
		t   domain.Track
		s   string
		f   float64
		has bool
	}
	rows := make([]keyed, 0, len(input[0]))
	for _, t := range input[0] {
		ks, kf, has := key(t)
		rows = append(rows, keyed{t: t, s: ks, f: kf, has: has})
	}
	slices.SortStableFunc(rows, func(a, b keyed) int {
		if a.has != b.has {
			if a.has {
				return -1
			}
			return 1
		}
		if !a.has {
			return 0
		}
		c := strings.Compare(a.s, b.s)
		if c == 0 {
			switch {
			case a.f < b.f:
				c = -1
			case a.f > b.f:
				c = 1
			}
		}
		if desc {
			c = -c
		}
		return c
	})
	out := make([]domain.Track, len(rows))
	for i, r := range rows {
		out[i] = r.t
	}
	return out, nil
}

func (s *Sort) Config() map[string]any {
	by, desc := s.Order()
	return map[string]any{"by": by, "descending": desc}
}

func (s *Sort) Configure(cfg map[string]any) error {
	if err := checkKeys(KindSort, cfg, "by", "descending"); err != nil {
		return err
	}
	by, desc := s.Order()
	v, ok, err := cfgString(cfg, "by")
	if err != nil {
		return err
	}
	if ok {
		by = v
	}
	d, ok, err := cfgBool(cfg, "descending")
	if err != nil {
		return err
	}
	if ok {
		desc = d
	}
	s.SetOrder(by, desc)
	return nil
}

// Limit keeps the first N tracks of its sole input.
type Limit struct {
	Base
	count int
}

func NewLimit(count int) *Limit { return &Limit{count: count} }

func (l *Limit) Kind() string                       { return KindLimit }
func (l *Limit) Requirements() domain.Requirements { return domain.Requirements{} }
func (l *Limit) CanAddInput(Node) bool              { return l.singleInput() }
func (l *Limit) Valid() bool                        { return l.Count() >= 0 }

func (l *Limit) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

func (l *Limit) SetCount(n int) {
	l.mu.Lock()
	if l.count == n {
		l.mu.Unlock()
		return
	}
	l.count = n
	l.mu.Unlock()
	l.changed(true)
}

func (l *Limit) MapInputToOutput(_ context.Context, input [][]domain.Track) ([]domain.Track, error) {
	if len(input) == 0 {
		return nil, nil
	}
	n := max(0, min(l.Count(), len(input[0])))
	return slices.Clone(input[0][:n]), nil
}

func (l *Limit) Config() map[string]any { return map[string]any{"count": l.Count()} }

func (l *Limit) Configure(cfg map[string]any) error {
	if err := checkKeys(KindLimit, cfg, "count"); err != nil {
		return err
	}
	n, ok, err := cfgInt(cfg, "count")
	if err != nil {
		return err
	}
	if ok {
		l.SetCount(n)
	}
	return nil
}

func idSet(tracks []domain.Track) map[string]struct{} {
	s := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		s[t.ID] = struct{}{}
	}
	return s
}
