// Package graph holds published reference graph generations.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"
)

// Stats summarises one generation
type Stats struct {
	Objects            int `json:"objects"`
	Versions           int `json:"versions"`
	Edges              int `json:"edges"`
	DanglingReferences int `json:"danglingReferences"`
}

// Generation is one complete, immutable build of the forward and reverse
// reference indices. Both indices address the same flat edge slice, so they
// cannot disagree.
type Generation struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId"`
	BuiltAt   time.Time `json:"builtAt"`
	Watermark int64     `json:"watermark"`
	Checksum  string    `json:"checksum"`

	edges   []entities.ReferenceEdge
	forward map[valueobjects.VersionRef][]int
	reverse map[valueobjects.VersionRef][]int
	objects   map[valueobjects.ObjectID]int
	lifetimes map[valueobjects.ObjectID]int
	spans     map[valueobjects.VersionRef]entities.Span
	stats     Stats
}

// Outgoing returns the edges whose source is ref
func (g *Generation) Outgoing(ref valueobjects.VersionRef) []entities.ReferenceEdge {
	return g.collect(g.forward[ref])
}

// Incoming returns the edges whose target is ref
func (g *Generation) Incoming(ref valueobjects.VersionRef) []entities.ReferenceEdge {
	return g.collect(g.reverse[ref])
}

func (g *Generation) collect(positions []int) []entities.ReferenceEdge {
	if len(positions) == 0 {
		return nil
	}
	out := make([]entities.ReferenceEdge, len(positions))
	for i, p := range positions {
		out[i] = g.edges[p]
	}
	return out
}

// Covers reports whether the object was part of this generation's snapshot
func (g *Generation) Covers(id valueobjects.ObjectID) bool {
	_, ok := g.objects[id]
	return ok
}

// LatestLifetime returns the index of the object's newest lifetime in the snapshot
func (g *Generation) LatestLifetime(id valueobjects.ObjectID) (int, bool) {
	lifetime, ok := g.lifetimes[id]
	return lifetime, ok
}

// Span returns the validity interval a version had when the generation was built
func (g *Generation) Span(ref valueobjects.VersionRef) (entities.Span, bool) {
	span, ok := g.spans[ref]
	return span, ok
}

// Edges returns a copy of every edge in canonical order
func (g *Generation) Edges() []entities.ReferenceEdge {
	out := make([]entities.ReferenceEdge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Stats returns the generation summary counters
func (g *Generation) Stats() Stats {
	return g.stats
}

// CheckTranspose verifies that the reverse index is exactly the transpose
// of the forward index
func (g *Generation) CheckTranspose() error {
	seen := make(map[int]int, len(g.edges))
	for source, positions := range g.forward {
		for _, p := range positions {
			if g.edges[p].Source != source {
				return fmt.Errorf("forward entry %s holds edge from %s", source, g.edges[p].Source)
			}
			seen[p]++
		}
	}
	for target, positions := range g.reverse {
		for _, p := range positions {
			if g.edges[p].Target != target {
				return fmt.Errorf("reverse entry %s holds edge to %s", target, g.edges[p].Target)
			}
			seen[p]++
		}
	}
	for p := range g.edges {
		if seen[p] != 2 {
			return fmt.Errorf("edge %d is indexed %d times", p, seen[p])
		}
	}
	return nil
}

// GenerationBuilder accumulates one rebuild's output. It is owned by a
// single rebuild run and is not safe for concurrent use.
type GenerationBuilder struct {
	edges     []entities.ReferenceEdge
	seen      map[entities.ReferenceEdge]struct{}
	objects   map[valueobjects.ObjectID]int
	lifetimes map[valueobjects.ObjectID]int
	spans     map[valueobjects.VersionRef]entities.Span
	dangling  int
}

// NewGenerationBuilder creates an empty builder
func NewGenerationBuilder() *GenerationBuilder {
	return &GenerationBuilder{
		seen:      make(map[entities.ReferenceEdge]struct{}),
		objects:   make(map[valueobjects.ObjectID]int),
		lifetimes: make(map[valueobjects.ObjectID]int),
		spans:     make(map[valueobjects.VersionRef]entities.Span),
	}
}

// AddObject registers an object of the snapshot and the spans of its versions
func (b *GenerationBuilder) AddObject(id valueobjects.ObjectID, versions []entities.ObjectVersion) {
	b.objects[id] = len(versions)
	latest := 0
	for _, v := range versions {
		b.spans[v.Ref] = v.Span()
		if v.Ref.Lifetime > latest {
			latest = v.Ref.Lifetime
		}
	}
	b.lifetimes[id] = latest
}

// AddEdge records an edge once
func (b *GenerationBuilder) AddEdge(edge entities.ReferenceEdge) {
	if _, ok := b.seen[edge]; ok {
		return
	}
	b.seen[edge] = struct{}{}
	b.edges = append(b.edges, edge)
}

// AddDangling counts candidates that resolved to no target version
func (b *GenerationBuilder) AddDangling(n int) {
	b.dangling += n
}

// Seal freezes the accumulated edges into an immutable generation
func (b *GenerationBuilder) Seal(id int64, runID string, builtAt time.Time, watermark int64) *Generation {
	edges := make([]entities.ReferenceEdge, len(b.edges))
	copy(edges, b.edges)
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].Less(edges[j])
	})

	forward := make(map[valueobjects.VersionRef][]int)
	reverse := make(map[valueobjects.VersionRef][]int)
	for i, edge := range edges {
		forward[edge.Source] = append(forward[edge.Source], i)
		reverse[edge.Target] = append(reverse[edge.Target], i)
	}

	versions := 0
	for _, n := range b.objects {
		versions += n
	}

	g := &Generation{
		ID:        id,
		RunID:     runID,
		BuiltAt:   builtAt,
		Watermark: watermark,
		edges:     edges,
		forward:   forward,
		reverse:   reverse,
		objects:   b.objects,
		lifetimes: b.lifetimes,
		spans:     b.spans,
		stats: Stats{
			Objects:            len(b.objects),
			Versions:           versions,
			Edges:              len(edges),
			DanglingReferences: b.dangling,
		},
	}
	g.Checksum = checksum(g)

	// the builder must not be reused once its maps are shared
	b.objects = nil
	b.lifetimes = nil
	b.spans = nil
	b.seen = nil
	b.edges = nil
	return g
}

// checksum hashes the content of a generation, independent of its identity
// and build time
func checksum(g *Generation) string {
	h := sha256.New()

	ids := make([]valueobjects.ObjectID, 0, len(g.objects))
	for id := range g.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})
	for _, id := range ids {
		fmt.Fprintf(h, "o %s %d\n", id, g.objects[id])
	}
	for _, edge := range g.edges {
		fmt.Fprintf(h, "e %s %s %s\n", edge.Source, edge.Attribute, edge.Target)
	}
	return hex.EncodeToString(h.Sum(nil))
}
