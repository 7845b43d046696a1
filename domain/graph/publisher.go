package graph

import "sync/atomic"

// Publisher holds the pointer to the current generation.
// Readers load the pointer once per call and keep reading that snapshot.
type Publisher struct {
	current atomic.Pointer[Generation]
	nextID  atomic.Int64
}

// NewPublisher creates a publisher with no generation
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Current returns the published generation, or nil before the first rebuild
func (p *Publisher) Current() *Generation {
	return p.current.Load()
}

// NextID reserves the identifier of the next generation
func (p *Publisher) NextID() int64 {
	return p.nextID.Add(1)
}

// Publish swaps in g unless a newer generation is already active.
// It returns false when g was discarded.
func (p *Publisher) Publish(g *Generation) bool {
	for {
		old := p.current.Load()
		if old != nil && old.ID >= g.ID {
			return false
		}
		if p.current.CompareAndSwap(old, g) {
			return true
		}
	}
}
