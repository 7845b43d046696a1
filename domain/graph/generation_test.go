package graph

import (
	"sync"
	"testing"
	"time"

	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mnt    = valueobjects.MustObjectID("mntner", "TEST-MNT")
	person = valueobjects.MustObjectID("person", "TP1-TEST")
	mntV1  = valueobjects.NewVersionRef(mnt, 1)
	perV1  = valueobjects.NewVersionRef(person, 1)
)

func sampleBuilder() *GenerationBuilder {
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewGenerationBuilder()
	b.AddObject(mnt, []entities.ObjectVersion{{Ref: mntV1, ValidFrom: from}})
	b.AddObject(person, []entities.ObjectVersion{{Ref: perV1, ValidFrom: from}})
	b.AddEdge(entities.ReferenceEdge{Source: perV1, Target: mntV1, Attribute: "mnt-by"})
	b.AddEdge(entities.ReferenceEdge{Source: mntV1, Target: mntV1, Attribute: "mnt-by"})
	b.AddEdge(entities.ReferenceEdge{Source: mntV1, Target: perV1, Attribute: "admin-c"})
	b.AddEdge(entities.ReferenceEdge{Source: mntV1, Target: mntV1, Attribute: "mnt-by"})
	return b
}

func TestGenerationBuilder_Seal(t *testing.T) {
	// Act
	g := sampleBuilder().Seal(1, "run-1", time.Now(), 42)

	// Assert
	require.NoError(t, g.CheckTranspose())
	assert.Equal(t, Stats{Objects: 2, Versions: 2, Edges: 3}, g.Stats())
	assert.Equal(t, int64(42), g.Watermark)

	out := g.Outgoing(mntV1)
	require.Len(t, out, 2)
	assert.Equal(t, perV1, out[0].Target)
	assert.Equal(t, mntV1, out[1].Target)

	in := g.Incoming(mntV1)
	require.Len(t, in, 2)
	assert.Equal(t, mntV1, in[0].Source)
	assert.Equal(t, perV1, in[1].Source)

	assert.Nil(t, g.Outgoing(valueobjects.NewVersionRef(mnt, 2)))
	assert.True(t, g.Covers(mnt))
	assert.False(t, g.Covers(valueobjects.MustObjectID("mntner", "UNKNOWN-MNT")))
}

func TestGenerationBuilder_Seal_ChecksumIgnoresIdentity(t *testing.T) {
	first := sampleBuilder().Seal(1, "run-1", time.Now(), 10)
	second := sampleBuilder().Seal(2, "run-2", time.Now().Add(time.Hour), 10)

	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, first.Edges(), second.Edges())

	changed := sampleBuilder()
	changed.AddEdge(entities.ReferenceEdge{Source: perV1, Target: perV1, Attribute: "admin-c"})
	assert.NotEqual(t, first.Checksum, changed.Seal(3, "run-3", time.Now(), 10).Checksum)
}

func TestGeneration_Span_SameContent(t *testing.T) {
	// Arrange
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	built := entities.ObjectVersion{Ref: mntV1, ValidFrom: from, CollisionCount: 1, LastSequence: 4}
	b := NewGenerationBuilder()
	b.AddObject(mnt, []entities.ObjectVersion{built})
	g := b.Seal(1, "run-1", time.Now(), 4)

	// Act
	span, ok := g.Span(mntV1)

	// Assert
	require.True(t, ok)
	assert.True(t, span.SameContent(built))

	closedAt := from.Add(time.Minute)
	closed := built
	closed.ValidTo = &closedAt
	assert.True(t, span.SameContent(closed))

	collapsed := built
	collapsed.CollisionCount = 2
	collapsed.LastSequence = 9
	assert.False(t, span.SameContent(collapsed))

	replaced := built
	replaced.LastSequence = 9
	assert.False(t, span.SameContent(replaced))

	moved := built
	moved.ValidFrom = from.Add(time.Second)
	assert.False(t, span.SameContent(moved))
}

func TestGeneration_LatestLifetime(t *testing.T) {
	// Arrange
	first := valueobjects.NewVersionRef(mnt, 1)
	recreated := valueobjects.NewVersionRef(mnt, 1)
	recreated.Lifetime = 1
	b := NewGenerationBuilder()
	b.AddObject(mnt, []entities.ObjectVersion{{Ref: first}, {Ref: recreated}})
	b.AddObject(person, []entities.ObjectVersion{{Ref: perV1}})
	g := b.Seal(1, "run-1", time.Now(), 3)

	// Act
	mntLatest, mntOK := g.LatestLifetime(mnt)
	personLatest, personOK := g.LatestLifetime(person)
	_, unknownOK := g.LatestLifetime(valueobjects.MustObjectID("mntner", "UNKNOWN-MNT"))

	// Assert
	assert.True(t, mntOK)
	assert.Equal(t, 1, mntLatest)
	assert.True(t, personOK)
	assert.Equal(t, 0, personLatest)
	assert.False(t, unknownOK)
}

func TestPublisher_Publish(t *testing.T) {
	p := NewPublisher()
	assert.Nil(t, p.Current())

	older := sampleBuilder().Seal(p.NextID(), "a", time.Now(), 0)
	newer := sampleBuilder().Seal(p.NextID(), "b", time.Now(), 0)

	assert.True(t, p.Publish(newer))
	assert.False(t, p.Publish(older), "an older generation never replaces a newer one")
	assert.Same(t, newer, p.Current())
}

func TestPublisher_ConcurrentReaders(t *testing.T) {
	p := NewPublisher()
	p.Publish(sampleBuilder().Seal(p.NextID(), "seed", time.Now(), 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				g := p.Current()
				// a captured generation is always internally consistent
				assert.Len(t, g.Incoming(mntV1), 2)
				assert.Len(t, g.Outgoing(mntV1), 2)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		p.Publish(sampleBuilder().Seal(p.NextID(), "next", time.Now(), 0))
	}
	wg.Wait()
}
