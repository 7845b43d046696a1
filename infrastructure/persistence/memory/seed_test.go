package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"rndindex/application/ports"
	"rndindex/domain/core/entities"
	"rndindex/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedDoc = `
changes:
  - objectType: mntner
    key: TEST-MNT
    operation: create
    timestamp: 2024-03-01T12:00:00Z
    attributes:
      - {name: mntner, value: TEST-MNT}
      - {name: mnt-by, value: TEST-MNT}
  - objectType: mntner
    key: TEST-MNT
    operation: delete
    timestamp: 2024-03-02T08:30:00Z
`

func TestLoadSeed(t *testing.T) {
	// Act
	records, err := LoadSeed(strings.NewReader(seedDoc))

	// Assert
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, valueobjects.ObjectType("mntner"), records[0].ObjectType)
	assert.Equal(t, entities.OperationCreate, records[0].Operation)
	assert.Equal(t, time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC), records[0].Timestamp.UTC())
	assert.Equal(t, []entities.Attribute{
		entities.NewAttribute("mntner", "TEST-MNT"),
		entities.NewAttribute("mnt-by", "TEST-MNT"),
	}, records[0].Attributes)
	assert.Equal(t, entities.OperationDelete, records[1].Operation)
}

func TestLoadSeed_AppendsInOrder(t *testing.T) {
	// Arrange
	records, err := LoadSeed(strings.NewReader(seedDoc))
	require.NoError(t, err)
	store := NewChangeLogStore()

	// Act
	require.NoError(t, store.Append(context.Background(), records...))
	changes, err := store.GetChanges(context.Background(), valueobjects.MustObjectID("mntner", "TEST-MNT"), ports.Latest)

	// Assert
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, int64(1), changes[0].Sequence)
	assert.Equal(t, int64(2), changes[1].Sequence)
}

func TestLoadSeed_DropsFixtureSequences(t *testing.T) {
	// Arrange
	doc := `
changes:
  - objectType: mntner
    key: LATE-MNT
    operation: create
    sequence: 5
    timestamp: 2024-03-03T09:00:00Z
`
	store := NewChangeLogStore()
	require.NoError(t, store.Append(context.Background(), entities.ChangeRecord{
		ObjectType: "mntner",
		Key:        "TEST-MNT",
		Operation:  entities.OperationCreate,
		Timestamp:  time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}))

	// Act
	records, err := LoadSeed(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), records...))
	watermark, err := store.Watermark(context.Background())
	require.NoError(t, err)

	// Assert
	require.Len(t, records, 1)
	assert.Zero(t, records[0].Sequence)
	assert.Equal(t, int64(2), watermark)
	ids, err := store.ListObjects(context.Background(), watermark)
	require.NoError(t, err)
	assert.Contains(t, ids, valueobjects.MustObjectID("mntner", "LATE-MNT"))
}

func TestLoadSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "changes:\n  - objectType: mntner\n    key: A\n    operation: create\n    timestamp: 2024-03-01T12:00:00Z\n    colour: red\n"},
		{"bad operation", "changes:\n  - objectType: mntner\n    key: A\n    operation: rename\n    timestamp: 2024-03-01T12:00:00Z\n"},
		{"missing key", "changes:\n  - objectType: mntner\n    operation: create\n    timestamp: 2024-03-01T12:00:00Z\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}
