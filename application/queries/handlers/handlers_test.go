package handlers

import (
	"context"
	"testing"
	"time"

	"rndindex/application/queries"
	"rndindex/application/services"
	"rndindex/domain/core/entities"
	"rndindex/domain/graph"
	"rndindex/domain/references"
	"rndindex/domain/versioning"
	"rndindex/infrastructure/messaging"
	"rndindex/infrastructure/persistence/memory"
	"rndindex/pkg/observability"
	"rndindex/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *memory.ChangeLogStore
	builder  *services.ReferenceGraphBuilder
	versions *GetVersionHandler
	listing  *ListVersionsHandler
	status   *IndexStatusHandler
}

func newFixture(t *testing.T, log *testutil.ChangeLogBuilder) fixture {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewChangeLogStore()
	if log != nil {
		require.NoError(t, store.Append(context.Background(), log.Records()...))
	}

	histories := versioning.NewBuilder(time.Second)
	metrics := observability.NewMetrics("test", nil, logger)
	builder := services.NewReferenceGraphBuilder(
		store,
		histories,
		references.NewExtractor(references.DefaultTable()),
		graph.NewPublisher(),
		memory.NewRebuildLock(),
		messaging.NewLogPublisher(logger),
		metrics,
		observability.NewTracer("test", false),
		logger,
		services.BuilderOptions{Concurrency: 2},
	)

	return fixture{
		store:    store,
		builder:  builder,
		versions: NewGetVersionHandler(store, histories, builder, "TEST", metrics, logger),
		listing:  NewListVersionsHandler(store, histories, "TEST", logger),
		status:   NewIndexStatusHandler(builder, logger),
	}
}

func (f fixture) rebuild(t *testing.T) {
	t.Helper()
	_, err := f.builder.Rebuild(context.Background(), services.TriggerManual)
	require.NoError(t, err)
}

func (f fixture) get(t *testing.T, source, objectType, key string, version int) *queries.GetVersionResult {
	t.Helper()
	result, err := f.versions.Handle(context.Background(), queries.GetVersionQuery{
		Source:     source,
		ObjectType: objectType,
		Key:        key,
		Version:    version,
	})
	require.NoError(t, err)
	return result
}

func maintainerLog() *testutil.ChangeLogBuilder {
	return testutil.NewChangeLog(testutil.BaseTime).
		Create("mntner", "TEST-MNT", 0,
			"mntner: TEST-MNT", "auth: MD5-PW x", "mnt-by: TEST-MNT").
		Create("person", "TP1-TEST", time.Second,
			"person: Test Person", "nic-hdl: TP1-TEST", "mnt-by: TEST-MNT").
		Create("mntner", "UNREF-MNT", 2*time.Second,
			"mntner: UNREF-MNT", "mnt-by: OWNER-MNT")
}

func TestGetVersionHandler_Handle_SelfAndIncomingReferences(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())
	f.rebuild(t)

	// Act
	result := f.get(t, "test", "mntner", "test-mnt", 1)

	// Assert
	require.False(t, result.NotFound)
	assert.True(t, result.Indexed)
	assert.Equal(t, "mntner", result.Object.Type)
	assert.Equal(t, "TEST-MNT", result.Object.PrimaryKey)
	assert.Equal(t, "TEST", result.Object.Source)
	assert.Equal(t, 1, result.Version.Revision)
	assert.Equal(t, "2024-03-01T12:00:00Z", result.Version.From)
	assert.Empty(t, result.Version.To)
	assert.Empty(t, result.Messages)

	require.Len(t, result.Outgoing, 1)
	assert.Equal(t, "mntner", result.Outgoing[0].Type)
	assert.Equal(t, "TEST-MNT", result.Outgoing[0].Key)
	assert.Equal(t, 1, result.Outgoing[0].Revision)
	assert.Equal(t, []string{"mnt-by"}, result.Outgoing[0].Attributes)
	assert.Equal(t, "/api/rnd/TEST/mntner/TEST-MNT/versions/1", result.Outgoing[0].Link)

	require.Len(t, result.Incoming, 2)
	assert.Equal(t, "TEST-MNT", result.Incoming[0].Key)
	assert.Equal(t, "person", result.Incoming[1].Type)
	assert.Equal(t, "TP1-TEST", result.Incoming[1].Key)
	assert.Equal(t, []string{"mnt-by"}, result.Incoming[1].Attributes)
	assert.Equal(t, "2024-03-01T12:00:01Z", result.Incoming[1].From)
}

func TestGetVersionHandler_Handle_VersionOutOfRange(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())
	f.rebuild(t)

	for _, version := range []int{0, 2, -1} {
		// Act
		result := f.get(t, "TEST", "mntner", "TEST-MNT", version)

		// Assert
		assert.True(t, result.NotFound)
		assert.Nil(t, result.Object)
		require.Len(t, result.Messages, 1)
		assert.Equal(t, "There is no entry for object TEST-MNT for the supplied version.", result.Messages[0].Text)
	}
}

func TestGetVersionHandler_Handle_UnknownObject(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())

	// Act
	result := f.get(t, "TEST", "mntner", "NOPE-MNT", 1)

	// Assert
	assert.True(t, result.NotFound)
	assert.Equal(t, "There is no entry for object NOPE-MNT for the supplied version.", result.Messages[0].Text)
}

func TestGetVersionHandler_Handle_UnreferencedObjectHasNoEdges(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())
	f.rebuild(t)

	// Act
	result := f.get(t, "TEST", "mntner", "UNREF-MNT", 1)

	// Assert
	require.False(t, result.NotFound)
	assert.True(t, result.Indexed)
	assert.Nil(t, result.Outgoing)
	assert.Nil(t, result.Incoming)
}

func TestGetVersionHandler_Handle_CollisionWarning(t *testing.T) {
	// Arrange
	log := testutil.NewChangeLog(testutil.BaseTime).
		Create("mntner", "TEST-MNT", 0, "mntner: TEST-MNT", "descr: one").
		Modify("mntner", "TEST-MNT", 200*time.Millisecond, "mntner: TEST-MNT", "descr: two").
		Modify("mntner", "TEST-MNT", 400*time.Millisecond, "mntner: TEST-MNT", "descr: three")
	f := newFixture(t, log)
	f.rebuild(t)

	// Act
	result := f.get(t, "TEST", "mntner", "TEST-MNT", 1)

	// Assert
	require.False(t, result.NotFound)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, entities.SeverityWarning, result.Messages[0].Severity)
	assert.Equal(t, "There are 3 versions of the object for this interval. The last one is displayed.", result.Messages[0].Text)
	assert.Contains(t, result.Object.Attributes, entities.NewAttribute("descr", "three"))
	assert.Equal(t, 3, result.Version.CollisionCount)
}

func TestGetVersionHandler_Handle_SourceMismatch(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())
	f.rebuild(t)

	// Act
	result := f.get(t, "OTHER", "mntner", "TEST-MNT", 1)

	// Assert
	assert.True(t, result.NotFound)
	assert.Equal(t, "There is no entry for object TEST-MNT for the supplied version.", result.Messages[0].Text)
}

func TestGetVersionHandler_Handle_VersionNotYetIndexed(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())
	f.rebuild(t)
	require.NoError(t, f.store.Append(context.Background(), entities.ChangeRecord{
		ObjectType: "mntner",
		Key:        "LATE-MNT",
		Operation:  entities.OperationCreate,
		Attributes: testutil.Attrs("mntner: LATE-MNT", "mnt-by: TEST-MNT"),
		Timestamp:  testutil.BaseTime.Add(time.Hour),
	}))

	// Act
	result := f.get(t, "TEST", "mntner", "LATE-MNT", 1)

	// Assert
	require.False(t, result.NotFound)
	assert.False(t, result.Indexed)
	assert.Nil(t, result.Outgoing)
	assert.Equal(t, "LATE-MNT", result.Object.PrimaryKey)
}

func TestGetVersionHandler_Handle_SameSecondChangeAfterRebuild(t *testing.T) {
	// Arrange
	log := testutil.NewChangeLog(testutil.BaseTime).
		Create("mntner", "A-MNT", 0, "mntner: A-MNT", "mnt-by: A-MNT")
	f := newFixture(t, log)
	f.rebuild(t)
	require.NoError(t, f.store.Append(context.Background(), entities.ChangeRecord{
		ObjectType: "mntner",
		Key:        "A-MNT",
		Operation:  entities.OperationModify,
		Attributes: testutil.Attrs("mntner: A-MNT", "descr: unmaintained"),
		Timestamp:  testutil.BaseTime.Add(500 * time.Millisecond),
	}))

	// Act
	result := f.get(t, "TEST", "mntner", "A-MNT", 1)

	// Assert
	require.False(t, result.NotFound)
	assert.NotZero(t, result.Generation)
	assert.False(t, result.Indexed)
	assert.Nil(t, result.Outgoing)
	assert.Nil(t, result.Incoming)
	assert.Equal(t, 2, result.Version.CollisionCount)
	assert.NotContains(t, result.Object.Attributes, entities.NewAttribute("mnt-by", "A-MNT"))
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "There are 2 versions of the object for this interval. The last one is displayed.", result.Messages[0].Text)

	// Act
	f.rebuild(t)
	rebuilt := f.get(t, "TEST", "mntner", "A-MNT", 1)

	// Assert
	assert.True(t, rebuilt.Indexed)
	assert.Nil(t, rebuilt.Outgoing)
	assert.Nil(t, rebuilt.Incoming)
}

func recreatedMaintainerLog() *testutil.ChangeLogBuilder {
	return testutil.NewChangeLog(testutil.BaseTime).
		Create("mntner", "A-MNT", 0, "mntner: A-MNT").
		Modify("mntner", "A-MNT", time.Minute, "mntner: A-MNT", "descr: second").
		Create("person", "P1-TEST", 2*time.Minute, "person: Person One", "nic-hdl: P1-TEST", "mnt-by: A-MNT").
		Delete("mntner", "A-MNT", 3*time.Minute).
		Create("mntner", "A-MNT", 4*time.Minute, "mntner: A-MNT", "descr: recreated").
		Create("person", "P2-TEST", 5*time.Minute, "person: Person Two", "nic-hdl: P2-TEST", "mnt-by: A-MNT")
}

func TestGetVersionHandler_Handle_ReferenceIntoEarlierLifetimeHasNoLink(t *testing.T) {
	// Arrange
	f := newFixture(t, recreatedMaintainerLog())
	f.rebuild(t)

	// Act
	result := f.get(t, "TEST", "person", "P1-TEST", 1)

	// Assert
	require.False(t, result.NotFound)
	assert.True(t, result.Indexed)
	require.Len(t, result.Outgoing, 1)
	ref := result.Outgoing[0]
	assert.Equal(t, "A-MNT", ref.Key)
	assert.Equal(t, 0, ref.Lifetime)
	assert.Equal(t, 2, ref.Revision)
	assert.Equal(t, []string{"mnt-by"}, ref.Attributes)
	assert.Equal(t, "2024-03-01T12:01:00Z", ref.From)
	assert.Equal(t, "2024-03-01T12:03:00Z", ref.To)
	assert.Empty(t, ref.Link)
}

func TestGetVersionHandler_Handle_ReferenceIntoLatestLifetimeKeepsLink(t *testing.T) {
	// Arrange
	f := newFixture(t, recreatedMaintainerLog())
	f.rebuild(t)

	// Act
	result := f.get(t, "TEST", "person", "P2-TEST", 1)

	// Assert
	require.Len(t, result.Outgoing, 1)
	ref := result.Outgoing[0]
	assert.Equal(t, 1, ref.Lifetime)
	assert.Equal(t, 1, ref.Revision)
	assert.Equal(t, "/api/rnd/TEST/mntner/A-MNT/versions/1", ref.Link)

	// Act
	target := f.get(t, "TEST", "mntner", "A-MNT", 1)

	// Assert
	require.False(t, target.NotFound)
	assert.Equal(t, "2024-03-01T12:04:00Z", target.Version.From)
	require.Len(t, target.Incoming, 1)
	assert.Equal(t, "P2-TEST", target.Incoming[0].Key)
}

func TestGetVersionHandler_Handle_BeforeFirstRebuild(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())

	// Act
	result := f.get(t, "TEST", "mntner", "TEST-MNT", 1)

	// Assert
	require.False(t, result.NotFound)
	assert.False(t, result.Indexed)
	assert.Zero(t, result.Generation)
}

func TestGetVersionHandler_Handle_ValidationError(t *testing.T) {
	// Arrange
	f := newFixture(t, nil)

	// Act
	_, err := f.versions.Handle(context.Background(), queries.GetVersionQuery{Source: "TEST", Version: 1})

	// Assert
	assert.Error(t, err)
}

func TestListVersionsHandler_Handle(t *testing.T) {
	// Arrange
	log := testutil.NewChangeLog(testutil.BaseTime).
		Create("person", "TP1-TEST", 0, "person: Test Person", "nic-hdl: TP1-TEST").
		Delete("person", "TP1-TEST", time.Minute).
		Create("person", "TP1-TEST", time.Hour, "person: Test Person", "nic-hdl: TP1-TEST").
		Modify("person", "TP1-TEST", 2*time.Hour, "person: Renamed Person", "nic-hdl: TP1-TEST")
	f := newFixture(t, log)

	// Act
	result, err := f.listing.Handle(context.Background(), queries.ListVersionsQuery{
		Source:     "TEST",
		ObjectType: "person",
		Key:        "tp1-test",
	})

	// Assert
	require.NoError(t, err)
	require.False(t, result.NotFound)
	assert.Equal(t, "person", result.Type)
	assert.Equal(t, "TP1-TEST", result.PrimaryKey)
	assert.False(t, result.Deleted)
	require.Len(t, result.Versions, 2)
	assert.Equal(t, 1, result.Versions[0].Revision)
	assert.Equal(t, "2024-03-01T13:00:00Z", result.Versions[0].From)
	assert.Equal(t, "2024-03-01T14:00:00Z", result.Versions[0].To)
	assert.Equal(t, 2, result.Versions[1].Revision)
	assert.Empty(t, result.Versions[1].To)
}

func TestListVersionsHandler_Handle_UnknownObject(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())

	// Act
	result, err := f.listing.Handle(context.Background(), queries.ListVersionsQuery{
		Source:     "TEST",
		ObjectType: "mntner",
		Key:        "NOPE-MNT",
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, result.NotFound)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "There is no entry for object NOPE-MNT.", result.Messages[0].Text)
}

func TestIndexStatusHandler_Handle(t *testing.T) {
	// Arrange
	f := newFixture(t, maintainerLog())

	// Act
	before, err := f.status.Handle(context.Background(), queries.IndexStatusQuery{})
	require.NoError(t, err)
	f.rebuild(t)
	after, err := f.status.Handle(context.Background(), queries.IndexStatusQuery{})
	require.NoError(t, err)

	// Assert
	assert.Nil(t, before.Generation)
	assert.True(t, before.Stale)
	assert.Equal(t, services.RunStateIdle, before.LastRun.State)

	require.NotNil(t, after.Generation)
	assert.False(t, after.Stale)
	assert.Equal(t, services.RunStateSucceeded, after.LastRun.State)
	assert.Equal(t, services.TriggerManual, after.LastRun.Trigger)
	assert.Equal(t, after.Generation.ID, after.LastRun.GenerationID)
	assert.Equal(t, int64(3), after.Generation.Watermark)
	assert.Equal(t, graph.Stats{Objects: 3, Versions: 3, Edges: 2, DanglingReferences: 1}, after.Generation.Stats)
}
