package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorlog/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigratesToLatest(t *testing.T) {
	s := openTestStore(t)

	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	v, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	require.NoError(t, s.MigrateUp())
	v, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.UpsertRecording(ctx, Recording{ID: "r", AppID: "a", Path: "/p"}))
	recs, err := s.ListRecordings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecordingsAndEntities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRecording(ctx, Recording{ID: "rec-1", AppID: "demo", Path: "/tmp/one.sllog", StartNs: 100}))
	require.NoError(t, s.UpsertRecording(ctx, Recording{ID: "rec-2", AppID: "other", Path: "/tmp/two.sllog", StartNs: 200}))

	require.NoError(t, s.RecordEntity(ctx, "rec-1", "/world/points", "Points3D", 12000, 10))
	require.NoError(t, s.RecordEntity(ctx, "rec-1", "/world/points", "Points3D", 12000, 5))
	require.NoError(t, s.RecordEntity(ctx, "rec-1", "/image", "Image", 300, 20))

	require.NoError(t, s.UpsertRecording(ctx, Recording{ID: "rec-1", AppID: "demo", Path: "/tmp/one.sllog", StartNs: 100, EndNs: 20, Messages: 3, Bytes: 24300}))

	r, err := s.GetRecording(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.Messages)
	assert.Equal(t, int64(24300), r.Bytes)
	assert.Equal(t, int64(20), r.EndNs)
	assert.False(t, r.CreatedAt.IsZero())

	entities, err := s.ListEntities(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "/image", entities[0].Path)
	assert.Equal(t, "/world/points", entities[1].Path)
	assert.Equal(t, int64(2), entities[1].Messages)
	assert.Equal(t, int64(24000), entities[1].Bytes)
	assert.Equal(t, int64(10), entities[1].LastTimeNs)

	all, err := s.ListRecordings(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "rec-2", all[0].ID, "newest first")

	demo, err := s.ListRecordings(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, demo, 1)
	assert.Equal(t, "rec-1", demo[0].ID)
}

func TestEntityRequiresRecording(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordEntity(context.Background(), "missing", "/p", "Points3D", 1, 1)
	assert.Error(t, err)
}

func TestDeleteRecordingCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRecording(ctx, Recording{ID: "rec", AppID: "a", Path: "/p"}))
	require.NoError(t, s.RecordEntity(ctx, "rec", "/e", "Image", 1, 1))
	require.NoError(t, s.DeleteRecording(ctx, "rec"))

	_, err := s.GetRecording(ctx, "rec")
	assert.ErrorIs(t, err, ErrNotFound)
	entities, err := s.ListEntities(ctx, "rec")
	require.NoError(t, err)
	assert.Empty(t, entities)

	assert.ErrorIs(t, s.DeleteRecording(ctx, "rec"), ErrNotFound)
}
