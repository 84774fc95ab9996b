package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sat-detect/internal/domain/entity"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "detections.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testResult() *entity.PredictionResult {
	return &entity.PredictionResult{
		Source:   "/data/scene.tif",
		Basename: "scene",
		Info:     entity.RasterInfo{Format: entity.FormatGeoTIFF, Width: 2050, Height: 1025, Bands: 3},
		Tiles:    2,
		Records: []entity.Record{
			{Kind: entity.RecordExtent, A: 105, B: 21, A2: 105.5, B2: 20.5},
			{Kind: entity.RecordPoint, A: 105.1, B: 20.9, Width: 100, Height: 50, Score: 0.75, Label: 1},
			{Kind: entity.RecordPoint, A: 300000, B: 2300000, Width: 25, Height: 25, Score: 0.5, UTMFallback: true, Warning: "out of range"},
		},
	}
}

func TestSQLiteStore_WriteAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, testResult()))

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	require.Equal(t, "scene", run.Basename)
	require.Equal(t, 2050, run.Width)
	require.Equal(t, 2, run.Tiles)
	require.Equal(t, 2, run.Detections)
	require.Equal(t, 105.0, run.Extent.A)
	require.Equal(t, 20.5, run.Extent.B2)
	require.False(t, run.CreatedAt.IsZero())

	records, err := store.Detections(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, testResult().Points(), records)
}

func TestSQLiteStore_RunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testResult()
	second := testResult()
	second.Basename = "other"
	second.Records = second.Records[:1]

	require.NoError(t, store.Write(ctx, first))
	require.NoError(t, store.Write(ctx, second))

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "other", runs[0].Basename)
	require.Equal(t, 0, runs[0].Detections)
}

func TestSQLiteStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Equal(t, entity.ImageTypePlanet, user.ImageType)

	require.NoError(t, store.UpdateImageType(ctx, 7, entity.ImageTypeTerraSAR))
	require.NoError(t, store.UpdateState(ctx, 7, entity.StateAwaitingImage))

	user, err = store.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, int64(70), user.ChatID)
	require.Equal(t, entity.StateAwaitingImage, user.State)
	require.Equal(t, entity.ImageTypeTerraSAR, user.ImageType)
}
