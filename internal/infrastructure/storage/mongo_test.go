package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildMongoDocuments(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run, docs := BuildMongoDocuments(testResult(), now)

	require.Equal(t, "scene", run.Basename)
	require.Equal(t, now, run.CreatedAt)
	require.NotNil(t, run.Extent)
	require.Len(t, run.Extent.Coordinates[0], 5)
	require.Equal(t, []float64{105, 21}, run.Extent.Coordinates[0][0])

	require.Len(t, docs, 2)
	for i, d := range docs {
		require.Equal(t, run.ID, d.RunID)
		require.Equal(t, i, d.Seq)
	}
	require.Equal(t, &GeoPoint{Type: "Point", Coordinates: []float64{105.1, 20.9}}, docs[0].Location)

	// координаты вне диапазона не попадают в 2dsphere индекс
	require.Nil(t, docs[1].Location)
	require.Equal(t, 300000.0, docs[1].CoordA)
	require.Equal(t, "out of range", docs[1].Warning)
}

func TestBuildMongoDocuments_NoExtent(t *testing.T) {
	result := testResult()
	result.Records = result.Records[1:2]

	run, docs := BuildMongoDocuments(result, time.Now())
	require.Nil(t, run.Extent)
	require.Len(t, docs, 1)
}
