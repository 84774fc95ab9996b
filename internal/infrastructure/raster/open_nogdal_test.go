//go:build !gdal

package raster

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sat-detect/internal/domain/entity"
)

func TestOpener_GDALWithoutBuildTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.tif")
	writeGeoTIFF(t, path, 4, 4, 1,
		func(x, y, _ int) uint8 { return uint8(x * y) },
		[3]float64{1, 1, 0}, [6]float64{0, 0, 0, 100, 20, 0})

	o, err := NewOpener(DriverGDAL)
	require.NoError(t, err)

	_, err = o.Open(path)
	require.True(t, errors.Is(err, entity.ErrRasterOpen))
	require.ErrorContains(t, err, "gdal")
}
