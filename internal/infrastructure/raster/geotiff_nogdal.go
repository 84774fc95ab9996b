//go:build !gdal
// +build !gdal

package raster

import (
	"errors"
	"fmt"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

var errNoGDAL = errors.New("gdal build tag is not enabled")

// openGDAL возвращает ошибку, если сборка без тега gdal
func openGDAL(path string) (port.RasterSource, error) {
	return nil, fmt.Errorf("%w: %s: %v", entity.ErrRasterOpen, path, errNoGDAL)
}
