package raster

import (
	"fmt"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

// Драйверы чтения GeoTIFF
const (
	DriverNative = "native" // встроенный декодер полос и тайлов
	DriverGDAL   = "gdal"   // GDAL, нужна сборка с тегом gdal
)

// Opener открывает растр нужного формата по расширению
type Opener struct {
	driver string
}

// NewOpener создаёт Opener. Пустой driver означает DriverNative.
func NewOpener(driver string) (*Opener, error) {
	switch driver {
	case "":
		driver = DriverNative
	case DriverNative, DriverGDAL:
	default:
		return nil, fmt.Errorf("unknown raster driver %q (expected native or gdal)", driver)
	}
	return &Opener{driver: driver}, nil
}

// Open открывает GeoTIFF или продукт BEAM-DIMAP
func (o *Opener) Open(path string) (port.RasterSource, error) {
	format, err := entity.FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch {
	case format == entity.FormatGeoTIFF && o.driver == DriverGDAL:
		return openGDAL(path)
	case format == entity.FormatGeoTIFF:
		return OpenGeoTIFF(path)
	default:
		return OpenDIMAP(path)
	}
}

var _ port.RasterOpener = (*Opener)(nil)
