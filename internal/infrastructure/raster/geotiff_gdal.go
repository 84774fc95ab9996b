//go:build gdal
// +build gdal

package raster

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/geo"
	"sat-detect/internal/domain/port"
)

var registerGDAL sync.Once

// GDALRaster стандартный растр, открытый через GDAL.
// Окна читаются по каналам вызовом Band.Read, набор данных GDAL не потокобезопасен.
type GDALRaster struct {
	mu     sync.Mutex
	path   string
	ds     *godal.Dataset
	info   entity.RasterInfo
	affine geo.Affine
}

// OpenGDAL открывает растр через GDAL
func OpenGDAL(path string) (*GDALRaster, error) {
	registerGDAL.Do(godal.RegisterAll)

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrRasterOpen, path, err)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("%w: %s: no geotransform: %v", entity.ErrRasterOpen, path, err)
	}

	st := ds.Structure()
	return &GDALRaster{
		path: path,
		ds:   ds,
		info: entity.RasterInfo{
			Format: entity.FormatGeoTIFF,
			Width:  st.SizeX,
			Height: st.SizeY,
			Bands:  st.NBands,
		},
		affine: geo.AffineFromGeoTransform(gt),
	}, nil
}

// Info возвращает размеры растра
func (g *GDALRaster) Info() entity.RasterInfo {
	return g.info
}

// PixelToGeo переводит пиксель в координаты привязки
func (g *GDALRaster) PixelToGeo(x, y float64) (float64, float64, error) {
	a, b := g.affine.Apply(x, y)
	return a, b, nil
}

// ReadTile читает окно по каналам, уменьшение делает GDAL ближайшим соседом
func (g *GDALRaster) ReadTile(window entity.Window, bands int, scale float64) (*entity.Tile, error) {
	if err := checkRead(g.info, window, bands, scale); err != nil {
		return nil, err
	}

	rows := entity.ScaledSize(window.Height, scale)
	cols := entity.ScaledSize(window.Width, scale)
	tile := entity.NewTile(window, rows, cols, bands)
	plane := make([]float32, rows*cols)

	g.mu.Lock()
	defer g.mu.Unlock()

	dsBands := g.ds.Bands()
	for b := 0; b < bands; b++ {
		err := dsBands[b].Read(window.X, window.Y, plane, cols, rows,
			godal.Window(window.Width, window.Height),
			godal.Resampling(godal.Nearest),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: band %d: %v", entity.ErrTileRead, g.path, b+1, err)
		}
		tile.SetBand(b, plane)
	}
	return tile, nil
}

// Close закрывает набор данных GDAL
func (g *GDALRaster) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ds.Close()
}

// openGDAL нужен Opener при драйвере gdal
func openGDAL(path string) (port.RasterSource, error) {
	return OpenGDAL(path)
}

var _ port.RasterSource = (*GDALRaster)(nil)
