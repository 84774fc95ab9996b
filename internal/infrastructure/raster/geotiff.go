package raster

import (
	"errors"
	"fmt"
	"os"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/geo"
	"sat-detect/internal/domain/port"
)

// GeoTIFF растр GeoTIFF с аффинной привязкой.
// Пиксели не держатся в памяти: ReadTile распаковывает только полосы или тайлы,
// попавшие в окно. Чтение идёт через ReadAt, поэтому окна можно читать параллельно.
type GeoTIFF struct {
	path   string
	file   *os.File
	tags   *geoTags
	info   entity.RasterInfo
	affine geo.Affine
	sample func(data []byte, i int) float32
}

// OpenGeoTIFF открывает файл GeoTIFF
func OpenGeoTIFF(path string) (*GeoTIFF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRasterOpen, err)
	}

	tags, err := readGeoTags(f)
	if err == nil {
		err = tags.validate()
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrRasterOpen, path, err)
	}

	affine, err := affineFromTags(tags)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrRasterOpen, path, err)
	}

	return &GeoTIFF{
		path: path,
		file: f,
		tags: tags,
		info: entity.RasterInfo{
			Format: entity.FormatGeoTIFF,
			Width:  tags.width,
			Height: tags.height,
			Bands:  tags.samplesPerPixel,
		},
		affine: affine,
		sample: tags.sampleReader(),
	}, nil
}

// affineFromTags собирает привязку из ModelTransformation или пары Tiepoint + PixelScale
func affineFromTags(tags *geoTags) (geo.Affine, error) {
	if len(tags.transform) >= 16 {
		m := tags.transform
		return geo.Affine{
			OriginX: m[3],
			ScaleX:  m[0],
			SkewX:   m[1],
			OriginY: m[7],
			SkewY:   m[4],
			ScaleY:  m[5],
		}, nil
	}
	if len(tags.tiepoints) >= 6 && len(tags.pixelScale) >= 2 {
		i, j := tags.tiepoints[0], tags.tiepoints[1]
		x, y := tags.tiepoints[3], tags.tiepoints[4]
		sx, sy := tags.pixelScale[0], tags.pixelScale[1]
		return geo.Affine{
			OriginX: x - i*sx,
			ScaleX:  sx,
			OriginY: y + j*sy,
			ScaleY:  -sy,
		}, nil
	}
	return geo.Affine{}, errors.New("no georeferencing tags")
}

// Info возвращает размеры растра
func (g *GeoTIFF) Info() entity.RasterInfo {
	return g.info
}

// PixelToGeo переводит пиксель в координаты привязки
func (g *GeoTIFF) PixelToGeo(x, y float64) (float64, float64, error) {
	a, b := g.affine.Apply(x, y)
	return a, b, nil
}

// ReadTile читает окно растра, в памяти держится только текущий ряд кусков
func (g *GeoTIFF) ReadTile(window entity.Window, bands int, scale float64) (*entity.Tile, error) {
	if err := checkRead(g.info, window, bands, scale); err != nil {
		return nil, err
	}

	rows := entity.ScaledSize(window.Height, scale)
	cols := entity.ScaledSize(window.Width, scale)
	tile := entity.NewTile(window, rows, cols, bands)

	chunks := make(map[int][]byte)
	chunkRow := -1
	for y := 0; y < rows; y++ {
		sy := window.Y + entity.NearestIndex(y, window.Height, rows)
		if r := g.tags.chunkRow(sy); r != chunkRow {
			clear(chunks)
			chunkRow = r
		}
		for x := 0; x < cols; x++ {
			sx := window.X + entity.NearestIndex(x, window.Width, cols)
			for b := 0; b < bands; b++ {
				chunk, i := g.tags.locate(sx, sy, b)
				data, ok := chunks[chunk]
				if !ok {
					var err error
					if data, err = g.tags.decodeChunk(g.file, chunk); err != nil {
						return nil, fmt.Errorf("%w: %s: %v", entity.ErrTileRead, g.path, err)
					}
					chunks[chunk] = data
				}
				tile.Set(y, x, b, g.sample(data, i))
			}
		}
	}
	return tile, nil
}

// Close закрывает файл
func (g *GeoTIFF) Close() error {
	return g.file.Close()
}

// checkRead проверяет окно до чтения: растр сам окна не обрезает
func checkRead(info entity.RasterInfo, window entity.Window, bands int, scale float64) error {
	if !window.Contains(info.Width, info.Height) {
		return fmt.Errorf("%w: window %s outside raster %dx%d", entity.ErrTileRead, window, info.Width, info.Height)
	}
	if bands <= 0 || bands > info.Bands {
		return fmt.Errorf("%w: requested %d bands, raster has %d", entity.ErrTileRead, bands, info.Bands)
	}
	if scale <= 0 {
		return fmt.Errorf("%w: scale factor must be positive, got %v", entity.ErrTileRead, scale)
	}
	return nil
}

var _ port.RasterSource = (*GeoTIFF)(nil)
