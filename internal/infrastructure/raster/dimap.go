package raster

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/geo"
	"sat-detect/internal/domain/port"
)

// dimapDocument нужная часть заголовка .dim
type dimapDocument struct {
	XMLName    xml.Name `xml:"Dimap_Document"`
	Dimensions struct {
		NCols  int `xml:"NCOLS"`
		NRows  int `xml:"NROWS"`
		NBands int `xml:"NBANDS"`
	} `xml:"Raster_Dimensions"`
	DataFiles []struct {
		Path struct {
			Href string `xml:"href,attr"`
		} `xml:"DATA_FILE_PATH"`
		BandIndex int `xml:"BAND_INDEX"`
	} `xml:"Data_Access>Data_File"`
	TiePointGridFiles []struct {
		Path struct {
			Href string `xml:"href,attr"`
		} `xml:"TIE_POINT_GRID_FILE_PATH"`
		Index int `xml:"TIE_POINT_GRID_INDEX"`
	} `xml:"Data_Access>Tie_Point_Grid_File"`
	Bands []struct {
		Index int    `xml:"BAND_INDEX"`
		Name  string `xml:"BAND_NAME"`
	} `xml:"Image_Interpretation>Spectral_Band_Info"`
	TiePointGrids []struct {
		Index   int     `xml:"TIE_POINT_GRID_INDEX"`
		Name    string  `xml:"TIE_POINT_GRID_NAME"`
		NCols   int     `xml:"NCOLS"`
		NRows   int     `xml:"NROWS"`
		OffsetX float64 `xml:"OFFSET_X"`
		OffsetY float64 `xml:"OFFSET_Y"`
		StepX   float64 `xml:"STEP_X"`
		StepY   float64 `xml:"STEP_Y"`
	} `xml:"Tie_Point_Grids>Tie_Point_Grid_Info"`
	ImageToModel string `xml:"Geoposition>IMAGE_TO_MODEL_TRANSFORM"`
}

// DIMAP продукт BEAM-DIMAP: заголовок .dim и каналы ENVI в каталоге .data
type DIMAP struct {
	path      string
	info      entity.RasterInfo
	bandNames []string
	bands     map[string]*enviImage
	geocoding sceneGeoCoding
}

// sceneGeoCoding геокодирование сцены: пиксель -> (долгота, широта)
type sceneGeoCoding interface {
	geoPos(x, y float64) (lon, lat float64)
}

// OpenDIMAP открывает продукт по пути к .dim
func OpenDIMAP(path string) (*DIMAP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRasterOpen, err)
	}

	var doc dimapDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: parse: %v", entity.ErrRasterOpen, path, err)
	}
	if doc.Dimensions.NCols <= 0 || doc.Dimensions.NRows <= 0 {
		return nil, fmt.Errorf("%w: %s: empty raster dimensions", entity.ErrRasterOpen, path)
	}

	p := &DIMAP{
		path:  path,
		bands: make(map[string]*enviImage),
	}
	if err := p.openBands(&doc); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrRasterOpen, path, err)
	}
	if p.geocoding, err = p.openGeoCoding(&doc); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrRasterOpen, path, err)
	}

	p.info = entity.RasterInfo{
		Format: entity.FormatDIMAP,
		Width:  doc.Dimensions.NCols,
		Height: doc.Dimensions.NRows,
		Bands:  len(p.bandNames),
	}
	return p, nil
}

// openBands открывает каналы в порядке BAND_INDEX
func (p *DIMAP) openBands(doc *dimapDocument) error {
	files := make(map[int]string, len(doc.DataFiles))
	for _, df := range doc.DataFiles {
		files[df.BandIndex] = df.Path.Href
	}

	bands := doc.Bands
	sort.Slice(bands, func(i, j int) bool { return bands[i].Index < bands[j].Index })

	for _, b := range bands {
		href, ok := files[b.Index]
		if !ok {
			return fmt.Errorf("band %q has no data file", b.Name)
		}
		img, err := openENVI(p.resolve(href))
		if err != nil {
			return fmt.Errorf("band %q: %w", b.Name, err)
		}
		if img.samples != doc.Dimensions.NCols || img.lines != doc.Dimensions.NRows {
			img.Close()
			return fmt.Errorf("band %q is %dx%d, product is %dx%d",
				b.Name, img.samples, img.lines, doc.Dimensions.NCols, doc.Dimensions.NRows)
		}
		p.bands[b.Name] = img
		p.bandNames = append(p.bandNames, b.Name)
	}
	if len(p.bandNames) == 0 {
		return errors.New("product has no bands")
	}
	return nil
}

// openGeoCoding выбирает геокодирование: сетки привязочных точек latitude/longitude,
// иначе аффинное преобразование IMAGE_TO_MODEL_TRANSFORM
func (p *DIMAP) openGeoCoding(doc *dimapDocument) (sceneGeoCoding, error) {
	files := make(map[int]string, len(doc.TiePointGridFiles))
	for _, f := range doc.TiePointGridFiles {
		files[f.Index] = f.Path.Href
	}

	var lat, lon *tiePointGrid
	for _, info := range doc.TiePointGrids {
		name := strings.ToLower(info.Name)
		if name != "latitude" && name != "longitude" && name != "lat" && name != "lon" {
			continue
		}
		href, ok := files[info.Index]
		if !ok {
			return nil, fmt.Errorf("tie point grid %q has no data file", info.Name)
		}
		grid, err := loadTiePointGrid(p.resolve(href), info.NCols, info.NRows, info.OffsetX, info.OffsetY, info.StepX, info.StepY)
		if err != nil {
			return nil, fmt.Errorf("tie point grid %q: %w", info.Name, err)
		}
		if strings.HasPrefix(name, "lat") {
			lat = grid
		} else {
			lon = grid
		}
	}
	if lat != nil && lon != nil {
		return &tiePointGeoCoding{lat: lat, lon: lon}, nil
	}

	if strings.TrimSpace(doc.ImageToModel) != "" {
		affine, err := parseImageToModel(doc.ImageToModel)
		if err != nil {
			return nil, err
		}
		return crsGeoCoding{affine: affine}, nil
	}
	return nil, errors.New("product has no scene geocoding")
}

func (p *DIMAP) resolve(href string) string {
	if filepath.IsAbs(href) {
		return href
	}
	return filepath.Join(filepath.Dir(p.path), filepath.FromSlash(href))
}

// Info возвращает размеры продукта
func (p *DIMAP) Info() entity.RasterInfo {
	return p.info
}

// BandNames возвращает имена каналов в порядке продукта
func (p *DIMAP) BandNames() []string {
	return p.bandNames
}

// PixelToGeo возвращает (долгота, широта) через геокодирование сцены
func (p *DIMAP) PixelToGeo(x, y float64) (float64, float64, error) {
	lon, lat := p.geocoding.geoPos(x, y)
	return lon, lat, nil
}

// ReadTile читает окно: каждый канал по имени в плоский буфер, затем в массив тайла
func (p *DIMAP) ReadTile(window entity.Window, bands int, scale float64) (*entity.Tile, error) {
	if err := checkRead(p.info, window, bands, scale); err != nil {
		return nil, err
	}

	rows := entity.ScaledSize(window.Height, scale)
	cols := entity.ScaledSize(window.Width, scale)
	tile := entity.NewTile(window, rows, cols, bands)
	for b := 0; b < bands; b++ {
		plane, err := p.readBand(p.bandNames[b], window, rows, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: band %q window %s: %v", entity.ErrTileRead, p.bandNames[b], window, err)
		}
		tile.SetBand(b, plane)
	}
	return tile, nil
}

// readBand читает канал name в буфер rows*cols; при уменьшении читаются только нужные строки
func (p *DIMAP) readBand(name string, window entity.Window, rows, cols int) ([]float32, error) {
	img := p.bands[name]
	row := make([]float32, window.Width)
	plane := make([]float32, rows*cols)
	lastY := -1
	for y := 0; y < rows; y++ {
		sy := window.Y + entity.NearestIndex(y, window.Height, rows)
		if sy != lastY {
			if err := img.readRow(sy, window.X, window.Width, row); err != nil {
				return nil, err
			}
			lastY = sy
		}
		for x := 0; x < cols; x++ {
			plane[y*cols+x] = row[entity.NearestIndex(x, window.Width, cols)]
		}
	}
	return plane, nil
}

// Close закрывает файлы каналов
func (p *DIMAP) Close() error {
	var errs []error
	for _, img := range p.bands {
		if err := img.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.bands = map[string]*enviImage{}
	return errors.Join(errs...)
}

// parseImageToModel разбирает матрицу AffineTransform в порядке m00,m10,m01,m11,m02,m12
func parseImageToModel(s string) (geo.Affine, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 6 {
		return geo.Affine{}, fmt.Errorf("image to model transform: expected 6 values, got %d", len(parts))
	}
	var m [6]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geo.Affine{}, fmt.Errorf("image to model transform: %w", err)
		}
		m[i] = v
	}
	return geo.Affine{
		OriginX: m[4],
		ScaleX:  m[0],
		SkewX:   m[2],
		OriginY: m[5],
		SkewY:   m[1],
		ScaleY:  m[3],
	}, nil
}

// charsetReader заголовки BEAM-DIMAP обычно объявлены в ISO-8859-1
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "iso8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

var _ port.RasterSource = (*DIMAP)(nil)
