package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

// fakeSource растр, отдающий нулевые тайлы и считающий координаты функцией geo
type fakeSource struct {
	info     entity.RasterInfo
	geo      func(x, y float64) (float64, float64)
	failRead func(w entity.Window) error

	mu     sync.Mutex
	reads  []entity.Window
	closed bool
}

func newFakeSource(width, height, bands int) *fakeSource {
	return &fakeSource{
		info: entity.RasterInfo{Format: entity.FormatGeoTIFF, Width: width, Height: height, Bands: bands},
		geo: func(x, y float64) (float64, float64) {
			return 105 + x*0.001, 21 - y*0.001
		},
	}
}

func (s *fakeSource) Info() entity.RasterInfo { return s.info }

func (s *fakeSource) ReadTile(w entity.Window, bands int, scale float64) (*entity.Tile, error) {
	s.mu.Lock()
	s.reads = append(s.reads, w)
	s.mu.Unlock()

	if s.failRead != nil {
		if err := s.failRead(w); err != nil {
			return nil, err
		}
	}
	rows := entity.ScaledSize(w.Height, scale)
	cols := entity.ScaledSize(w.Width, scale)
	return entity.NewTile(w, rows, cols, bands), nil
}

func (s *fakeSource) PixelToGeo(x, y float64) (float64, float64, error) {
	a, b := s.geo(x, y)
	return a, b, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// fakeOpener всегда отдаёт один и тот же источник
type fakeOpener struct {
	src *fakeSource
	err error
}

func (o *fakeOpener) Open(path string) (port.RasterSource, error) {
	if _, err := entity.FormatOf(path); err != nil {
		return nil, err
	}
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

// fakeDetector возвращает детекции, вычисленные по окну тайла
type fakeDetector struct {
	detect func(w entity.Window) []entity.Detection

	mu         sync.Mutex
	imageTypes []entity.ImageType
}

func (d *fakeDetector) Detect(ctx context.Context, tile *entity.Tile, imageType entity.ImageType) ([]entity.Detection, error) {
	d.mu.Lock()
	d.imageTypes = append(d.imageTypes, imageType)
	d.mu.Unlock()
	return d.detect(tile.Window), nil
}

func fixedBox(box entity.Box) *fakeDetector {
	return &fakeDetector{detect: func(entity.Window) []entity.Detection {
		return []entity.Detection{{Box: box, Score: 0.9}}
	}}
}

// recordingSink запоминает все переданные результаты
type recordingSink struct {
	mu      sync.Mutex
	results []*entity.PredictionResult
	err     error
}

func (s *recordingSink) Write(ctx context.Context, result *entity.PredictionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

// fakePreview запоминает вызов Render
type fakePreview struct {
	renderErr error

	path       string
	base       *entity.Tile
	detections []entity.Detection
	scale      float64
}

func (p *fakePreview) LoadBase(path string) (*entity.Tile, error) {
	return nil, errors.New("no base in tests")
}

func (p *fakePreview) Render(path string, base *entity.Tile, detections []entity.Detection, scale float64) error {
	if p.renderErr != nil {
		return p.renderErr
	}
	p.path, p.base, p.detections, p.scale = path, base, detections, scale
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
