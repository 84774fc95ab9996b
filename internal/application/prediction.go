package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/geo"
	"sat-detect/internal/domain/port"
)

// Profile режим работы конвейера
type Profile string

const (
	// ProfileGeoExport охват, пересчёт из UTM, точки и запись во все sink
	ProfileGeoExport Profile = "geo-export"
	// ProfilePreviewOnly только детекции и превью, без записей и sink
	ProfilePreviewOnly Profile = "preview-only"
)

// ParseProfile разбирает имя профиля
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileGeoExport, ProfilePreviewOnly:
		return Profile(s), nil
	default:
		return "", fmt.Errorf("unknown profile %q (expected geo-export or preview-only)", s)
	}
}

// PredictionConfig параметры сканирования и выходных файлов
type PredictionConfig struct {
	Profile          Profile
	TileWidth        int
	TileHeight       int
	Workers          int
	ImageType        entity.ImageType
	GroundResolution float64
	UTMZone          int
	UTMNorthern      bool
	OutputDir        string
	Preview          bool
	VisScaleFactor   float64
	VisPath          string
}

// PredictRequest один снимок на обработку.
// Пустые поля берутся из PredictionConfig.
type PredictRequest struct {
	Path      string
	ImageType entity.ImageType
	OutputDir string
}

// PredictionService сканирует растр тайлами, переводит детекции в координаты
// снимка и отдаёт записи в sink
type PredictionService struct {
	opener   port.RasterOpener
	detector port.ObjectDetector
	sinks    []port.RecordSink
	preview  port.PreviewRenderer
	cfg      PredictionConfig
	logger   *slog.Logger
}

// NewPredictionService создаёт сервис. preview может быть nil.
func NewPredictionService(
	opener port.RasterOpener,
	detector port.ObjectDetector,
	sinks []port.RecordSink,
	preview port.PreviewRenderer,
	cfg PredictionConfig,
	logger *slog.Logger,
) *PredictionService {
	if cfg.TileWidth <= 0 {
		cfg.TileWidth = DefaultTileSize
	}
	if cfg.TileHeight <= 0 {
		cfg.TileHeight = DefaultTileSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileGeoExport
	}
	if cfg.ImageType == "" {
		cfg.ImageType = entity.ImageTypePlanet
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return &PredictionService{
		opener:   opener,
		detector: detector,
		sinks:    sinks,
		preview:  preview,
		cfg:      cfg,
		logger:   logger,
	}
}

// Config возвращает действующие параметры
func (s *PredictionService) Config() PredictionConfig {
	return s.cfg
}

// Predict обрабатывает один снимок.
// Любая ошибка открытия или чтения тайла прерывает прогон до записи в sink.
// Ошибка превью только логируется.
func (s *PredictionService) Predict(ctx context.Context, req PredictRequest) (*entity.PredictionResult, error) {
	started := time.Now()

	imageType := req.ImageType
	if imageType == "" {
		imageType = s.cfg.ImageType
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = s.cfg.OutputDir
	}

	src, err := s.opener.Open(req.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info := src.Info()
	windows := TileGrid(info.Width, info.Height, s.cfg.TileWidth, s.cfg.TileHeight)
	log := s.logger.With("source", req.Path)
	log.Info("scan started",
		"format", info.Format,
		"width", info.Width,
		"height", info.Height,
		"bands", info.Bands,
		"tiles", len(windows),
		"workers", s.cfg.Workers,
		"image_type", imageType,
		"profile", s.cfg.Profile,
	)

	detections, err := s.scan(ctx, src, windows, imageType, log)
	if err != nil {
		return nil, err
	}

	result := &entity.PredictionResult{
		Source:     req.Path,
		Basename:   entity.Basename(req.Path),
		OutputDir:  outputDir,
		ImageType:  imageType,
		Info:       info,
		Tiles:      len(windows),
		Detections: detections,
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	if s.cfg.Profile == ProfileGeoExport {
		georef := Georeferencer{
			Fallback: geo.UTMFallback{
				Enabled:  true,
				Zone:     s.cfg.UTMZone,
				Northern: s.cfg.UTMNorthern,
			},
			GroundResolution: s.cfg.GroundResolution,
		}
		result.Records, err = georef.Records(src, detections)
		if err != nil {
			return nil, err
		}
		for i, r := range result.Records {
			if r.Warning != "" {
				result.Warnings++
				log.Warn("coordinates out of range after utm fallback", "record", i, "warning", r.Warning)
			}
		}

		if err := s.writeSinks(ctx, result, log); err != nil {
			return nil, err
		}
	}

	if s.cfg.Preview && s.preview != nil {
		path := result.OutputFile(entity.SuffixPreview)
		if err := s.renderPreview(src, path, imageType, detections); err != nil {
			log.Warn("preview skipped", "path", path, "error", err)
		} else {
			result.PreviewPath = path
		}
	}

	log.Info("scan finished",
		"detections", len(detections),
		"records", len(result.Records),
		"warnings", result.Warnings,
		"duration", time.Since(started).String(),
	)
	return result, nil
}

// writeSinks сначала готовит файлы, затем пишет в остальные sink и только
// после их успеха публикует файлы. При ошибке подготовленные файлы удаляются.
func (s *PredictionService) writeSinks(ctx context.Context, result *entity.PredictionResult, log *slog.Logger) (err error) {
	var staged []port.StagedWrite
	defer func() {
		if err == nil {
			return
		}
		for _, w := range staged {
			if derr := w.Discard(); derr != nil {
				log.Warn("discard staged output", "error", derr)
			}
		}
	}()

	var direct []port.RecordSink
	for _, sink := range s.sinks {
		ss, ok := sink.(port.StagingSink)
		if !ok {
			direct = append(direct, sink)
			continue
		}
		w, err := ss.Stage(ctx, result)
		if err != nil {
			return err
		}
		staged = append(staged, w)
	}

	for _, sink := range direct {
		if err := sink.Write(ctx, result); err != nil {
			return err
		}
	}
	for _, w := range staged {
		if err := w.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// scan прогоняет все окна через детектор. Порядок детекций всегда построчный,
// независимо от числа воркеров.
func (s *PredictionService) scan(ctx context.Context, src port.RasterSource, windows []entity.Window, imageType entity.ImageType, log *slog.Logger) ([]entity.Detection, error) {
	bands := src.Info().Bands

	if s.cfg.Workers == 1 {
		var all []entity.Detection
		for _, w := range windows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			dets, err := s.processTile(ctx, src, w, bands, imageType, log)
			if err != nil {
				return nil, err
			}
			all = append(all, dets...)
		}
		return all, nil
	}

	slots := make([][]entity.Detection, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, w := range windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dets, err := s.processTile(gctx, src, w, bands, imageType, log)
			if err != nil {
				return err
			}
			slots[i] = dets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []entity.Detection
	for _, dets := range slots {
		all = append(all, dets...)
	}
	return all, nil
}

// processTile читает окно, запускает детектор и сдвигает рамки на (X, Y, X, Y) окна
func (s *PredictionService) processTile(ctx context.Context, src port.RasterSource, w entity.Window, bands int, imageType entity.ImageType, log *slog.Logger) ([]entity.Detection, error) {
	tile, err := src.ReadTile(w, bands, 1)
	if err != nil {
		if errors.Is(err, entity.ErrTileRead) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: window %s: %v", entity.ErrTileRead, w, err)
	}

	dets, err := s.detector.Detect(ctx, tile, imageType)
	if err != nil {
		return nil, fmt.Errorf("detect window %s: %w", w, err)
	}

	dx, dy := float64(w.X), float64(w.Y)
	for i := range dets {
		dets[i] = dets[i].Offset(dx, dy)
	}
	log.Debug("tile processed", "window", w.String(), "detections", len(dets))
	return dets, nil
}

// renderPreview строит превью всего снимка в масштабе VisScaleFactor
// или берёт готовое из VisPath и рисует рамки
func (s *PredictionService) renderPreview(src port.RasterSource, path string, imageType entity.ImageType, detections []entity.Detection) error {
	scale := s.cfg.VisScaleFactor
	if scale <= 0 {
		scale = 1
	}

	var base *entity.Tile
	if s.cfg.VisPath != "" {
		loaded, err := s.preview.LoadBase(s.cfg.VisPath)
		if err != nil {
			return err
		}
		base = loaded
	} else {
		info := src.Info()
		full := entity.Window{Width: info.Width, Height: info.Height}
		tile, err := src.ReadTile(full, info.Bands, scale)
		if err != nil {
			return err
		}
		base = entity.ArrangeChannels(tile, imageType)
	}

	return s.preview.Render(path, base, detections, scale)
}
