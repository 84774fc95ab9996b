package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdobak/go-xerrors"

	"sat-detect/config"
	telegram "sat-detect/internal/api"
	app "sat-detect/internal/application"
	"sat-detect/internal/container"
	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
	"sat-detect/internal/infrastructure/export"
	"sat-detect/internal/infrastructure/raster"
	"sat-detect/internal/infrastructure/storage"
	"sat-detect/internal/infrastructure/vision"
)

const usage = `usage:
  sat-detect predict [flags] <image.tif|image.dim>...
  sat-detect bot`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "predict":
		err = runPredict(ctx, cfg, logger, os.Args[2:])
	case "bot":
		err = runBot(ctx, cfg, logger)
	default:
		fmt.Println(usage)
		os.Exit(2)
	}

	if err != nil {
		logger.ErrorContext(ctx, "command failed", slog.String("command", os.Args[1]), slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}

func runPredict(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	predictCmd := flag.NewFlagSet("predict", flag.ExitOnError)
	imageType := predictCmd.String("type", string(cfg.ImageType), "image type (planet or terrasar)")
	profile := predictCmd.String("profile", string(cfg.Profile), "pipeline profile (geo-export or preview-only)")
	out := predictCmd.String("out", cfg.SavePath, "output directory")
	model := predictCmd.String("model", cfg.ModelPath, "path to the model weights")
	score := predictCmd.Float64("score", cfg.ScoreThreshold, "minimum detection score")
	workers := predictCmd.Int("workers", cfg.Workers, "tiles processed in parallel")
	tile := predictCmd.Int("tile", 0, "square tile side in pixels, overrides TILE_WIDTH and TILE_HEIGHT")
	preview := predictCmd.Bool("preview", cfg.Preview, "render preview with detections")
	visPath := predictCmd.String("vis", cfg.VisPath, "ready RGB image for the preview")
	predictCmd.Parse(args)

	cfg.ImageType = entity.ImageType(*imageType)
	cfg.Profile = app.Profile(*profile)
	cfg.SavePath = *out
	cfg.ModelPath = *model
	cfg.ScoreThreshold = *score
	cfg.Workers = *workers
	cfg.Preview = *preview
	cfg.VisPath = *visPath
	if *tile > 0 {
		cfg.TileWidth, cfg.TileHeight = *tile, *tile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths := predictCmd.Args()
	if len(paths) == 0 {
		return errors.New("no input images")
	}

	deps, closeDeps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeps()
	if deps.Users == nil {
		deps.Users = storage.NewMemoryUserRepository()
	}

	c := container.New(deps, predictionConfig(cfg), cfg.WorkDir)

	for _, path := range paths {
		result, err := c.PredictionService.Predict(ctx, app.PredictRequest{Path: path})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s: %d detections, %d tiles, %d warnings\n", path, len(result.Detections), result.Tiles, result.Warnings)
	}
	return nil
}

func runBot(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// боту нужен CSV для ответа
	if !cfg.HasOutput(config.OutputCSV) {
		cfg.OutputFormats = append(cfg.OutputFormats, config.OutputCSV)
	}

	deps, closeDeps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	// Создаём хранилище пользователей
	if deps.Users == nil {
		deps.Users = storage.NewMemoryUserRepository()
	}

	appContainer := container.New(deps, predictionConfig(cfg), cfg.WorkDir)

	bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, logger)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	logger.Info("bot is running")
	return bot.Run(ctx)
}

// buildDeps загружает детектор и открывает хранилища.
// Users заполняется, только если настроен SQLite.
func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (container.Deps, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	detector, err := vision.Load(ctx, vision.LoadConfig{
		Backend:      cfg.DetectorBackend,
		InferenceURL: cfg.InferenceURL,
		Timeout:      cfg.InferenceTimeout,
		ModelPath:    cfg.ModelPath,
		Backbone:     cfg.Backbone,
		Convert:      cfg.ConvertModel,
		AnchorConfig: cfg.AnchorConfig,
		OutputNames:  cfg.OutputNames,
		Options: vision.Options{
			ScoreThreshold: cfg.ScoreThreshold,
			MaxDetections:  cfg.MaxDetections,
			ImageMinSide:   cfg.ImageMinSide,
			ImageMaxSide:   cfg.ImageMaxSide,
		},
	}, logger)
	if err != nil {
		return container.Deps{}, func() {}, err
	}

	closers = append(closers, func() { detector.Close() })

	opener, err := raster.NewOpener(cfg.RasterDriver)
	if err != nil {
		closeAll()
		return container.Deps{}, func() {}, err
	}

	deps := container.Deps{
		Opener:   opener,
		Detector: detector,
		Logger:   logger,
	}

	var preview port.PreviewRenderer = vision.NewPreviewRenderer()
	if cfg.DetectorBackend == vision.BackendGoCV {
		preview = vision.NewGoCVPreviewRenderer()
	}
	deps.Preview = preview

	if cfg.HasOutput(config.OutputCSV) {
		deps.Sinks = append(deps.Sinks, export.NewCSVSink())
	}
	if cfg.HasOutput(config.OutputGeoJSON) {
		deps.Sinks = append(deps.Sinks, export.NewGeoJSONSink())
	}

	if cfg.SQLitePath != "" {
		store, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			closeAll()
			return container.Deps{}, func() {}, err
		}
		closers = append(closers, func() { store.Close() })
		deps.Sinks = append(deps.Sinks, store)
		deps.Users = store
	}

	if cfg.MongoURI != "" {
		store, err := storage.NewMongoRecordStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			closeAll()
			return container.Deps{}, func() {}, err
		}
		closers = append(closers, func() { store.Close(context.WithoutCancel(ctx)) })
		deps.Sinks = append(deps.Sinks, store)
	}

	return deps, closeAll, nil
}

func predictionConfig(cfg *config.Config) app.PredictionConfig {
	return app.PredictionConfig{
		Profile:          cfg.Profile,
		TileWidth:        cfg.TileWidth,
		TileHeight:       cfg.TileHeight,
		Workers:          cfg.Workers,
		ImageType:        cfg.ImageType,
		GroundResolution: cfg.GroundResolution,
		UTMZone:          cfg.UTMZone,
		UTMNorthern:      cfg.UTMNorthern,
		OutputDir:        cfg.SavePath,
		Preview:          cfg.Preview,
		VisScaleFactor:   cfg.VisScaleFactor,
		VisPath:          cfg.VisPath,
	}
}
