package vision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sat-detect/internal/domain/entity"
)

// Доступные реализации инференса
const (
	BackendHTTP = "http"
	BackendGoCV = "gocv"
)

// LoadConfig всё, что нужно для загрузки детектора
type LoadConfig struct {
	Backend      string
	InferenceURL string
	Timeout      time.Duration
	ModelPath    string
	Backbone     string
	Convert      bool
	AnchorConfig string
	OutputNames  []string
	Options      Options
}

// Load загружает модель и возвращает готовый адаптер.
// Ошибки загрузки оборачивают entity.ErrDetectorLoad.
func Load(ctx context.Context, cfg LoadConfig, logger *slog.Logger) (*RetinaNet, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: model path is empty", entity.ErrDetectorLoad)
	}

	var anchors *AnchorParams
	if cfg.AnchorConfig != "" {
		var err error
		if anchors, err = LoadAnchorParams(cfg.AnchorConfig); err != nil {
			return nil, err
		}
	}

	switch cfg.Backend {
	case BackendHTTP, "":
		backend := NewHTTPBackend(cfg.InferenceURL, cfg.Timeout)
		if err := backend.CheckHealth(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrDetectorLoad, err)
		}
		err := backend.Load(ctx, LoadRequest{
			ModelPath: cfg.ModelPath,
			Backbone:  cfg.Backbone,
			Convert:   cfg.Convert,
			Anchors:   anchors,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("model loaded", "backend", BackendHTTP, "model", cfg.ModelPath, "backbone", cfg.Backbone, "convert", cfg.Convert)
		return NewRetinaNet(backend, cfg.Options), nil

	case BackendGoCV:
		if _, err := os.Stat(cfg.ModelPath); err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrDetectorLoad, err)
		}
		if cfg.Convert || anchors != nil {
			logger.Warn("gocv backend expects an already converted model, convert and anchors are ignored")
		}
		backend, err := NewGoCVBackend(cfg.ModelPath, cfg.OutputNames)
		if err != nil {
			return nil, err
		}
		logger.Info("model loaded", "backend", BackendGoCV, "model", cfg.ModelPath)
		return NewRetinaNet(backend, cfg.Options), nil

	default:
		return nil, fmt.Errorf("%w: unknown detector backend %q", entity.ErrDetectorLoad, cfg.Backend)
	}
}
