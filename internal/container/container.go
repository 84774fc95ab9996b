package container

import (
	"log/slog"

	app "sat-detect/internal/application"
	"sat-detect/internal/domain/port"
)

// Deps внешние зависимости, собранные в main
type Deps struct {
	Users    port.UserRepository
	Opener   port.RasterOpener
	Detector port.ObjectDetector
	Sinks    []port.RecordSink
	Preview  port.PreviewRenderer
	Logger   *slog.Logger
}

type Container struct {
	UserService       *app.UserService
	PredictionService *app.PredictionService
	SceneService      *app.SceneService
}

func New(deps Deps, cfg app.PredictionConfig, workDir string) *Container {
	userService := app.NewUserService(deps.Users)
	predictionService := app.NewPredictionService(deps.Opener, deps.Detector, deps.Sinks, deps.Preview, cfg, deps.Logger)
	sceneService := app.NewSceneService(userService, predictionService, workDir)

	return &Container{
		UserService:       userService,
		PredictionService: predictionService,
		SceneService:      sceneService,
	}
}
