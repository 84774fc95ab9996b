package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	app "sat-detect/internal/application"
	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/geo"
)

// Поддерживаемые форматы выходных файлов
const (
	OutputCSV     = "csv"
	OutputGeoJSON = "geojson"
)

type Config struct {
	TelegramToken string
	LogLevel      string

	// Детектор
	DetectorBackend  string
	InferenceURL     string
	InferenceTimeout time.Duration
	ModelPath        string
	Backbone         string
	ConvertModel     bool
	AnchorConfig     string
	OutputNames      []string
	ScoreThreshold   float64
	MaxDetections    int
	ImageMinSide     int
	ImageMaxSide     int

	// Сканирование и привязка
	RasterDriver     string
	ImageType        entity.ImageType
	Profile          app.Profile
	TileWidth        int
	TileHeight       int
	Workers          int
	GroundResolution float64
	UTMZone          int
	UTMNorthern      bool

	// Выход
	SavePath       string
	OutputFormats  []string
	Preview        bool
	VisScaleFactor float64
	VisPath        string
	SQLitePath     string
	MongoURI       string
	MongoDatabase  string
	WorkDir        string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DetectorBackend:  getEnv("DETECTOR_BACKEND", "http"),
		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:5000"),
		InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 2*time.Minute),
		ModelPath:        getEnv("MODEL_PATH", "./models/resnet50_planet.h5"),
		Backbone:         getEnv("BACKBONE", "resnet50"),
		ConvertModel:     getBool("CONVERT_MODEL", false),
		AnchorConfig:     os.Getenv("ANCHOR_CONFIG"),
		OutputNames:      getList("MODEL_OUTPUTS", nil),
		ScoreThreshold:   getFloat("SCORE_THRESHOLD", 0.5),
		MaxDetections:    getInt("MAX_DETECTIONS", 100),
		ImageMinSide:     getInt("IMAGE_MIN_SIDE", 800),
		ImageMaxSide:     getInt("IMAGE_MAX_SIDE", 1333),

		RasterDriver:     getEnv("RASTER_DRIVER", "native"),
		ImageType:        entity.ImageType(getEnv("IMAGE_TYPE", string(entity.ImageTypePlanet))),
		Profile:          app.Profile(getEnv("PROFILE", string(app.ProfileGeoExport))),
		TileWidth:        getInt("TILE_WIDTH", app.DefaultTileSize),
		TileHeight:       getInt("TILE_HEIGHT", app.DefaultTileSize),
		Workers:          getInt("WORKERS", 1),
		GroundResolution: getFloat("GROUND_RESOLUTION", 2.5),
		UTMZone:          getInt("UTM_ZONE", geo.DefaultUTMZone),
		UTMNorthern:      getBool("UTM_NORTHERN", true),

		SavePath:       getEnv("SAVE_PATH", "."),
		OutputFormats:  getList("OUTPUT_FORMATS", []string{OutputCSV}),
		Preview:        getBool("PREVIEW", true),
		VisScaleFactor: getFloat("VIS_SCALE_FACTOR", 0.2),
		VisPath:        os.Getenv("VIS_PATH"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "sat_detect"),
		WorkDir:        os.Getenv("WORK_DIR"),
	}

	return cfg, nil
}

// Validate приводит мягкие значения к допустимым и отклоняет неисправимые
func (c *Config) Validate() error {
	var errs []error

	if _, err := entity.ParseImageType(string(c.ImageType)); err != nil {
		errs = append(errs, err)
	}
	if _, err := app.ParseProfile(string(c.Profile)); err != nil {
		errs = append(errs, err)
	}
	switch c.DetectorBackend {
	case "http", "gocv":
	default:
		errs = append(errs, fmt.Errorf("unknown detector backend %q (expected http or gocv)", c.DetectorBackend))
	}
	switch c.RasterDriver {
	case "native", "gdal":
	default:
		errs = append(errs, fmt.Errorf("unknown raster driver %q (expected native or gdal)", c.RasterDriver))
	}
	if c.TileWidth <= 0 || c.TileHeight <= 0 {
		errs = append(errs, fmt.Errorf("tile size must be positive, got %dx%d", c.TileWidth, c.TileHeight))
	}
	if c.ImageMinSide <= 0 || c.ImageMaxSide < c.ImageMinSide {
		errs = append(errs, fmt.Errorf("invalid image sides: min %d, max %d", c.ImageMinSide, c.ImageMaxSide))
	}
	if c.UTMZone < 0 || c.UTMZone > 60 {
		errs = append(errs, fmt.Errorf("utm zone must be in [0, 60], got %d", c.UTMZone))
	}
	if c.VisScaleFactor <= 0 || c.VisScaleFactor > 1 {
		errs = append(errs, fmt.Errorf("vis scale factor must be in (0, 1], got %v", c.VisScaleFactor))
	}
	if c.GroundResolution <= 0 {
		errs = append(errs, fmt.Errorf("ground resolution must be positive, got %v", c.GroundResolution))
	}
	if c.MaxDetections < 1 {
		errs = append(errs, fmt.Errorf("max detections must be positive, got %d", c.MaxDetections))
	}
	for _, f := range c.OutputFormats {
		if f != OutputCSV && f != OutputGeoJSON {
			errs = append(errs, fmt.Errorf("unknown output format %q (expected csv or geojson)", f))
		}
	}

	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.ScoreThreshold < 0 {
		c.ScoreThreshold = 0
	}
	if c.SavePath == "" {
		c.SavePath = "."
	}

	return errors.Join(errs...)
}

// HasOutput проверяет, включён ли формат вывода
func (c *Config) HasOutput(format string) bool {
	for _, f := range c.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}
