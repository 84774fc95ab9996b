package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "sat-detect/internal/application"
	"sat-detect/internal/domain/entity"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SCORE_THRESHOLD", "TILE_WIDTH", "UTM_ZONE", "OUTPUT_FORMATS", "PROFILE", "IMAGE_TYPE", "PREVIEW"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 0.5, cfg.ScoreThreshold)
	require.Equal(t, 1025, cfg.TileWidth)
	require.Equal(t, 48, cfg.UTMZone)
	require.Equal(t, []string{OutputCSV}, cfg.OutputFormats)
	require.Equal(t, app.ProfileGeoExport, cfg.Profile)
	require.Equal(t, entity.ImageTypePlanet, cfg.ImageType)
	require.True(t, cfg.Preview)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SCORE_THRESHOLD", "0.05")
	t.Setenv("MAX_DETECTIONS", "2000")
	t.Setenv("IMAGE_TYPE", "terrasar")
	t.Setenv("PROFILE", "preview-only")
	t.Setenv("UTM_ZONE", "47")
	t.Setenv("UTM_NORTHERN", "false")
	t.Setenv("OUTPUT_FORMATS", "CSV, geojson")
	t.Setenv("WORKERS", "4")
	t.Setenv("INFERENCE_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 0.05, cfg.ScoreThreshold)
	require.Equal(t, 2000, cfg.MaxDetections)
	require.Equal(t, entity.ImageTypeTerraSAR, cfg.ImageType)
	require.Equal(t, app.ProfilePreviewOnly, cfg.Profile)
	require.Equal(t, 47, cfg.UTMZone)
	require.False(t, cfg.UTMNorthern)
	require.Equal(t, []string{"csv", "geojson"}, cfg.OutputFormats)
	require.True(t, cfg.HasOutput(OutputGeoJSON))
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 30*time.Second, cfg.InferenceTimeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DetectorBackend:  "http",
			RasterDriver:     "native",
			ImageType:        entity.ImageTypePlanet,
			Profile:          app.ProfileGeoExport,
			TileWidth:        1025,
			TileHeight:       1025,
			ImageMinSide:     800,
			ImageMaxSide:     1333,
			MaxDetections:    100,
			UTMZone:          48,
			GroundResolution: 2.5,
			VisScaleFactor:   0.2,
			OutputFormats:    []string{OutputCSV},
		}
	}

	cfg := base()
	cfg.Workers = -3
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, ".", cfg.SavePath)

	broken := []func(c *Config){
		func(c *Config) { c.ImageType = "sentinel" },
		func(c *Config) { c.Profile = "all" },
		func(c *Config) { c.DetectorBackend = "onnx" },
		func(c *Config) { c.RasterDriver = "rasterio" },
		func(c *Config) { c.TileWidth = 0 },
		func(c *Config) { c.ImageMaxSide = 10 },
		func(c *Config) { c.UTMZone = 61 },
		func(c *Config) { c.OutputFormats = []string{"shp"} },
		func(c *Config) { c.VisScaleFactor = 5 },
		func(c *Config) { c.VisScaleFactor = 0 },
		func(c *Config) { c.GroundResolution = -1 },
		func(c *Config) { c.MaxDetections = 0 },
	}
	for i, mutate := range broken {
		cfg := base()
		mutate(cfg)
		require.Error(t, cfg.Validate(), "case %d", i)
	}
}

func TestValidate_UTMZoneZeroIsKept(t *testing.T) {
	t.Setenv("UTM_ZONE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 0, cfg.UTMZone)
}
