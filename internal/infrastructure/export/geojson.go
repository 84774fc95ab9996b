package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

// GeoJSONSink пишет <OutputDir>/<basename>.geojson: FeatureCollection из
// полигона охвата и точек детекций
type GeoJSONSink struct{}

// NewGeoJSONSink создаёт GeoJSON sink
func NewGeoJSONSink() *GeoJSONSink {
	return &GeoJSONSink{}
}

// FeatureCollection корневой объект GeoJSON
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature объект GeoJSON с геометрией и свойствами
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry Point или Polygon
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Write сохраняет записи результата
func (s *GeoJSONSink) Write(ctx context.Context, result *entity.PredictionResult) error {
	staged, err := s.Stage(ctx, result)
	if err != nil {
		return err
	}
	return staged.Commit()
}

// Stage пишет GeoJSON во временный файл
func (s *GeoJSONSink) Stage(ctx context.Context, result *entity.PredictionResult) (port.StagedWrite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fc := BuildFeatureCollection(result)
	path := result.OutputFile(entity.SuffixGeoJSON)
	staged, err := stageFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fc)
	})
	if err != nil {
		return nil, fmt.Errorf("write geojson %s: %w", path, err)
	}
	return staged, nil
}

// BuildFeatureCollection переводит записи в GeoJSON, сохраняя их порядок
func BuildFeatureCollection(result *entity.PredictionResult) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(result.Records))}
	for _, r := range result.Records {
		if r.IsExtent() {
			fc.Features = append(fc.Features, Feature{
				Type:     "Feature",
				Geometry: Geometry{Type: "Polygon", Coordinates: ExtentRing(r)},
				Properties: withWarning(map[string]any{
					"kind":         "extent",
					"source":       result.Source,
					"width_px":     result.Info.Width,
					"height_px":    result.Info.Height,
					"utm_fallback": r.UTMFallback,
				}, r.Warning),
			})
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: Geometry{Type: "Point", Coordinates: []float64{r.A, r.B}},
			Properties: withWarning(map[string]any{
				"kind":         "detection",
				"width":        r.Width,
				"height":       r.Height,
				"score":        r.Score,
				"label":        r.Label,
				"utm_fallback": r.UTMFallback,
			}, r.Warning),
		})
	}
	return fc
}

// ExtentRing замкнутый контур охвата, обход от левого верхнего угла
func ExtentRing(r entity.Record) [][][]float64 {
	return [][][]float64{{
		{r.A, r.B},
		{r.A2, r.B},
		{r.A2, r.B2},
		{r.A, r.B2},
		{r.A, r.B},
	}}
}

func withWarning(props map[string]any, warning string) map[string]any {
	if warning != "" {
		props["warning"] = warning
	}
	return props
}

var _ port.StagingSink = (*GeoJSONSink)(nil)
