package vision

import (
	"context"
	"fmt"
	"io"
	"sort"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

// Backend запускает сеть на одном изображении (batch size 1).
// Рамки возвращаются в координатах поданного изображения.
type Backend interface {
	PredictOnBatch(ctx context.Context, image *entity.Tile, imageType entity.ImageType) (*RawPrediction, error)
}

// RawPrediction выход сети: параллельные массивы одной длины
type RawPrediction struct {
	Boxes  []entity.Box
	Scores []float32
	Labels []int
}

// Options параметры инференса
type Options struct {
	ScoreThreshold float64
	MaxDetections  int
	ImageMinSide   int
	ImageMaxSide   int
}

// RetinaNet адаптер детектора: подготовка тайла, масштабирование, фильтрация выхода
type RetinaNet struct {
	backend Backend
	opts    Options
}

// NewRetinaNet создаёт адаптер поверх backend
func NewRetinaNet(backend Backend, opts Options) *RetinaNet {
	return &RetinaNet{backend: backend, opts: opts}
}

// Options возвращает параметры инференса
func (r *RetinaNet) Options() Options {
	return r.opts
}

// Close освобождает backend, если ему есть что освобождать
func (r *RetinaNet) Close() error {
	if c, ok := r.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Detect прогоняет тайл через сеть, каналы готовятся по imageType.
// Возвращает не более MaxDetections детекций со score > ScoreThreshold
// в локальных координатах тайла, по убыванию score.
func (r *RetinaNet) Detect(ctx context.Context, tile *entity.Tile, imageType entity.ImageType) ([]entity.Detection, error) {
	img := entity.ArrangeChannels(tile, imageType)

	scale := ResizeScale(img.Rows, img.Cols, r.opts.ImageMinSide, r.opts.ImageMaxSide)
	resized := img.ResizeBilinear(entity.ScaledSize(img.Rows, scale), entity.ScaledSize(img.Cols, scale))

	raw, err := r.backend.PredictOnBatch(ctx, resized, imageType)
	if err != nil {
		return nil, fmt.Errorf("predict tile %s: %w", tile.Window, err)
	}
	if len(raw.Boxes) != len(raw.Scores) || len(raw.Labels) != len(raw.Scores) {
		return nil, fmt.Errorf("predict tile %s: backend returned %d boxes, %d scores, %d labels",
			tile.Window, len(raw.Boxes), len(raw.Scores), len(raw.Labels))
	}

	width, height := float64(tile.Cols), float64(tile.Rows)
	detections := make([]entity.Detection, 0, len(raw.Scores))
	for i, score := range raw.Scores {
		if float64(score) <= r.opts.ScoreThreshold {
			continue
		}
		box := raw.Boxes[i].Scale(1 / scale).Normalized().Clamp(width, height)
		detections = append(detections, entity.Detection{Box: box, Score: score, Label: raw.Labels[i]})
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})
	if r.opts.MaxDetections > 0 && len(detections) > r.opts.MaxDetections {
		detections = detections[:r.opts.MaxDetections]
	}
	return detections, nil
}

// ResizeScale коэффициент, при котором меньшая сторона равна minSide,
// а большая не превышает maxSide
func ResizeScale(rows, cols, minSide, maxSide int) float64 {
	smallest, largest := rows, cols
	if smallest > largest {
		smallest, largest = largest, smallest
	}
	if smallest <= 0 || minSide <= 0 {
		return 1
	}
	scale := float64(minSide) / float64(smallest)
	if maxSide > 0 && float64(largest)*scale > float64(maxSide) {
		scale = float64(maxSide) / float64(largest)
	}
	return scale
}

var _ port.ObjectDetector = (*RetinaNet)(nil)
