//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"
	"fmt"

	"sat-detect/internal/domain/entity"
)

// DefaultOutputNames выходы сконвертированной модели: boxes, scores, labels
var DefaultOutputNames = []string{"filtered_detections", "filtered_detections_1", "filtered_detections_2"}

var errNoGoCV = errors.New("gocv build tag is not enabled")

// GoCVBackend заглушка без OpenCV
type GoCVBackend struct{}

// NewGoCVBackend возвращает ошибку, если сборка без тега gocv.
func NewGoCVBackend(modelPath string, outputs []string) (*GoCVBackend, error) {
	_ = outputs
	return nil, fmt.Errorf("%w: %s: %v", entity.ErrDetectorLoad, modelPath, errNoGoCV)
}

// PredictOnBatch возвращает ошибку, если сборка без тега gocv.
func (g *GoCVBackend) PredictOnBatch(ctx context.Context, img *entity.Tile, imageType entity.ImageType) (*RawPrediction, error) {
	_ = ctx
	_ = img
	_ = imageType
	return nil, errNoGoCV
}

// Close ничего не делает
func (g *GoCVBackend) Close() error {
	return nil
}
