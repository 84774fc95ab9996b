//go:build !gocv
// +build !gocv

package vision

import "sat-detect/internal/domain/entity"

// GoCVPreviewRenderer заглушка без OpenCV
type GoCVPreviewRenderer struct {
	Thickness int
}

// NewGoCVPreviewRenderer создаёт рендерер-заглушку (без OpenCV).
func NewGoCVPreviewRenderer() *GoCVPreviewRenderer {
	return &GoCVPreviewRenderer{Thickness: 2}
}

// LoadBase возвращает ошибку, если сборка без тега gocv.
func (p *GoCVPreviewRenderer) LoadBase(path string) (*entity.Tile, error) {
	_ = path
	return nil, errNoGoCV
}

// Render возвращает ошибку, если сборка без тега gocv.
func (p *GoCVPreviewRenderer) Render(path string, base *entity.Tile, detections []entity.Detection, scale float64) error {
	_ = path
	_ = base
	_ = detections
	_ = scale
	return errNoGoCV
}
