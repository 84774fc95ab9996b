package port

import "sat-detect/internal/domain/entity"

// PreviewRenderer рисует детекции на уменьшенном превью снимка
type PreviewRenderer interface {
	// LoadBase загружает готовое превью из файла, каналы в порядке BGR
	LoadBase(path string) (*entity.Tile, error)

	// Render рисует рамки, умноженные на scale, поверх base (BGR) и сохраняет PNG в path
	Render(path string, base *entity.Tile, detections []entity.Detection, scale float64) error
}
