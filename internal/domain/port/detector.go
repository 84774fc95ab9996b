package port

import (
	"context"

	"sat-detect/internal/domain/entity"
)

// ObjectDetector интерфейс детектора объектов на тайле
type ObjectDetector interface {
	// Detect возвращает детекции в локальных координатах тайла,
	// отфильтрованные по порогу и отсортированные по убыванию score.
	// imageType определяет подготовку каналов.
	Detect(ctx context.Context, tile *entity.Tile, imageType entity.ImageType) ([]entity.Detection, error)
}
