package port

import "sat-detect/internal/domain/entity"

// RasterSource открытый растр с географической привязкой.
// Реализации должны допускать одновременное чтение из нескольких горутин.
type RasterSource interface {
	// Info возвращает размеры растра
	Info() entity.RasterInfo

	// ReadTile читает окно растра в массив (round(h*scale), round(w*scale), bands).
	// Окно за пределами растра - ошибка entity.ErrTileRead.
	ReadTile(window entity.Window, bands int, scale float64) (*entity.Tile, error)

	// PixelToGeo переводит пиксель в координаты (A, B) привязки растра
	PixelToGeo(x, y float64) (a, b float64, err error)

	// Close освобождает ресурсы растра
	Close() error
}

// RasterOpener открывает растр по пути к файлу
type RasterOpener interface {
	Open(path string) (RasterSource, error)
}
