package app

import "sat-detect/internal/domain/entity"

// DefaultTileSize сторона тайла по умолчанию
const DefaultTileSize = 1025

// TileGrid разбивает растр на окна tileWidth x tileHeight построчно:
// внешний цикл по строкам тайлов, внутренний по столбцам.
// Крайние окна обрезаются по границе растра, окна не перекрываются.
func TileGrid(width, height, tileWidth, tileHeight int) []entity.Window {
	if width <= 0 || height <= 0 || tileWidth <= 0 || tileHeight <= 0 {
		return nil
	}

	rows := (height + tileHeight - 1) / tileHeight
	cols := (width + tileWidth - 1) / tileWidth
	windows := make([]entity.Window, 0, rows*cols)
	for i := 0; i < height; i += tileHeight {
		for j := 0; j < width; j += tileWidth {
			windows = append(windows, entity.Window{
				X:      j,
				Y:      i,
				Width:  min(tileWidth, width-j),
				Height: min(tileHeight, height-i),
			})
		}
	}
	return windows
}
