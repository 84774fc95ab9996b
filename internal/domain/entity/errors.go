package entity

import "errors"

var (
	// ErrUnsupportedFormat расширение файла не соответствует ни одному формату
	ErrUnsupportedFormat = errors.New("unsupported raster format")
	// ErrRasterOpen растр не удалось открыть или разобрать
	ErrRasterOpen = errors.New("raster open failed")
	// ErrDetectorLoad модель не загрузилась
	ErrDetectorLoad = errors.New("detector load failed")
	// ErrTileRead не удалось прочитать окно растра
	ErrTileRead = errors.New("tile read failed")
	// ErrGeoOutOfRange координаты вне географического диапазона даже после пересчёта из UTM
	ErrGeoOutOfRange = errors.New("geographic coordinates out of range")
)
