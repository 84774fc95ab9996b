package entity

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RasterFormat формат исходного растра
type RasterFormat string

const (
	FormatGeoTIFF RasterFormat = "geotiff" // стандартный растр с аффинной привязкой
	FormatDIMAP   RasterFormat = "dimap"   // продукт BEAM-DIMAP с геокодированием сцены
)

// RasterInfo размеры растра
type RasterInfo struct {
	Format RasterFormat
	Width  int
	Height int
	Bands  int
}

var formatByExt = map[string]RasterFormat{
	"tif":  FormatGeoTIFF,
	"TIF":  FormatGeoTIFF,
	"tiff": FormatGeoTIFF,
	"TIFF": FormatGeoTIFF,
	"dim":  FormatDIMAP,
	"DIM":  FormatDIMAP,
}

// FormatOf определяет формат по расширению файла.
// Регистр расширения учитывается: a.Tif не поддерживается.
func FormatOf(path string) (RasterFormat, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	format, ok := formatByExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: file type %q", ErrUnsupportedFormat, ext)
	}
	return format, nil
}

// Basename имя файла без каталога до первой точки: scene.v2.tif даёт scene
func Basename(path string) string {
	base := filepath.Base(path)
	if name, _, _ := strings.Cut(base, "."); name != "" {
		return name
	}
	return base
}
