package entity

import "fmt"

// ImageType тип снимка, от которого зависит подготовка каналов
type ImageType string

const (
	ImageTypePlanet   ImageType = "planet"   // оптические снимки Planet
	ImageTypeTerraSAR ImageType = "terrasar" // радарные снимки TerraSAR-X, один канал
)

// ParseImageType разбирает строковое имя типа снимка
func ParseImageType(s string) (ImageType, error) {
	switch ImageType(s) {
	case ImageTypePlanet, ImageTypeTerraSAR:
		return ImageType(s), nil
	default:
		return "", fmt.Errorf("unknown image type %q (expected planet or terrasar)", s)
	}
}

// ArrangeChannels приводит каналы тайла к трём каналам в порядке BGR, который ждёт детектор.
//
// terrasar: единственный канал дублируется в три.
// planet: берутся первые три канала; порядок разворачивается только если у снимка ровно
// три канала. Четырёхканальные продукты Planet уже хранят первые три канала как BGR.
func ArrangeChannels(t *Tile, it ImageType) *Tile {
	switch it {
	case ImageTypeTerraSAR:
		return t.SelectBands([]int{0, 0, 0})
	case ImageTypePlanet:
		if t.Bands == 3 {
			return t.SelectBands([]int{2, 1, 0})
		}
		n := t.Bands
		if n > 3 {
			n = 3
		}
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return t.SelectBands(order)
	default:
		return t
	}
}
