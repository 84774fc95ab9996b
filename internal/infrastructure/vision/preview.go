package vision

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

// PreviewRenderer рисует превью на чистом Go, без OpenCV
type PreviewRenderer struct {
	Thickness int
}

// NewPreviewRenderer создаёт рендерер с толщиной рамки 2px
func NewPreviewRenderer() *PreviewRenderer {
	return &PreviewRenderer{Thickness: 2}
}

// LoadBase читает готовое превью (png, jpg, tif) и возвращает его как тайл BGR
func (p *PreviewRenderer) LoadBase(path string) (*entity.Tile, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open preview base: %w", err)
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()

	tile := entity.NewTile(entity.Window{Width: b.Dx(), Height: b.Dy()}, b.Dy(), b.Dx(), 3)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := nrgba.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			tile.Set(y, x, 0, float32(c.B))
			tile.Set(y, x, 1, float32(c.G))
			tile.Set(y, x, 2, float32(c.R))
		}
	}
	return tile, nil
}

// Render рисует рамки детекций со score > 0 и сохраняет PNG
func (p *PreviewRenderer) Render(path string, base *entity.Tile, detections []entity.Detection, scale float64) error {
	img := tileToNRGBA(base)

	thickness := p.Thickness
	if thickness < 1 {
		thickness = 1
	}
	for _, d := range detections {
		if d.Score <= 0 {
			continue
		}
		box := d.Box.Scale(scale)
		rect := image.Rect(
			int(math.Round(box.X1)), int(math.Round(box.Y1)),
			int(math.Round(box.X2)), int(math.Round(box.Y2)),
		)
		drawRect(img, rect, LabelColor(d.Label), thickness)
	}

	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("save preview %s: %w", path, err)
	}
	return nil
}

// LabelColor цвет рамки для класса, классы разносятся по оттенку
func LabelColor(label int) color.RGBA {
	hue := math.Mod(float64(label)*47, 360)
	if hue < 0 {
		hue += 360
	}
	r, g, b := colorful.Hsv(hue, 0.9, 1.0).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// BGR8 переводит тайл в 8 бит BGR построчно.
// Значения вне [0, 255] растягиваются по min/max каждого канала.
// Одноканальный тайл становится серым.
func BGR8(t *entity.Tile) []byte {
	out := make([]byte, t.Rows*t.Cols*3)
	if t.Bands == 0 {
		return out
	}
	src := make([]int, 3)
	for i := range src {
		src[i] = i
		if src[i] >= t.Bands {
			src[i] = t.Bands - 1
		}
	}
	for c, band := range src {
		plane := t.Band(band)
		lo, hi := bandRange(plane)
		stretch := lo < 0 || hi > 255
		for i, v := range plane {
			f := float64(v)
			if stretch {
				if hi > lo {
					f = (f - lo) / (hi - lo) * 255
				} else {
					f = 0
				}
			}
			out[i*3+c] = uint8(math.Max(0, math.Min(255, math.Round(f))))
		}
	}
	return out
}

func bandRange(plane []float32) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range plane {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func tileToNRGBA(t *entity.Tile) *image.NRGBA {
	bgr := BGR8(t)
	img := image.NewNRGBA(image.Rect(0, 0, t.Cols, t.Rows))
	for p := 0; p < t.Rows*t.Cols; p++ {
		img.Pix[p*4] = bgr[p*3+2]
		img.Pix[p*4+1] = bgr[p*3+1]
		img.Pix[p*4+2] = bgr[p*3]
		img.Pix[p*4+3] = 255
	}
	return img
}

// drawRect рисует контур прямоугольника, обрезанный границами изображения
func drawRect(img *image.NRGBA, r image.Rectangle, c color.Color, thickness int) {
	r = r.Canon()
	b := img.Bounds()
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			setIn(img, b, x, r.Min.Y+t, c)
			setIn(img, b, x, r.Max.Y-t, c)
		}
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			setIn(img, b, r.Min.X+t, y, c)
			setIn(img, b, r.Max.X-t, y, c)
		}
	}
}

func setIn(img *image.NRGBA, b image.Rectangle, x, y int, c color.Color) {
	if image.Pt(x, y).In(b) {
		img.Set(x, y, c)
	}
}

var _ port.PreviewRenderer = (*PreviewRenderer)(nil)
