//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"sat-detect/internal/domain/entity"
)

// GoCVPreviewRenderer рисует превью средствами OpenCV
type GoCVPreviewRenderer struct {
	Thickness int
}

// NewGoCVPreviewRenderer создаёт рендерер с толщиной рамки 2px
func NewGoCVPreviewRenderer() *GoCVPreviewRenderer {
	return &GoCVPreviewRenderer{Thickness: 2}
}

// LoadBase читает превью через imread, OpenCV сразу отдаёт BGR
func (p *GoCVPreviewRenderer) LoadBase(path string) (*entity.Tile, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("open preview base: cannot read %s", path)
	}
	defer mat.Close()

	data := mat.ToBytes()
	tile := entity.NewTile(entity.Window{Width: mat.Cols(), Height: mat.Rows()}, mat.Rows(), mat.Cols(), 3)
	for i, v := range data {
		tile.Data[i] = float32(v)
	}
	return tile, nil
}

// Render рисует рамки детекций со score > 0 и пишет PNG через imwrite
func (p *GoCVPreviewRenderer) Render(path string, base *entity.Tile, detections []entity.Detection, scale float64) error {
	mat, err := gocv.NewMatFromBytes(base.Rows, base.Cols, gocv.MatTypeCV8UC3, BGR8(base))
	if err != nil {
		return fmt.Errorf("preview to mat: %w", err)
	}
	defer mat.Close()

	for _, d := range detections {
		if d.Score <= 0 {
			continue
		}
		box := d.Box.Scale(scale)
		rect := image.Rect(
			int(math.Round(box.X1)), int(math.Round(box.Y1)),
			int(math.Round(box.X2)), int(math.Round(box.Y2)),
		)
		// Mat хранит BGR, поэтому R и B меняются местами
		c := LabelColor(d.Label)
		c.R, c.B = c.B, c.R
		gocv.Rectangle(&mat, rect, c, p.Thickness)
	}

	if !gocv.IMWrite(path, mat) {
		return errors.New("failed to write preview " + path)
	}
	return nil
}
