package app

import (
	"errors"
	"fmt"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/geo"
	"sat-detect/internal/domain/port"
)

// Georeferencer строит выходные записи из пиксельных координат
type Georeferencer struct {
	Fallback         geo.UTMFallback
	GroundResolution float64
}

// Extent запись охвата по углам (0, 0) и (W-1, H-1).
// Пересчёт из UTM применяется к обоим углам сразу.
func (g Georeferencer) Extent(src port.RasterSource) (entity.Record, error) {
	info := src.Info()
	a1, b1, err := src.PixelToGeo(0, 0)
	if err != nil {
		return entity.Record{}, fmt.Errorf("georeference extent: %w", err)
	}
	a2, b2, err := src.PixelToGeo(float64(info.Width-1), float64(info.Height-1))
	if err != nil {
		return entity.Record{}, fmt.Errorf("georeference extent: %w", err)
	}

	rec := entity.Record{Kind: entity.RecordExtent}
	rec.A, rec.B, rec.A2, rec.B2, rec.UTMFallback, err = g.Fallback.Extent(a1, b1, a2, b2)
	if err != nil {
		if !errors.Is(err, entity.ErrGeoOutOfRange) {
			return entity.Record{}, err
		}
		rec.Warning = err.Error()
	}
	return rec, nil
}

// Point запись детекции: центр рамки в координатах снимка и физический размер рамки
func (g Georeferencer) Point(src port.RasterSource, d entity.Detection) (entity.Record, error) {
	cx, cy := d.Box.Center()
	a, b, err := src.PixelToGeo(cx, cy)
	if err != nil {
		return entity.Record{}, fmt.Errorf("georeference detection: %w", err)
	}

	rec := entity.Record{
		Kind:   entity.RecordPoint,
		Width:  d.Box.Width() * g.GroundResolution,
		Height: d.Box.Height() * g.GroundResolution,
		Score:  d.Score,
		Label:  d.Label,
	}
	rec.A, rec.B, rec.UTMFallback, err = g.Fallback.Point(a, b)
	if err != nil {
		if !errors.Is(err, entity.ErrGeoOutOfRange) {
			return entity.Record{}, err
		}
		rec.Warning = err.Error()
	}
	return rec, nil
}

// Records охват и точки в порядке детекций
func (g Georeferencer) Records(src port.RasterSource, detections []entity.Detection) ([]entity.Record, error) {
	records := make([]entity.Record, 0, len(detections)+1)

	extent, err := g.Extent(src)
	if err != nil {
		return nil, err
	}
	records = append(records, extent)

	for _, d := range detections {
		rec, err := g.Point(src, d)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
