package vision

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"sat-detect/internal/domain/entity"
)

const anchorSection = "anchor_parameters"

// AnchorParams нестандартные параметры якорей для конвертации модели
type AnchorParams struct {
	Sizes   []int     `json:"sizes"`
	Strides []int     `json:"strides"`
	Ratios  []float64 `json:"ratios"`
	Scales  []float64 `json:"scales"`
}

// LoadAnchorParams читает секцию [anchor_parameters] из ini файла.
// Значения разделяются пробелами: sizes = 32 64 128 256 512
func LoadAnchorParams(path string) (*AnchorParams, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read anchor config: %v", entity.ErrDetectorLoad, err)
	}
	sec, err := cfg.GetSection(anchorSection)
	if err != nil {
		return nil, fmt.Errorf("%w: anchor config %s: %v", entity.ErrDetectorLoad, path, err)
	}

	params := &AnchorParams{}
	if params.Sizes, err = parseInts(sec.Key("sizes").String()); err != nil {
		return nil, fmt.Errorf("%w: sizes: %v", entity.ErrDetectorLoad, err)
	}
	if params.Strides, err = parseInts(sec.Key("strides").String()); err != nil {
		return nil, fmt.Errorf("%w: strides: %v", entity.ErrDetectorLoad, err)
	}
	if params.Ratios, err = parseFloats(sec.Key("ratios").String()); err != nil {
		return nil, fmt.Errorf("%w: ratios: %v", entity.ErrDetectorLoad, err)
	}
	if params.Scales, err = parseFloats(sec.Key("scales").String()); err != nil {
		return nil, fmt.Errorf("%w: scales: %v", entity.ErrDetectorLoad, err)
	}

	if len(params.Sizes) == 0 || len(params.Sizes) != len(params.Strides) {
		return nil, fmt.Errorf("%w: sizes and strides must be non-empty and of equal length", entity.ErrDetectorLoad)
	}
	if len(params.Ratios) == 0 || len(params.Scales) == 0 {
		return nil, fmt.Errorf("%w: ratios and scales must be non-empty", entity.ErrDetectorLoad)
	}
	return params, nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
