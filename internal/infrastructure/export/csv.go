package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"sat-detect/internal/domain/entity"
	"sat-detect/internal/domain/port"
)

// CSVSink пишет <OutputDir>/<basename>.csv.
// Первая строка охват: ulA, ulB, brA, brB. Далее по строке на детекцию:
// centroidA, centroidB, width, height. Заголовка нет.
type CSVSink struct{}

// NewCSVSink создаёт CSV sink
func NewCSVSink() *CSVSink {
	return &CSVSink{}
}

// Write сохраняет записи результата
func (s *CSVSink) Write(ctx context.Context, result *entity.PredictionResult) error {
	staged, err := s.Stage(ctx, result)
	if err != nil {
		return err
	}
	return staged.Commit()
}

// Stage пишет CSV во временный файл, итоговое имя появляется после Commit
func (s *CSVSink) Stage(ctx context.Context, result *entity.PredictionResult) (port.StagedWrite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := result.OutputFile(entity.SuffixCSV)
	staged, err := stageFile(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		for _, r := range result.Records {
			if err := cw.Write(csvRow(r)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return nil, fmt.Errorf("write csv %s: %w", path, err)
	}
	return staged, nil
}

func csvRow(r entity.Record) []string {
	if r.IsExtent() {
		return []string{formatFloat(r.A), formatFloat(r.B), formatFloat(r.A2), formatFloat(r.B2)}
	}
	return []string{formatFloat(r.A), formatFloat(r.B), formatFloat(r.Width), formatFloat(r.Height)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ port.StagingSink = (*CSVSink)(nil)
