//go:build gocv
// +build gocv

package vision

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"sat-detect/internal/domain/entity"
)

// DefaultOutputNames выходы сконвертированной модели: boxes, scores, labels
var DefaultOutputNames = []string{"filtered_detections", "filtered_detections_1", "filtered_detections_2"}

// Среднее ImageNet в порядке BGR, режим caffe.
var caffeMean = gocv.NewScalar(103.939, 116.779, 123.68, 0)

// GoCVBackend запускает сконвертированную модель через OpenCV DNN
type GoCVBackend struct {
	mu      sync.Mutex
	net     gocv.Net
	outputs []string
}

// NewGoCVBackend загружает модель из файла (ONNX, pb и т.п.)
func NewGoCVBackend(modelPath string, outputs []string) (*GoCVBackend, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: opencv cannot read %s", entity.ErrDetectorLoad, modelPath)
	}
	if len(outputs) == 0 {
		outputs = DefaultOutputNames
	}
	return &GoCVBackend{net: net, outputs: outputs}, nil
}

// PredictOnBatch прогоняет одно изображение BGR через сеть.
// Net не потокобезопасен, вызовы сериализуются.
func (g *GoCVBackend) PredictOnBatch(ctx context.Context, img *entity.Tile, _ entity.ImageType) (*RawPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Bands != 3 {
		return nil, fmt.Errorf("gocv backend expects 3 channels, got %d", img.Bands)
	}

	raw := make([]byte, 4*len(img.Data))
	for i, v := range img.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	mat, err := gocv.NewMatFromBytes(img.Rows, img.Cols, gocv.MatTypeCV32FC3, raw)
	if err != nil {
		return nil, fmt.Errorf("tile to mat: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(img.Cols, img.Rows), caffeMean, false, false)
	defer blob.Close()

	g.mu.Lock()
	g.net.SetInput(blob, "")
	outs := g.net.ForwardLayers(g.outputs)
	g.mu.Unlock()
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 3 {
		return nil, fmt.Errorf("model returned %d outputs, want 3", len(outs))
	}

	boxes, err := floatsOf(outs[0])
	if err != nil {
		return nil, fmt.Errorf("boxes: %w", err)
	}
	scores, err := floatsOf(outs[1])
	if err != nil {
		return nil, fmt.Errorf("scores: %w", err)
	}
	labels, err := floatsOf(outs[2])
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	if len(boxes) != 4*len(scores) || len(labels) != len(scores) {
		return nil, fmt.Errorf("inconsistent output sizes: %d boxes, %d scores, %d labels", len(boxes), len(scores), len(labels))
	}

	out := &RawPrediction{
		Boxes:  make([]entity.Box, len(scores)),
		Scores: append([]float32(nil), scores...),
		Labels: make([]int, len(labels)),
	}
	for i := range scores {
		out.Boxes[i] = entity.Box{
			X1: float64(boxes[4*i]),
			Y1: float64(boxes[4*i+1]),
			X2: float64(boxes[4*i+2]),
			Y2: float64(boxes[4*i+3]),
		}
		out.Labels[i] = int(labels[i])
	}
	return out, nil
}

// Close освобождает сеть
func (g *GoCVBackend) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.net.Close()
}

// floatsOf копирует выход сети в []float32 независимо от исходного типа
func floatsOf(m gocv.Mat) ([]float32, error) {
	if m.Type() == gocv.MatTypeCV32F {
		data, err := m.DataPtrFloat32()
		if err != nil {
			return nil, err
		}
		return append([]float32(nil), data...), nil
	}
	converted := gocv.NewMat()
	defer converted.Close()
	m.ConvertTo(&converted, gocv.MatTypeCV32F)
	data, err := converted.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	return append([]float32(nil), data...), nil
}
