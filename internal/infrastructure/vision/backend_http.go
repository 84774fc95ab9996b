package vision

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"sat-detect/internal/domain/entity"
)

// HTTPBackend выполняет инференс через внешний сервис с моделью
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend создаёт клиент сервиса инференса
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// LoadRequest параметры загрузки модели на стороне сервиса
type LoadRequest struct {
	ModelPath string        `json:"model_path"`
	Backbone  string        `json:"backbone"`
	Convert   bool          `json:"convert"`
	Anchors   *AnchorParams `json:"anchor_parameters,omitempty"`
}

type tensorMeta struct {
	Rows      int    `json:"rows"`
	Cols      int    `json:"cols"`
	Channels  int    `json:"channels"`
	ImageType string `json:"image_type"`
	DType     string `json:"dtype"`
	ByteOrder string `json:"byte_order"`
}

type predictResponse struct {
	Boxes  [][4]float64 `json:"boxes"`
	Scores []float32    `json:"scores"`
	Labels []int        `json:"labels"`
}

// Load просит сервис загрузить модель. Любой отказ это ErrDetectorLoad.
func (h *HTTPBackend) Load(ctx context.Context, req LoadRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode load request: %v", entity.ErrDetectorLoad, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/load", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", entity.ErrDetectorLoad, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: send request: %v", entity.ErrDetectorLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: model %s: status %d: %s",
			entity.ErrDetectorLoad, req.ModelPath, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// CheckHealth проверяет доступность сервиса
func (h *HTTPBackend) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// PredictOnBatch отправляет тензор HWC float32 (little endian) и получает рамки
func (h *HTTPBackend) PredictOnBatch(ctx context.Context, img *entity.Tile, imageType entity.ImageType) (*RawPrediction, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	meta, err := json.Marshal(tensorMeta{
		Rows:      img.Rows,
		Cols:      img.Cols,
		Channels:  img.Bands,
		ImageType: string(imageType),
		DType:     "float32",
		ByteOrder: "little",
	})
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	if err := writer.WriteField("meta", string(meta)); err != nil {
		return nil, fmt.Errorf("write meta: %w", err)
	}

	part, err := writer.CreateFormFile("tensor", "tile.f32")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(encodeFloat32(img.Data)); err != nil {
		return nil, fmt.Errorf("copy tensor data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := &RawPrediction{
		Boxes:  make([]entity.Box, len(result.Boxes)),
		Scores: result.Scores,
		Labels: result.Labels,
	}
	for i, b := range result.Boxes {
		out.Boxes[i] = entity.Box{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]}
	}
	return out, nil
}

func encodeFloat32(data []float32) []byte {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}
