package vision

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sat-detect/internal/domain/entity"
)

func TestHTTPBackend_PredictOnBatch(t *testing.T) {
	var gotMeta tensorMeta
	var gotTensor []float32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("meta")), &gotMeta))

		f, _, err := r.FormFile("tensor")
		require.NoError(t, err)
		raw, err := io.ReadAll(f)
		require.NoError(t, err)
		for i := 0; i+4 <= len(raw); i += 4 {
			gotTensor = append(gotTensor, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"boxes":  [][4]float64{{1, 2, 3, 4}},
			"scores": []float32{0.75},
			"labels": []int{2},
		})
	}))
	defer srv.Close()

	tile := entity.NewTile(entity.Window{Width: 2, Height: 1}, 1, 2, 3)
	for i := range tile.Data {
		tile.Data[i] = float32(i)
	}

	backend := NewHTTPBackend(srv.URL+"/", time.Second)
	out, err := backend.PredictOnBatch(context.Background(), tile, entity.ImageTypePlanet)
	require.NoError(t, err)

	require.Equal(t, tensorMeta{Rows: 1, Cols: 2, Channels: 3, ImageType: "planet", DType: "float32", ByteOrder: "little"}, gotMeta)
	require.Equal(t, tile.Data, gotTensor)
	require.Equal(t, []entity.Box{{X1: 1, Y1: 2, X2: 3, Y2: 4}}, out.Boxes)
	require.Equal(t, []float32{0.75}, out.Scores)
	require.Equal(t, []int{2}, out.Labels)
}

func TestHTTPBackend_PredictStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, time.Second)
	_, err := backend.PredictOnBatch(context.Background(), entity.NewTile(entity.Window{}, 1, 1, 3), entity.ImageTypePlanet)
	require.Error(t, err)
}

func TestHTTPBackend_Load(t *testing.T) {
	var got LoadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/load", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.ModelPath == "missing.h5" {
			http.Error(w, "no such model", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, time.Second)
	require.NoError(t, backend.Load(context.Background(), LoadRequest{ModelPath: "model.h5", Backbone: "resnet50", Convert: true}))
	require.Equal(t, "resnet50", got.Backbone)
	require.True(t, got.Convert)

	err := backend.Load(context.Background(), LoadRequest{ModelPath: "missing.h5"})
	require.True(t, errors.Is(err, entity.ErrDetectorLoad))
	require.Contains(t, err.Error(), "no such model")
}

func TestHTTPBackend_CheckHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	backend := NewHTTPBackend(srv.URL, time.Second)
	require.NoError(t, backend.CheckHealth(context.Background()))

	healthy = false
	require.Error(t, backend.CheckHealth(context.Background()))
}
