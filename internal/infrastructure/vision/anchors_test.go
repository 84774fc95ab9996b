package vision

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sat-detect/internal/domain/entity"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anchors.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAnchorParams(t *testing.T) {
	path := writeConfig(t, `[anchor_parameters]
sizes   = 16 32 64 128 256
strides = 8 16 32 64 128
ratios  = 0.5 1 2
scales  = 1 1.2 1.6
`)

	params, err := LoadAnchorParams(path)
	require.NoError(t, err)
	require.Equal(t, []int{16, 32, 64, 128, 256}, params.Sizes)
	require.Equal(t, []int{8, 16, 32, 64, 128}, params.Strides)
	require.Equal(t, []float64{0.5, 1, 2}, params.Ratios)
	require.Equal(t, []float64{1, 1.2, 1.6}, params.Scales)
}

func TestLoadAnchorParams_Invalid(t *testing.T) {
	cases := map[string]string{
		"no section":      "[other]\nsizes = 1\n",
		"bad number":      "[anchor_parameters]\nsizes = 1 x\nstrides = 1 2\nratios = 1\nscales = 1\n",
		"length mismatch": "[anchor_parameters]\nsizes = 1 2\nstrides = 1\nratios = 1\nscales = 1\n",
		"empty ratios":    "[anchor_parameters]\nsizes = 1\nstrides = 1\nratios =\nscales = 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadAnchorParams(writeConfig(t, body))
			require.True(t, errors.Is(err, entity.ErrDetectorLoad))
		})
	}

	_, err := LoadAnchorParams(filepath.Join(t.TempDir(), "missing.ini"))
	require.True(t, errors.Is(err, entity.ErrDetectorLoad))
}
