package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseImageType(t *testing.T) {
	it, err := ParseImageType("terrasar")
	require.NoError(t, err)
	require.Equal(t, ImageTypeTerraSAR, it)

	_, err = ParseImageType("sentinel")
	require.Error(t, err)
}

func TestArrangeChannels_TerraSARBroadcast(t *testing.T) {
	tile := NewTile(Window{Width: 2, Height: 1}, 1, 2, 1)
	tile.SetBand(0, []float32{3, 9})

	out := ArrangeChannels(tile, ImageTypeTerraSAR)
	require.Equal(t, 3, out.Bands)
	require.Equal(t, []float32{3, 3, 3, 9, 9, 9}, out.Data)
}

func TestArrangeChannels_PlanetThreeBandsReversed(t *testing.T) {
	tile := NewTile(Window{Width: 1, Height: 1}, 1, 1, 3)
	copy(tile.Data, []float32{1, 2, 3})

	out := ArrangeChannels(tile, ImageTypePlanet)
	require.Equal(t, []float32{3, 2, 1}, out.Data)
}

func TestArrangeChannels_PlanetFourBandsKeepsOrder(t *testing.T) {
	tile := NewTile(Window{Width: 1, Height: 1}, 1, 1, 4)
	copy(tile.Data, []float32{1, 2, 3, 4})

	out := ArrangeChannels(tile, ImageTypePlanet)
	require.Equal(t, []float32{1, 2, 3}, out.Data)
}
