package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sat-detect/internal/domain/entity"
)

func TestTileGrid_Scenario2050(t *testing.T) {
	windows := TileGrid(2050, 2050, 1025, 1025)
	require.Equal(t, []entity.Window{
		{X: 0, Y: 0, Width: 1025, Height: 1025},
		{X: 1025, Y: 0, Width: 1025, Height: 1025},
		{X: 0, Y: 1025, Width: 1025, Height: 1025},
		{X: 1025, Y: 1025, Width: 1025, Height: 1025},
	}, windows)
}

func TestTileGrid_Coverage(t *testing.T) {
	cases := []struct{ w, h, tw, th int }{
		{1, 1, 1025, 1025},
		{1025, 1025, 1025, 1025},
		{1026, 3000, 1025, 1025},
		{5000, 777, 1025, 512},
		{7, 13, 3, 5},
	}
	for _, c := range cases {
		windows := TileGrid(c.w, c.h, c.tw, c.th)

		area := 0
		rowWidth := map[int]int{}
		colHeight := map[int]int{}
		for _, win := range windows {
			require.True(t, win.Contains(c.w, c.h), "%+v in %dx%d", win, c.w, c.h)
			require.Positive(t, win.Width)
			require.Positive(t, win.Height)
			area += win.Width * win.Height
			rowWidth[win.Y] += win.Width
			colHeight[win.X] += win.Height
		}
		// без пропусков и перекрытий
		require.Equal(t, c.w*c.h, area)
		for _, sum := range rowWidth {
			require.Equal(t, c.w, sum)
		}
		for _, sum := range colHeight {
			require.Equal(t, c.h, sum)
		}
	}
}

func TestTileGrid_RowMajorOrder(t *testing.T) {
	windows := TileGrid(30, 20, 10, 10)
	require.Len(t, windows, 6)
	for k := 1; k < len(windows); k++ {
		prev, cur := windows[k-1], windows[k]
		require.True(t, cur.Y > prev.Y || (cur.Y == prev.Y && cur.X > prev.X))
	}
}

func TestTileGrid_Empty(t *testing.T) {
	require.Empty(t, TileGrid(0, 100, 1025, 1025))
	require.Empty(t, TileGrid(100, 100, 0, 1025))
}
