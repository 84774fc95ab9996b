package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, ImageTypePlanet, u.ImageType)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
}

func TestUser_SetImageType(t *testing.T) {
	u := NewUser(1, 10)
	u.SetImageType(ImageTypeTerraSAR)
	require.Equal(t, ImageTypeTerraSAR, u.ImageType)
}
