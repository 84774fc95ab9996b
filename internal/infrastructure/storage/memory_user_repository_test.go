package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sat-detect/internal/domain/entity"
)

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Equal(t, entity.ImageTypePlanet, user.ImageType)

	require.NoError(t, repo.UpdateState(ctx, 1, entity.StateAwaitingImage))
	require.NoError(t, repo.UpdateImageType(ctx, 1, entity.ImageTypeTerraSAR))

	user, err = repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingImage, user.State)
	require.Equal(t, entity.ImageTypeTerraSAR, user.ImageType)

	// изменения копии не видны без Save
	user.SetState(entity.StateProcessing)
	again, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingImage, again.State)

	require.NoError(t, repo.Save(ctx, user))
	again, err = repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, again.State)
}
