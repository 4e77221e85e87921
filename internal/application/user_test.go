package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pano-bot/internal/domain/entity"
	"pano-bot/internal/infrastructure/storage"
)

func TestUserService_BeginStitchAndCancel(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.BeginStitch(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingLeft, user.State)

	user, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestUserService_SetState(t *testing.T) {
	repo := storage.NewMemoryUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.SetState(ctx, 2, 20, entity.StateAwaitingRight)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingRight, user.State)

	user, err = svc.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingRight, user.State)
}
