package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
	require.False(t, u.AwaitingPhoto())
	require.Equal(t, -1, u.PhotoIndex())
}

func TestUser_PhotoSequence(t *testing.T) {
	u := NewUser(1, 10)
	u.SetState(StateAwaitingLeft)

	var indexes []int
	for u.AwaitingPhoto() {
		indexes = append(indexes, u.PhotoIndex())
		u.SetState(u.NextPhotoState())
	}
	require.Equal(t, []int{0, 1, 2}, indexes)
	require.Equal(t, StateProcessing, u.State)
}
