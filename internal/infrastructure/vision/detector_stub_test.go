//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pano-bot/internal/domain/entity"
)

func TestStubDetector(t *testing.T) {
	d, err := NewGoCVDetector("akaze", 100)
	require.NoError(t, err)
	require.Equal(t, "AKAZE", d.Name())

	_, err = d.Detect(context.Background(), &entity.Image{})
	require.Error(t, err)

	_, err = NewGoCVDetector("orb", 0)
	require.True(t, errors.Is(err, entity.ErrInvalidInput))

	_, err = NewGoCVMatcher().Match(entity.Descriptors{}, entity.Descriptors{})
	require.Error(t, err)
}
