package entity

import (
	"errors"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/require"
)

func TestHomography_ApplyTranslation(t *testing.T) {
	p, ok := Translation(100, -5).Apply(r2.Point{X: 3, Y: 4})
	require.True(t, ok)
	require.InDelta(t, 103, p.X, 1e-12)
	require.InDelta(t, -1, p.Y, 1e-12)
}

func TestHomography_MulAppliesRightFirst(t *testing.T) {
	h := Scaling(2).Mul(Translation(10, 0))
	p, ok := h.Apply(r2.Point{X: 1, Y: 1})
	require.True(t, ok)
	require.InDelta(t, 22, p.X, 1e-12)
	require.InDelta(t, 2, p.Y, 1e-12)
}

func TestHomography_Inverse(t *testing.T) {
	h := Homography{1.1, 0.05, 30, -0.02, 0.97, 12, 1e-4, -2e-4, 1}
	inv, err := h.Inverse()
	require.NoError(t, err)

	src := r2.Point{X: 250, Y: 130}
	fwd, ok := h.Apply(src)
	require.True(t, ok)
	back, ok := inv.Apply(fwd)
	require.True(t, ok)
	require.InDelta(t, src.X, back.X, 1e-9)
	require.InDelta(t, src.Y, back.Y, 1e-9)
}

func TestHomography_InverseSingular(t *testing.T) {
	_, err := Homography{1, 2, 3, 2, 4, 6, 0, 0, 1}.Inverse()
	require.True(t, errors.Is(err, ErrDegenerateFit))

	_, err = Homography{}.Inverse()
	require.True(t, errors.Is(err, ErrDegenerateFit))
}

func TestHomography_ApplyAtInfinity(t *testing.T) {
	_, ok := Homography{1, 0, 0, 0, 1, 0, 1, 0, 0}.Apply(r2.Point{X: 0, Y: 5})
	require.False(t, ok)
}
