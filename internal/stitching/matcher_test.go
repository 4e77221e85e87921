package stitching

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"pano-bot/internal/domain/entity"
)

func binary(rows ...byte) entity.Descriptors {
	d := entity.Descriptors{Kind: entity.DescriptorBinary}
	for _, r := range rows {
		d.Binary = append(d.Binary, []byte{r})
	}
	return d
}

func TestBruteForceMatcher_Empty(t *testing.T) {
	m := NewBruteForceMatcher()
	matches, err := m.Match(entity.Descriptors{}, binary(0x01))
	require.NoError(t, err)
	require.Empty(t, matches)

	matches, err = m.Match(binary(0x01), entity.Descriptors{Kind: entity.DescriptorBinary})
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestBruteForceMatcher_CrossCheck(t *testing.T) {
	// A1 ближе всего к B1, но B1 ближе всего к A0: пара (1, 1) отбрасывается
	a := binary(0x00, 0x01)
	b := binary(0xff, 0x00)

	matches, err := NewBruteForceMatcher().Match(a, b)
	require.NoError(t, err)
	require.Equal(t, []entity.Correspondence{{QueryIdx: 0, TrainIdx: 1, Distance: 0}}, matches)
}

func TestBruteForceMatcher_Float(t *testing.T) {
	a := entity.Descriptors{Kind: entity.DescriptorFloat, Float: [][]float32{{0, 0}, {10, 10}}}
	b := entity.Descriptors{Kind: entity.DescriptorFloat, Float: [][]float32{{9, 9}, {1, 0}}}

	matches, err := NewBruteForceMatcher().Match(a, b)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, 1, matches[0].TrainIdx)
	require.InDelta(t, 1, matches[0].Distance, 1e-9)
	require.Equal(t, 0, matches[1].TrainIdx)
	require.InDelta(t, math.Sqrt2, matches[1].Distance, 1e-6)
}

func TestBruteForceMatcher_InvalidInput(t *testing.T) {
	a := binary(0x01)
	b := entity.Descriptors{Kind: entity.DescriptorFloat, Float: [][]float32{{1}}}
	_, err := NewBruteForceMatcher().Match(a, b)
	require.True(t, errors.Is(err, entity.ErrInvalidInput))

	ragged := entity.Descriptors{Kind: entity.DescriptorBinary, Binary: [][]byte{{1}, {1, 2}}}
	_, err = NewBruteForceMatcher().Match(ragged, binary(0x01))
	require.True(t, errors.Is(err, entity.ErrInvalidInput))
}

type fakeMatcher struct {
	out []entity.Correspondence
	err error
}

func (f fakeMatcher) Match(a, b entity.Descriptors) ([]entity.Correspondence, error) {
	return f.out, f.err
}

func TestCrossCheckAdapter_Filters(t *testing.T) {
	backend := fakeMatcher{out: []entity.Correspondence{
		{QueryIdx: 2, TrainIdx: 0, Distance: 3},
		{QueryIdx: 0, TrainIdx: 0, Distance: 1}, // лучше для train 0
		{QueryIdx: 1, TrainIdx: 1, Distance: 2},
		{QueryIdx: 1, TrainIdx: 2, Distance: 1},  // лучше для query 1
		{QueryIdx: 5, TrainIdx: 1, Distance: 0},  // вне диапазона
		{QueryIdx: 2, TrainIdx: 1, Distance: -1}, // отрицательное расстояние
	}}

	matches, err := CrossCheckAdapter{Backend: backend}.Match(binary(1, 2, 3), binary(1, 2, 3))
	require.NoError(t, err)
	require.Equal(t, []entity.Correspondence{
		{QueryIdx: 0, TrainIdx: 0, Distance: 1},
		{QueryIdx: 1, TrainIdx: 2, Distance: 1},
	}, matches)
}

func TestCrossCheckAdapter_BackendError(t *testing.T) {
	boom := errors.New("boom")
	_, err := CrossCheckAdapter{Backend: fakeMatcher{err: boom}}.Match(binary(1), binary(1))
	require.ErrorIs(t, err, boom)
}

func TestMeanDistance(t *testing.T) {
	require.Zero(t, MeanDistance(nil))
	require.InDelta(t, 2, MeanDistance([]entity.Correspondence{{Distance: 1}, {Distance: 3}}), 1e-12)
}
