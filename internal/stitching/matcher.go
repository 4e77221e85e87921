package stitching

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"pano-bot/internal/domain/entity"
	"pano-bot/internal/domain/port"
)

// BruteForceMatcher сопоставляет дескрипторы полным перебором с перекрёстной проверкой:
// пара (i, j) остаётся, только если j — ближайший к i в B и i — ближайший к j в A.
// Метрика выбирается по типу дескрипторов: Хэмминг для бинарных, L2 для float.
type BruteForceMatcher struct{}

// NewBruteForceMatcher создаёт матчер.
func NewBruteForceMatcher() *BruteForceMatcher {
	return &BruteForceMatcher{}
}

// Match возвращает соответствия, упорядоченные по индексу в a.
func (m *BruteForceMatcher) Match(a, b entity.Descriptors) ([]entity.Correspondence, error) {
	if a.Len() == 0 || b.Len() == 0 {
		return []entity.Correspondence{}, nil
	}
	if a.Kind != b.Kind {
		return nil, fmt.Errorf("descriptor kinds %s and %s: %w", a.Kind, b.Kind, entity.ErrInvalidInput)
	}

	dist, err := distanceFunc(a, b)
	if err != nil {
		return nil, err
	}

	na, nb := a.Len(), b.Len()
	bestB := make([]int, na)
	bestBDist := make([]float64, na)
	bestA := make([]int, nb)
	bestADist := make([]float64, nb)
	for j := range bestA {
		bestA[j] = -1
		bestADist[j] = math.Inf(1)
	}

	for i := 0; i < na; i++ {
		bestB[i] = -1
		bestBDist[i] = math.Inf(1)
		for j := 0; j < nb; j++ {
			d := dist(i, j)
			// строгое сравнение: при равенстве остаётся меньший индекс
			if d < bestBDist[i] {
				bestB[i], bestBDist[i] = j, d
			}
			if d < bestADist[j] {
				bestA[j], bestADist[j] = i, d
			}
		}
	}

	matches := make([]entity.Correspondence, 0, min(na, nb))
	for i, j := range bestB {
		if j >= 0 && bestA[j] == i {
			matches = append(matches, entity.Correspondence{QueryIdx: i, TrainIdx: j, Distance: bestBDist[i]})
		}
	}
	return matches, nil
}

func distanceFunc(a, b entity.Descriptors) (func(i, j int) float64, error) {
	switch a.Kind {
	case entity.DescriptorBinary:
		width := len(a.Binary[0])
		for _, set := range [][][]byte{a.Binary, b.Binary} {
			for _, row := range set {
				if len(row) != width {
					return nil, fmt.Errorf("binary descriptor length %d, want %d: %w", len(row), width, entity.ErrInvalidInput)
				}
			}
		}
		return func(i, j int) float64 { return float64(hamming(a.Binary[i], b.Binary[j])) }, nil
	case entity.DescriptorFloat:
		width := len(a.Float[0])
		for _, set := range [][][]float32{a.Float, b.Float} {
			for _, row := range set {
				if len(row) != width {
					return nil, fmt.Errorf("float descriptor length %d, want %d: %w", len(row), width, entity.ErrInvalidInput)
				}
			}
		}
		return func(i, j int) float64 { return euclidean(a.Float[i], b.Float[j]) }, nil
	default:
		return nil, fmt.Errorf("descriptor kind %d: %w", a.Kind, entity.ErrInvalidInput)
	}
}

func hamming(a, b []byte) int {
	n := 0
	for k := range a {
		n += bits.OnesCount8(a[k] ^ b[k])
	}
	return n
}

func euclidean(a, b []float32) float64 {
	var s float64
	for k := range a {
		d := float64(a[k]) - float64(b[k])
		s += d * d
	}
	return math.Sqrt(s)
}

// CrossCheckAdapter оборачивает внешний матчер и гарантирует, что результат
// взаимно однозначен и ссылается только на существующие дескрипторы.
type CrossCheckAdapter struct {
	Backend port.DescriptorMatcher
}

// Match вызывает внешний матчер и фильтрует его ответ.
func (c CrossCheckAdapter) Match(a, b entity.Descriptors) ([]entity.Correspondence, error) {
	if a.Len() == 0 || b.Len() == 0 {
		return []entity.Correspondence{}, nil
	}
	raw, err := c.Backend.Match(a, b)
	if err != nil {
		return nil, err
	}
	return enforceCrossCheck(raw, a.Len(), b.Len()), nil
}

// enforceCrossCheck оставляет для каждого индекса A и B лучшее соответствие
// и только те пары, которые лучшие с обеих сторон.
func enforceCrossCheck(raw []entity.Correspondence, na, nb int) []entity.Correspondence {
	bestForQuery := make(map[int]entity.Correspondence, len(raw))
	bestForTrain := make(map[int]entity.Correspondence, len(raw))
	better := func(c, cur entity.Correspondence) bool {
		if c.Distance != cur.Distance {
			return c.Distance < cur.Distance
		}
		if c.QueryIdx != cur.QueryIdx {
			return c.QueryIdx < cur.QueryIdx
		}
		return c.TrainIdx < cur.TrainIdx
	}

	for _, c := range raw {
		if c.QueryIdx < 0 || c.QueryIdx >= na || c.TrainIdx < 0 || c.TrainIdx >= nb {
			continue
		}
		if c.Distance < 0 || math.IsNaN(c.Distance) {
			continue
		}
		if cur, ok := bestForQuery[c.QueryIdx]; !ok || better(c, cur) {
			bestForQuery[c.QueryIdx] = c
		}
		if cur, ok := bestForTrain[c.TrainIdx]; !ok || better(c, cur) {
			bestForTrain[c.TrainIdx] = c
		}
	}

	out := make([]entity.Correspondence, 0, len(bestForQuery))
	for _, c := range bestForQuery {
		if bestForTrain[c.TrainIdx] == c {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueryIdx < out[j].QueryIdx })
	return out
}

// MeanDistance возвращает среднее расстояние соответствий (0 для пустого набора).
func MeanDistance(matches []entity.Correspondence) float64 {
	if len(matches) == 0 {
		return 0
	}
	var s float64
	for _, m := range matches {
		s += m.Distance
	}
	return s / float64(len(matches))
}

var (
	_ port.DescriptorMatcher = (*BruteForceMatcher)(nil)
	_ port.DescriptorMatcher = CrossCheckAdapter{}
)
