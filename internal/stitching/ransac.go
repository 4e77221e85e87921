package stitching

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/golang/geo/r2"

	"pano-bot/internal/domain/entity"
)

const minimalSample = 4

// EstimatorConfig параметры RANSAC.
type EstimatorConfig struct {
	MaxIterations int  // бюджет итераций, > 0
	MinInliers    int  // нижняя граница консенсуса, не меньше 4
	Refine        bool // переоценить по всем инлаерам
}

// DefaultEstimatorConfig возвращает параметры по умолчанию.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{MaxIterations: 2000, MinInliers: minimalSample, Refine: true}
}

// Estimator робастно оценивает гомографию по зашумлённым соответствиям.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator создаёт оценщик, исправляя недопустимые параметры.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	if cfg.MinInliers < minimalSample {
		cfg.MinInliers = minimalSample
	}
	return &Estimator{cfg: cfg}
}

// Fit — результат одной оценки.
//
// Inliers и InlierCount описывают консенсус лучшей гипотезы до переоценки:
// от них зависит монотонность по порогу. H при Refine переоценена по этим
// инлаерам, маска по ней не пересчитывается.
type Fit struct {
	H           entity.Homography
	Inliers     []bool // соответствие согласуется с лучшей гипотезой
	InlierCount int
}

// Estimate находит гомографию A → B по соответствиям при пороге threshold
// (ошибка репроекции в пикселях B). Выборки берутся из rng, поэтому при
// одинаковом зерне результат воспроизводим.
func (e *Estimator) Estimate(rng *rand.Rand, matches []entity.Correspondence, kpsA, kpsB []entity.Keypoint, threshold float64) (Fit, error) {
	if len(matches) < minimalSample {
		return Fit{}, fmt.Errorf("%d correspondences, need %d: %w", len(matches), minimalSample, entity.ErrInsufficientData)
	}
	src := make([]r2.Point, len(matches))
	dst := make([]r2.Point, len(matches))
	for k, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(kpsA) || m.TrainIdx < 0 || m.TrainIdx >= len(kpsB) {
			return Fit{}, fmt.Errorf("correspondence %d (%d, %d) out of range: %w", k, m.QueryIdx, m.TrainIdx, entity.ErrInvalidInput)
		}
		src[k] = kpsA[m.QueryIdx].Pt
		dst[k] = kpsB[m.TrainIdx].Pt
	}
	return e.EstimatePoints(rng, src, dst, threshold)
}

// EstimatePoints то же, что Estimate, но по готовым парам точек src[i] → dst[i].
func (e *Estimator) EstimatePoints(rng *rand.Rand, src, dst []r2.Point, threshold float64) (Fit, error) {
	n := len(src)
	if len(dst) != n {
		return Fit{}, fmt.Errorf("%d source and %d destination points: %w", n, len(dst), entity.ErrInvalidInput)
	}
	if n < minimalSample {
		return Fit{}, fmt.Errorf("%d correspondences, need %d: %w", n, minimalSample, entity.ErrInsufficientData)
	}
	if threshold < 0 {
		return Fit{}, fmt.Errorf("threshold %v: %w", threshold, entity.ErrInvalidInput)
	}
	if rng == nil {
		return Fit{}, fmt.Errorf("nil random source: %w", entity.ErrInvalidInput)
	}

	thr2 := threshold * threshold
	var (
		best      entity.Homography
		bestMask  []bool
		bestCount = -1
		bestErr   float64
		mask      = make([]bool, n)
	)

	// Бюджет итераций фиксирован: последовательность выборок зависит только
	// от зерна, поэтому более узкий порог не даёт больше инлаеров, чем широкий.
	for it := 0; it < e.cfg.MaxIterations; it++ {
		idx := sampleIndices(rng, n)
		var s, d [minimalSample]r2.Point
		for k, i := range idx {
			s[k], d[k] = src[i], dst[i]
		}
		if degenerateSample(s, d) {
			continue
		}
		h, ok := fitDLT(s[:], d[:])
		if !ok {
			continue
		}

		count, sumErr := score(h, src, dst, thr2, mask)
		if count > bestCount || (count == bestCount && sumErr < bestErr) {
			best, bestCount, bestErr = h, count, sumErr
			bestMask = append(bestMask[:0], mask...)
		}
		if bestCount == n {
			break
		}
	}

	if bestCount < e.cfg.MinInliers {
		return Fit{}, fmt.Errorf("best consensus %d of %d at threshold %v: %w", max(bestCount, 0), n, threshold, entity.ErrDegenerateFit)
	}

	if e.cfg.Refine {
		if h, ok := refit(src, dst, bestMask); ok {
			best = h
		}
	}
	if _, err := best.Inverse(); err != nil {
		return Fit{}, err
	}

	return Fit{H: best, Inliers: bestMask, InlierCount: bestCount}, nil
}

// EstimateThresholds оценивает одни и те же соответствия при нескольких порогах.
// Каждый порог получает свежий генератор с одним и тем же зерном.
func (e *Estimator) EstimateThresholds(seed uint64, pair entity.Pair, matches []entity.Correspondence, kpsA, kpsB []entity.Keypoint, thresholds []float64) []entity.PairEstimate {
	out := make([]entity.PairEstimate, 0, len(thresholds))
	for _, thr := range thresholds {
		start := time.Now()
		fit, err := e.Estimate(NewRand(seed), matches, kpsA, kpsB, thr)
		out = append(out, entity.PairEstimate{
			Pair:        pair,
			Threshold:   thr,
			H:           fit.H,
			Inliers:     fit.Inliers,
			InlierCount: fit.InlierCount,
			Duration:    time.Since(start),
			Err:         err,
		})
	}
	return out
}

// NewRand создаёт детерминированный генератор для RANSAC.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// sampleIndices выбирает 4 различных индекса из [0, n).
func sampleIndices(rng *rand.Rand, n int) [minimalSample]int {
	var idx [minimalSample]int
	for k := 0; k < minimalSample; {
		i := rng.IntN(n)
		if !slices.Contains(idx[:k], i) {
			idx[k] = i
			k++
		}
	}
	return idx
}

// score отмечает в mask пары с ошибкой репроекции не больше порога
// и возвращает их число и сумму квадратов ошибок.
func score(h entity.Homography, src, dst []r2.Point, thr2 float64, mask []bool) (int, float64) {
	count := 0
	var sum float64
	for i := range src {
		p, ok := h.Apply(src[i])
		mask[i] = false
		if !ok {
			continue
		}
		d := p.Sub(dst[i])
		e2 := d.Dot(d)
		if e2 <= thr2 {
			mask[i] = true
			count++
			sum += e2
		}
	}
	return count, sum
}

func refit(src, dst []r2.Point, mask []bool) (entity.Homography, bool) {
	var s, d []r2.Point
	for i, in := range mask {
		if in {
			s = append(s, src[i])
			d = append(d, dst[i])
		}
	}
	h, ok := fitDLT(s, d)
	if !ok {
		return entity.Homography{}, false
	}
	if _, err := h.Inverse(); err != nil {
		return entity.Homography{}, false
	}
	return h, true
}
