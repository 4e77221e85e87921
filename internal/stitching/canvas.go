package stitching

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"pano-bot/internal/domain/entity"
)

// Лимиты холста по умолчанию.
const (
	DefaultCanvasMaxSide   = 6000
	DefaultCanvasMaxPixels = 16_000_000
)

// Planner рассчитывает общий холст для набора изображений.
type Planner struct {
	MaxSide   int // максимальная сторона холста, ≥ 1
	MaxPixels int // максимальная площадь холста, ≥ 1
}

// NewPlanner создаёт планировщик, подставляя значения по умолчанию вместо неположительных.
func NewPlanner(maxSide, maxPixels int) Planner {
	if maxSide < 1 {
		maxSide = DefaultCanvasMaxSide
	}
	if maxPixels < 1 {
		maxPixels = DefaultCanvasMaxPixels
	}
	return Planner{MaxSide: maxSide, MaxPixels: maxPixels}
}

// Plan проецирует углы каждого изображения в опорную систему, сдвигает объединение
// в неотрицательные координаты и равномерно уменьшает холст до лимитов.
// Слишком большой холст не ошибка: он уменьшается.
func (p Planner) Plan(sizes []image.Point, toRef []entity.Homography) (entity.Canvas, error) {
	if len(sizes) == 0 || len(sizes) != len(toRef) {
		return entity.Canvas{}, fmt.Errorf("%d images, %d transforms: %w", len(sizes), len(toRef), entity.ErrInvalidInput)
	}
	p = NewPlanner(p.MaxSide, p.MaxPixels)

	bounds := r2.EmptyRect()
	for i, sz := range sizes {
		if sz.X < 1 || sz.Y < 1 {
			return entity.Canvas{}, fmt.Errorf("image %d size %v: %w", i, sz, entity.ErrInvalidInput)
		}
		if toRef[i].IsZero() {
			return entity.Canvas{}, fmt.Errorf("image %d transform missing: %w", i, entity.ErrInsufficientData)
		}
		w, h := float64(sz.X), float64(sz.Y)
		for _, c := range [4]r2.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}} {
			q, ok := toRef[i].Apply(c)
			if !ok {
				return entity.Canvas{}, fmt.Errorf("image %d corner %v projects to infinity: %w", i, c, entity.ErrDegenerateFit)
			}
			bounds = bounds.AddPoint(q)
		}
	}

	// допуск: оценённая матрица даёт углы вида 20.0000000001
	rawW := math.Max(1, math.Ceil(bounds.X.Length()-1e-6))
	rawH := math.Max(1, math.Ceil(bounds.Y.Length()-1e-6))

	// масштаб считается по полуразмерам: разность конечных углов может
	// переполниться до +Inf, а половина от неё всегда конечна
	halfW := halfExtent(rawW, bounds.X)
	halfH := halfExtent(rawH, bounds.Y)

	// sqrt раздельно по сторонам: произведение огромных сторон переполняется
	s := math.Min(1, float64(p.MaxSide)/2/math.Max(halfW, halfH))
	s = math.Min(s, math.Sqrt(float64(p.MaxPixels))/2/math.Sqrt(halfW)/math.Sqrt(halfH))

	width := clampSide(2*(halfW*s), p.MaxSide)
	height := clampSide(2*(halfH*s), p.MaxSide)
	// стороны, поднятые до 1, могут вывести площадь за лимит
	for width*height > p.MaxPixels {
		if width >= height {
			width = max(1, p.MaxPixels/height)
		} else {
			height = max(1, p.MaxPixels/width)
		}
	}

	transform := entity.Scaling(s).Mul(entity.Translation(-bounds.X.Lo, -bounds.Y.Lo))
	return entity.Canvas{
		Width:     width,
		Height:    height,
		Transform: transform,
		Scale:     s,
		RawSize:   image.Pt(saturate(rawW), saturate(rawH)),
	}, nil
}

// halfExtent возвращает половину стороны холста, не переполняясь.
func halfExtent(raw float64, iv r1.Interval) float64 {
	if !math.IsInf(raw, 0) {
		return raw / 2
	}
	return iv.Hi/2 - iv.Lo/2
}

func clampSide(v float64, maxSide int) int {
	// допуск гасит ошибку округления при s == maxSide/raw
	n := math.Floor(v + 1e-9)
	if math.IsNaN(n) || n < 1 {
		return 1
	}
	if n > float64(maxSide) {
		return maxSide
	}
	return int(n)
}

func saturate(v float64) int {
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
