package stitching

import (
	"fmt"
	"image"
	"log/slog"

	"pano-bot/internal/domain/entity"
)

// Stitcher собирает панораму из трёх кадров с опорным средним кадром.
type Stitcher struct {
	Planner          Planner
	FeatherSharpness float64
	log              *slog.Logger
}

// NewStitcher создаёт сборщик.
func NewStitcher(planner Planner, featherSharpness float64, logger *slog.Logger) *Stitcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stitcher{Planner: planner, FeatherSharpness: featherSharpness, log: logger}
}

// Stitch собирает три кадра. pairwise[0] — преобразование левый → центр,
// pairwise[1] — центр → правый (оценщик всегда строит «ранний → поздний»).
func (s *Stitcher) Stitch(images [3]*entity.Image, pairwise [2]entity.Homography, mode entity.BlendMode) (*entity.Image, entity.Canvas, error) {
	toRef, err := ReferenceChain(pairwise[:], ReferenceIndex(len(images)))
	if err != nil {
		return nil, entity.Canvas{}, err
	}

	sizes := make([]image.Point, len(images))
	for i, img := range images {
		if img.Empty() {
			return nil, entity.Canvas{}, fmt.Errorf("image %d is empty: %w", i, entity.ErrInvalidInput)
		}
		sizes[i] = img.Size()
	}

	canvas, err := s.Planner.Plan(sizes, toRef)
	if err != nil {
		return nil, entity.Canvas{}, fmt.Errorf("plan canvas: %w", err)
	}
	if canvas.Clamped() {
		s.log.Warn("canvas clamped",
			"raw_width", canvas.RawSize.X,
			"raw_height", canvas.RawSize.Y,
			"width", canvas.Width,
			"height", canvas.Height,
			"scale", canvas.Scale,
		)
	}

	comp := Compositor{
		Mode:             mode,
		FeatherSharpness: s.FeatherSharpness,
		FeedOrder:        FeedOrder(len(images), ReferenceIndex(len(images))),
	}
	out, err := comp.Composite(images[:], toRef, canvas)
	if err != nil {
		return nil, canvas, fmt.Errorf("composite %s: %w", mode, err)
	}
	return out, canvas, nil
}

// ReferenceIndex возвращает опорный кадр: средний.
func ReferenceIndex(n int) int {
	return n / 2
}

// FeedOrder подаёт боковые кадры по порядку, опорный — последним,
// чтобы в Overlay опорный кадр был поверх соседей.
func FeedOrder(n, ref int) []int {
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != ref {
			order = append(order, i)
		}
	}
	return append(order, ref)
}

// ReferenceChain строит преобразование каждого кадра в систему кадра ref по
// цепочке соседних преобразований pairwise[i]: i → i+1. Кадры левее опорного
// идут по цепочке напрямую, правее — через обратную матрицу.
func ReferenceChain(pairwise []entity.Homography, ref int) ([]entity.Homography, error) {
	n := len(pairwise) + 1
	if ref < 0 || ref >= n {
		return nil, fmt.Errorf("reference %d of %d images: %w", ref, n, entity.ErrInvalidInput)
	}
	for i, h := range pairwise {
		if h.IsZero() {
			return nil, fmt.Errorf("pair %d-%d transform missing: %w", i, i+1, entity.ErrInsufficientData)
		}
	}

	toRef := make([]entity.Homography, n)
	toRef[ref] = entity.Identity()
	for i := ref - 1; i >= 0; i-- {
		toRef[i] = toRef[i+1].Mul(pairwise[i]).Normalized()
	}
	fromRef := entity.Identity()
	for i := ref + 1; i < n; i++ {
		fromRef = pairwise[i-1].Mul(fromRef).Normalized()
		inv, err := fromRef.Inverse()
		if err != nil {
			return nil, fmt.Errorf("invert chain %d-%d: %w", ref, i, err)
		}
		toRef[i] = inv
	}
	return toRef, nil
}
