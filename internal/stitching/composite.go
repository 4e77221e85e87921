package stitching

import (
	"fmt"
	"sync"

	"pano-bot/internal/domain/entity"
)

// MinCompositeImages — меньше изображений композиция не собирает.
const MinCompositeImages = 3

// DefaultFeatherSharpness — крутизна растушёвки по умолчанию.
const DefaultFeatherSharpness = 0.02

// Compositor переносит изображения на холст и смешивает их.
type Compositor struct {
	Mode             entity.BlendMode
	FeatherSharpness float64
	// FeedOrder — порядок подачи изображений в накопитель (перестановка индексов).
	// В режиме Overlay последнее поданное изображение побеждает. Пусто — по индексу.
	FeedOrder []int
}

// Composite собирает панораму. toRef[i] переводит изображение i в опорную систему,
// поверх него применяется canvas.Transform. Частичных результатов нет: при любой
// ошибке возвращается nil.
func (c Compositor) Composite(images []*entity.Image, toRef []entity.Homography, canvas entity.Canvas) (*entity.Image, error) {
	order, err := c.validate(images, toRef, canvas)
	if err != nil {
		return nil, err
	}

	// Перенос независим по изображениям: у каждого воркера свой буфер.
	layers := make([]warped, len(images))
	errs := make([]error, len(images))
	var wg sync.WaitGroup
	for i := range images {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := warpImage(images[i], canvas.Transform.Mul(toRef[i]), canvas.Size())
			if err != nil {
				errs[i] = fmt.Errorf("warp image %d: %w", i, err)
				return
			}
			if c.Mode == entity.BlendFeather {
				w.weight = featherWeights(w.mask, w.rect.Dx(), w.rect.Dy(), c.FeatherSharpness)
			}
			layers[i] = w
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Накопитель один на вызов, подача строго последовательная.
	acc := newAccumulator(canvas.Width, canvas.Height, images[0].Channels)
	for _, i := range order {
		switch c.Mode {
		case entity.BlendFeather:
			acc.feedWeighted(layers[i])
		default:
			acc.feedOverlay(layers[i])
		}
	}
	return acc.result(), nil
}

func (c Compositor) validate(images []*entity.Image, toRef []entity.Homography, canvas entity.Canvas) ([]int, error) {
	if len(images) < MinCompositeImages {
		return nil, fmt.Errorf("%d images, need %d: %w", len(images), MinCompositeImages, entity.ErrInsufficientData)
	}
	if len(toRef) != len(images) {
		return nil, fmt.Errorf("%d transforms for %d images: %w", len(toRef), len(images), entity.ErrInsufficientData)
	}
	for i, h := range toRef {
		if h.IsZero() {
			return nil, fmt.Errorf("image %d transform missing: %w", i, entity.ErrInsufficientData)
		}
	}
	if c.Mode != entity.BlendOverlay && c.Mode != entity.BlendFeather {
		return nil, fmt.Errorf("blend mode %d: %w", c.Mode, entity.ErrInvalidInput)
	}
	if canvas.Width < 1 || canvas.Height < 1 {
		return nil, fmt.Errorf("canvas %dx%d: %w", canvas.Width, canvas.Height, entity.ErrInvalidInput)
	}
	for i, img := range images {
		if img.Empty() {
			return nil, fmt.Errorf("image %d is empty: %w", i, entity.ErrInvalidInput)
		}
		if img.Channels != images[0].Channels {
			return nil, fmt.Errorf("image %d has %d channels, image 0 has %d: %w", i, img.Channels, images[0].Channels, entity.ErrInvalidInput)
		}
	}

	if len(c.FeedOrder) == 0 {
		order := make([]int, len(images))
		for i := range order {
			order[i] = i
		}
		return order, nil
	}
	if len(c.FeedOrder) != len(images) {
		return nil, fmt.Errorf("feed order %v for %d images: %w", c.FeedOrder, len(images), entity.ErrInvalidInput)
	}
	seen := make([]bool, len(images))
	for _, i := range c.FeedOrder {
		if i < 0 || i >= len(images) || seen[i] {
			return nil, fmt.Errorf("feed order %v is not a permutation: %w", c.FeedOrder, entity.ErrInvalidInput)
		}
		seen[i] = true
	}
	return c.FeedOrder, nil
}

// accumulator — буфер цвета и буфер весов размером с холст.
type accumulator struct {
	width, height, channels int
	color                   []float32
	weight                  []float32
}

func newAccumulator(width, height, channels int) *accumulator {
	return &accumulator{
		width:    width,
		height:   height,
		channels: channels,
		color:    make([]float32, width*height*channels),
		weight:   make([]float32, width*height),
	}
}

// feedOverlay перезаписывает покрытые пиксели.
func (a *accumulator) feedOverlay(w warped) {
	a.each(w, func(dst, src int) {
		for c := 0; c < a.channels; c++ {
			a.color[dst*a.channels+c] = float32(w.pix[src*a.channels+c])
		}
		a.weight[dst] = 1
	})
}

// feedWeighted добавляет цвет с весом растушёвки.
func (a *accumulator) feedWeighted(w warped) {
	a.each(w, func(dst, src int) {
		wt := w.weight[src]
		if wt <= 0 {
			return
		}
		for c := 0; c < a.channels; c++ {
			a.color[dst*a.channels+c] += wt * float32(w.pix[src*a.channels+c])
		}
		a.weight[dst] += wt
	})
}

// each вызывает fn для каждого покрытого пикселя слоя: dst — индекс на холсте, src — в слое.
func (a *accumulator) each(w warped, fn func(dst, src int)) {
	rw := w.rect.Dx()
	for y := w.rect.Min.Y; y < w.rect.Max.Y; y++ {
		for x := w.rect.Min.X; x < w.rect.Max.X; x++ {
			src := (y-w.rect.Min.Y)*rw + (x - w.rect.Min.X)
			if w.mask[src] {
				fn(y*a.width+x, src)
			}
		}
	}
}

// result нормирует накопленный цвет. Непокрытые пиксели остаются нулевыми.
func (a *accumulator) result() *entity.Image {
	out := &entity.Image{
		Width:    a.width,
		Height:   a.height,
		Channels: a.channels,
		Pix:      make([]uint8, len(a.color)),
	}
	for i, wt := range a.weight {
		if wt <= 0 {
			continue
		}
		for c := 0; c < a.channels; c++ {
			v := a.color[i*a.channels+c]/wt + 0.5
			if v > 255 {
				v = 255
			}
			out.Pix[i*a.channels+c] = uint8(v)
		}
	}
	return out
}
