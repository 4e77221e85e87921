package stitching

import (
	"image"
	"math"

	"github.com/golang/geo/r2"

	"pano-bot/internal/domain/entity"
)

// warped — изображение, перенесённое на холст. Буферы покрывают только
// rect (ограничивающий прямоугольник отпечатка внутри холста).
type warped struct {
	rect   image.Rectangle
	pix    []uint8   // rect.Dx()*rect.Dy()*channels
	mask   []bool    // покрытие, ближайший сосед
	weight []float32 // вес растушёвки, только для BlendFeather
}

// warpImage переносит img на холст canvasSize преобразованием h (изображение → холст).
// Каждый пиксель холста (x, y) отображается обратно в источник: цвет берётся
// билинейно с повтором краёв, маска — по ближайшему соседу.
func warpImage(img *entity.Image, h entity.Homography, canvasSize image.Point) (warped, error) {
	inv, err := h.Inverse()
	if err != nil {
		return warped{}, err
	}
	rect := footprint(img, h, canvasSize)
	ch := img.Channels
	out := warped{
		rect: rect,
		pix:  make([]uint8, rect.Dx()*rect.Dy()*ch),
		mask: make([]bool, rect.Dx()*rect.Dy()),
	}
	if rect.Empty() {
		return out, nil
	}

	maxX, maxY := float64(img.Width)-0.5, float64(img.Height)-0.5
	var sample [4]float64
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		fy := float64(y)
		for x := rect.Min.X; x < rect.Max.X; x, i = x+1, i+1 {
			fx := float64(x)
			w := inv[6]*fx + inv[7]*fy + inv[8]
			if w <= 1e-12 && w >= -1e-12 {
				continue
			}
			sx := (inv[0]*fx + inv[1]*fy + inv[2]) / w
			sy := (inv[3]*fx + inv[4]*fy + inv[5]) / w
			// round(s) ∈ [0, size-1]  ⇔  s ∈ [-0.5, size-0.5)
			if !(sx >= -0.5 && sx < maxX && sy >= -0.5 && sy < maxY) {
				continue
			}
			out.mask[i] = true
			bilinear(img, sx, sy, sample[:ch])
			o := i * ch
			for c := 0; c < ch; c++ {
				out.pix[o+c] = uint8(sample[c] + 0.5)
			}
		}
	}
	return out, nil
}

// footprint возвращает прямоугольник холста, в который может попасть изображение.
// Если угол уходит в бесконечность, берётся весь холст.
func footprint(img *entity.Image, h entity.Homography, canvasSize image.Point) image.Rectangle {
	full := image.Rectangle{Max: canvasSize}
	w, hh := float64(img.Width), float64(img.Height)
	bounds := r2.EmptyRect()
	for _, c := range [4]r2.Point{{X: -0.5, Y: -0.5}, {X: w, Y: -0.5}, {X: w, Y: hh}, {X: -0.5, Y: hh}} {
		q, ok := h.Apply(c)
		if !ok {
			return full
		}
		bounds = bounds.AddPoint(q)
	}
	r := image.Rect(
		int(math.Max(math.Floor(bounds.X.Lo)-1, -1)),
		int(math.Max(math.Floor(bounds.Y.Lo)-1, -1)),
		int(math.Min(math.Ceil(bounds.X.Hi)+2, float64(canvasSize.X+1))),
		int(math.Min(math.Ceil(bounds.Y.Hi)+2, float64(canvasSize.Y+1))),
	)
	return r.Intersect(full)
}

// bilinear интерполирует пиксель в точке (sx, sy), края повторяются.
func bilinear(img *entity.Image, sx, sy float64, dst []float64) {
	x0f, y0f := math.Floor(sx), math.Floor(sy)
	ax, ay := sx-x0f, sy-y0f
	x0 := clampInt(int(x0f), 0, img.Width-1)
	x1 := clampInt(int(x0f)+1, 0, img.Width-1)
	y0 := clampInt(int(y0f), 0, img.Height-1)
	y1 := clampInt(int(y0f)+1, 0, img.Height-1)

	p00, p01 := img.Offset(x0, y0), img.Offset(x1, y0)
	p10, p11 := img.Offset(x0, y1), img.Offset(x1, y1)
	for c := range dst {
		top := float64(img.Pix[p00+c])*(1-ax) + float64(img.Pix[p01+c])*ax
		bot := float64(img.Pix[p10+c])*(1-ax) + float64(img.Pix[p11+c])*ax
		dst[c] = top*(1-ay) + bot*ay
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// featherWeights считает вес min(1, sharpness·d), где d — расстояние
// городских кварталов до ближайшего непокрытого пикселя (двухпроходная
// фаска). Всё за пределами rect считается непокрытым.
// При sharpness == 0 вес покрытых пикселей равен 1.
func featherWeights(mask []bool, w, h int, sharpness float64) []float32 {
	out := make([]float32, len(mask))
	if sharpness <= 0 {
		for i, m := range mask {
			if m {
				out[i] = 1
			}
		}
		return out
	}

	const inf = math.MaxInt32 / 2
	d := make([]int32, len(mask))
	for i, m := range mask {
		if m {
			d[i] = inf
		}
	}
	at := func(x, y int) int32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return d[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if d[i] == 0 {
				continue
			}
			d[i] = min(d[i], at(x-1, y)+1, at(x, y-1)+1)
		}
	}
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			if d[i] == 0 {
				continue
			}
			d[i] = min(d[i], at(x+1, y)+1, at(x, y+1)+1)
		}
	}

	for i, v := range d {
		if v > 0 {
			out[i] = float32(math.Min(1, sharpness*float64(v)))
		}
	}
	return out
}
