package entity

import (
	"fmt"
	"image"
	"image/color"
)

// Image — растровое изображение с 1, 3 или 4 каналами по 8 бит.
// Пиксели хранятся построчно, каналы чередуются (RGB / RGBA).
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewImage создаёт чёрное изображение заданного размера.
func NewImage(width, height, channels int) (*Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("image size %dx%d: %w", width, height, ErrInvalidInput)
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("image channels %d: %w", channels, ErrInvalidInput)
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}, nil
}

// Size возвращает размер изображения как точку (ширина, высота).
func (m *Image) Size() image.Point {
	return image.Pt(m.Width, m.Height)
}

// Empty сообщает, что изображение отсутствует или не содержит пикселей.
func (m *Image) Empty() bool {
	return m == nil || m.Width < 1 || m.Height < 1 || len(m.Pix) < m.Width*m.Height*m.Channels
}

// Offset возвращает индекс первого канала пикселя (x, y).
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * m.Channels
}

// Gray возвращает яркость (BT.601) каждого пикселя, по байту на пиксель.
func (m *Image) Gray() []uint8 {
	out := make([]uint8, m.Width*m.Height)
	if m.Channels == 1 {
		copy(out, m.Pix)
		return out
	}
	for i := range out {
		p := m.Pix[i*m.Channels:]
		y := (299*int(p[0]) + 587*int(p[1]) + 114*int(p[2]) + 500) / 1000
		out[i] = uint8(y)
	}
	return out
}

// ToImage конвертирует в стандартный image.Image (Gray или NRGBA).
func (m *Image) ToImage() image.Image {
	r := image.Rect(0, 0, m.Width, m.Height)
	switch m.Channels {
	case 1:
		g := image.NewGray(r)
		copy(g.Pix, m.Pix)
		return g
	case 3:
		out := image.NewNRGBA(r)
		for i, j := 0, 0; i < len(m.Pix); i, j = i+3, j+4 {
			out.Pix[j] = m.Pix[i]
			out.Pix[j+1] = m.Pix[i+1]
			out.Pix[j+2] = m.Pix[i+2]
			out.Pix[j+3] = 0xff
		}
		return out
	default:
		out := image.NewNRGBA(r)
		copy(out.Pix, m.Pix)
		return out
	}
}

// FromNRGBA строит изображение из NRGBA. Непрозрачный источник даёт 3 канала.
func FromNRGBA(src *image.NRGBA) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	opaque := src.Opaque()
	channels := 4
	if opaque {
		channels = 3
	}
	out := &Image{Width: w, Height: h, Channels: channels, Pix: make([]uint8, w*h*channels)}
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			o := out.Offset(x, y)
			copy(out.Pix[o:o+channels], row[x*4:x*4+channels])
		}
	}
	return out
}

// FromGray строит одноканальное изображение.
func FromGray(src *image.Gray) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Image{Width: w, Height: h, Channels: 1, Pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		copy(out.Pix[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
	return out
}

// Fill заливает всё изображение одним цветом.
func (m *Image) Fill(c color.NRGBA) {
	px := [4]uint8{c.R, c.G, c.B, c.A}
	if m.Channels == 1 {
		px[0] = color.GrayModel.Convert(c).(color.Gray).Y
	}
	for i := 0; i < len(m.Pix); i += m.Channels {
		copy(m.Pix[i:i+m.Channels], px[:m.Channels])
	}
}

// WithChannels приводит изображение к n каналам (1, 3 или 4). Серый канал
// размножается, недостающая альфа непрозрачна, лишняя отбрасывается.
// При совпадении числа каналов возвращается само изображение.
func (m *Image) WithChannels(n int) (*Image, error) {
	if m.Channels == n {
		return m, nil
	}
	out, err := NewImage(m.Width, m.Height, n)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		copy(out.Pix, m.Gray())
		return out, nil
	}
	out.Fill(color.NRGBA{A: 255})
	for i := 0; i < m.Width*m.Height; i++ {
		src := m.Pix[i*m.Channels : (i+1)*m.Channels]
		dst := out.Pix[i*n : (i+1)*n]
		if m.Channels == 1 {
			dst[0], dst[1], dst[2] = src[0], src[0], src[0]
			continue
		}
		copy(dst[:3], src[:3])
	}
	return out, nil
}
