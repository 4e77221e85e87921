package entity

import "image"

// Canvas — геометрия общего холста панорамы.
type Canvas struct {
	Width     int
	Height    int
	Transform Homography  // масштаб ∘ сдвиг, применяется поверх преобразования к опорному кадру
	Scale     float64     // итоговый равномерный масштаб, ≤ 1
	RawSize   image.Point // размер до ограничения
}

// Size возвращает размер холста.
func (c Canvas) Size() image.Point {
	return image.Pt(c.Width, c.Height)
}

// Clamped сообщает, что холст был уменьшен по лимитам.
func (c Canvas) Clamped() bool {
	return c.Scale < 1
}
