package entity

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// Homography — проективное преобразование 3x3, построчно.
// Композиция читается справа налево: a.Mul(b) применяет сначала b, потом a.
type Homography [9]float64

// Identity возвращает тождественное преобразование.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Translation возвращает сдвиг на (tx, ty).
func Translation(tx, ty float64) Homography {
	return Homography{1, 0, tx, 0, 1, ty, 0, 0, 1}
}

// Scaling возвращает равномерное масштабирование.
func Scaling(s float64) Homography {
	return Homography{s, 0, 0, 0, s, 0, 0, 0, 1}
}

// IsZero сообщает, что матрица не задана.
func (h Homography) IsZero() bool {
	return h == Homography{}
}

// Apply переводит точку. ok=false, если точка уходит в бесконечность.
func (h Homography) Apply(p r2.Point) (r2.Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return r2.Point{}, false
	}
	x := (h[0]*p.X + h[1]*p.Y + h[2]) / w
	y := (h[3]*p.X + h[4]*p.Y + h[5]) / w
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return r2.Point{}, false
	}
	return r2.Point{X: x, Y: y}, true
}

// Mul возвращает h·o.
func (h Homography) Mul(o Homography) Homography {
	var r Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[3*i+j] = h[3*i]*o[j] + h[3*i+1]*o[3+j] + h[3*i+2]*o[6+j]
		}
	}
	return r
}

// Normalized делит матрицу на h[8], если это возможно.
func (h Homography) Normalized() Homography {
	if math.Abs(h[8]) < 1e-12 {
		return h
	}
	var r Homography
	for i := range h {
		r[i] = h[i] / h[8]
	}
	return r
}

// Inverse возвращает обратное преобразование. Для вырожденной
// или плохо обусловленной матрицы возвращается ErrDegenerateFit.
func (h Homography) Inverse() (Homography, error) {
	if h.IsZero() {
		return Homography{}, fmt.Errorf("inverse of empty homography: %w", ErrDegenerateFit)
	}
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("invert homography: %v: %w", err, ErrDegenerateFit)
	}
	var r Homography
	copy(r[:], inv.RawMatrix().Data)
	return r.Normalized(), nil
}

func (h Homography) String() string {
	return fmt.Sprintf("[%10f %10f %10f; %10f %10f %10f; %10f %10f %10f]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}
