package stitching

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"pano-bot/internal/domain/entity"
)

// normalization возвращает матрицу подобия (Хартли): центр в начале
// координат, среднее расстояние до центра sqrt(2).
func normalization(pts []r2.Point) (entity.Homography, bool) {
	var c r2.Point
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Mul(1 / float64(len(pts)))

	var mean float64
	for _, p := range pts {
		mean += p.Sub(c).Norm()
	}
	mean /= float64(len(pts))
	if mean < 1e-12 {
		return entity.Homography{}, false
	}
	s := math.Sqrt2 / mean
	return entity.Homography{s, 0, -s * c.X, 0, s, -s * c.Y, 0, 0, 1}, true
}

func applyAll(h entity.Homography, pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		// матрица нормализации аффинная, точка всегда конечна
		out[i], _ = h.Apply(p)
	}
	return out
}

// fitDLT находит гомографию src → dst по n ≥ 4 парам точек нормализованным DLT:
// правый сингулярный вектор системы 2n×9 при наименьшем сингулярном числе.
func fitDLT(src, dst []r2.Point) (entity.Homography, bool) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return entity.Homography{}, false
	}
	t1, ok := normalization(src)
	if !ok {
		return entity.Homography{}, false
	}
	t2, ok := normalization(dst)
	if !ok {
		return entity.Homography{}, false
	}
	ns, nd := applyAll(t1, src), applyAll(t2, dst)

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y, -v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return entity.Homography{}, false
	}
	var vt mat.Dense
	svd.VTo(&vt)

	var hn entity.Homography
	for k := 0; k < 9; k++ {
		hn[k] = vt.At(k, 8)
	}

	t2inv, err := t2.Inverse()
	if err != nil {
		return entity.Homography{}, false
	}
	h := t2inv.Mul(hn).Mul(t1)
	if math.Abs(h[8]) < 1e-12 {
		return entity.Homography{}, false
	}
	h = h.Normalized()
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return entity.Homography{}, false
		}
	}
	return h, true
}

// degenerateSample отбраковывает выборку из 4 пар: три коллинеарные точки
// или несогласованная ориентация треугольников (зеркальное отображение).
func degenerateSample(src, dst [4]r2.Point) bool {
	triples := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, t := range triples {
		cs := cross(src[t[0]], src[t[1]], src[t[2]])
		cd := cross(dst[t[0]], dst[t[1]], dst[t[2]])
		if collinear(src[t[0]], src[t[1]], src[t[2]], cs) || collinear(dst[t[0]], dst[t[1]], dst[t[2]], cd) {
			return true
		}
		if (cs > 0) != (cd > 0) {
			return true
		}
	}
	return false
}

func cross(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

func collinear(a, b, c r2.Point, cr float64) bool {
	d1, d2 := b.Sub(a), c.Sub(a)
	const eps = 1.1920929e-07 // FLT_EPSILON
	return math.Abs(cr) <= eps*(math.Abs(d1.X)+math.Abs(d1.Y)+math.Abs(d2.X)+math.Abs(d2.Y))
}
