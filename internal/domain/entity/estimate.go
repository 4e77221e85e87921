package entity

import "time"

// Pair — упорядоченная пара соседних изображений (From → To), From < To.
type Pair struct {
	From int
	To   int
}

// PairEstimate — преобразование From → To, найденное при одном пороге RANSAC.
type PairEstimate struct {
	Pair        Pair
	Threshold   float64
	H           Homography
	Inliers     []bool // выровнена по соответствиям пары
	InlierCount int
	Duration    time.Duration
	Err         error // nil, если преобразование найдено
}

// OK сообщает, что оценка успешна и матрица задана.
func (e PairEstimate) OK() bool {
	return e.Err == nil && !e.H.IsZero()
}
