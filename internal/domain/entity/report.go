package entity

import "time"

// FeatureStats — итог детекции для одного изображения.
type FeatureStats struct {
	Image     int
	Keypoints int
	Duration  time.Duration
	Err       error
}

// MatchResult — соответствия соседней пары и их статистика.
type MatchResult struct {
	Pair         Pair
	Matches      []Correspondence
	MeanDistance float64
	Duration     time.Duration
	Err          error
}

// Panorama — результат композиции при одном пороге и одном режиме.
type Panorama struct {
	Threshold float64
	Mode      BlendMode
	Image     *Image
	Canvas    Canvas
	Duration  time.Duration
	Err       error // nil, если панорама собрана
}

// Report — полный результат прогона по трём изображениям.
// Неудачные единицы работы остаются в отчёте со своей ошибкой.
type Report struct {
	Session   string
	Detector  string
	Features  []FeatureStats
	Matches   []MatchResult
	Estimates []PairEstimate
	Panoramas []Panorama
}

// Estimate ищет оценку пары при заданном пороге.
func (r *Report) Estimate(p Pair, threshold float64) (PairEstimate, bool) {
	for _, e := range r.Estimates {
		if e.Pair == p && e.Threshold == threshold {
			return e, true
		}
	}
	return PairEstimate{}, false
}
