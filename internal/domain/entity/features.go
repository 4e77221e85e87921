package entity

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Keypoint — найденная особая точка. Ядру важна только координата.
type Keypoint struct {
	Pt       r2.Point // субпиксельная позиция
	Size     float64  // диаметр окрестности
	Angle    float64  // ориентация в градусах, -1 если нет
	Response float64  // сила отклика детектора
	Octave   int      // уровень пирамиды
}

// DescriptorKind определяет тип дескрипторов и, значит, метрику сравнения.
type DescriptorKind int

const (
	DescriptorBinary DescriptorKind = iota // ORB, AKAZE: расстояние Хэмминга
	DescriptorFloat                        // SIFT-подобные: евклидово расстояние
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorBinary:
		return "binary"
	case DescriptorFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Descriptors — упорядоченный набор дескрипторов одного изображения.
// Заполняется ровно одно из полей Binary / Float в зависимости от Kind.
type Descriptors struct {
	Kind   DescriptorKind
	Binary [][]byte
	Float  [][]float32
}

// Len возвращает число дескрипторов.
func (d Descriptors) Len() int {
	if d.Kind == DescriptorFloat {
		return len(d.Float)
	}
	return len(d.Binary)
}

// Features — особые точки и дескрипторы одного изображения.
type Features struct {
	Keypoints   []Keypoint
	Descriptors Descriptors
}

// Validate проверяет, что дескрипторы выровнены с точками по индексу.
func (f Features) Validate() error {
	if n := f.Descriptors.Len(); n != len(f.Keypoints) {
		return fmt.Errorf("%d descriptors for %d keypoints: %w", n, len(f.Keypoints), ErrInvalidInput)
	}
	return nil
}

// Correspondence — заявленная пара точек: QueryIdx в изображении A, TrainIdx в B.
type Correspondence struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}
