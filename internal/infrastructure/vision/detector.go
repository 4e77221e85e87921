//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"

	"pano-bot/internal/domain/entity"
	"pano-bot/internal/domain/port"
)

// GoCVDetector ищет особые точки ORB или AKAZE через OpenCV.
type GoCVDetector struct {
	Kind        DetectorKind
	MaxFeatures int
}

// NewGoCVDetector создаёт детектор. maxFeatures учитывается только для ORB.
func NewGoCVDetector(name string, maxFeatures int) (*GoCVDetector, error) {
	kind, err := ParseDetectorKind(name)
	if err != nil {
		return nil, err
	}
	if maxFeatures < 1 {
		return nil, fmt.Errorf("max features %d: %w", maxFeatures, entity.ErrInvalidInput)
	}
	return &GoCVDetector{Kind: kind, MaxFeatures: maxFeatures}, nil
}

func (d *GoCVDetector) Name() string {
	return string(d.Kind)
}

// Detect работает по яркости изображения. Дескрипторы обоих алгоритмов бинарные.
func (d *GoCVDetector) Detect(ctx context.Context, img *entity.Image) (entity.Features, error) {
	if err := ctx.Err(); err != nil {
		return entity.Features{}, err
	}
	if img.Empty() {
		return entity.Features{}, errors.New("empty image")
	}

	gray, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC1, img.Gray())
	if err != nil {
		return entity.Features{}, fmt.Errorf("gray mat: %w", err)
	}
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	var (
		kps  []gocv.KeyPoint
		desc gocv.Mat
	)
	switch d.Kind {
	case KindAKAZE:
		akaze := gocv.NewAKAZE()
		defer akaze.Close()
		kps, desc = akaze.DetectAndCompute(gray, mask)
	default:
		orb := gocv.NewORBWithParams(d.MaxFeatures, orbScaleFactor, orbLevels, orbEdgeThreshold, 0, 2,
			gocv.ORBScoreTypeHarris, orbPatchSize, orbFastThreshold)
		defer orb.Close()
		kps, desc = orb.DetectAndCompute(gray, mask)
	}
	defer desc.Close()

	out := entity.Features{
		Keypoints:   make([]entity.Keypoint, len(kps)),
		Descriptors: entity.Descriptors{Kind: entity.DescriptorBinary},
	}
	for i, kp := range kps {
		out.Keypoints[i] = entity.Keypoint{
			Pt:       r2.Point{X: kp.X, Y: kp.Y},
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
		}
	}
	if desc.Empty() || len(kps) == 0 {
		out.Keypoints = out.Keypoints[:0]
		return out, nil
	}

	rows, err := splitRows(desc.ToBytes(), desc.Rows(), desc.Cols())
	if err != nil {
		return entity.Features{}, err
	}
	out.Descriptors.Binary = rows
	if err := out.Validate(); err != nil {
		return entity.Features{}, err
	}
	return out, nil
}

// GoCVMatcher сопоставляет бинарные дескрипторы через cv::BFMatcher с перекрёстной проверкой.
// OpenCV не гарантирует порядок и уникальность, поэтому матчер оборачивают в CrossCheckAdapter.
type GoCVMatcher struct{}

func NewGoCVMatcher() *GoCVMatcher {
	return &GoCVMatcher{}
}

func (m *GoCVMatcher) Match(a, b entity.Descriptors) ([]entity.Correspondence, error) {
	if a.Kind != entity.DescriptorBinary || b.Kind != entity.DescriptorBinary {
		return nil, fmt.Errorf("opencv matcher supports binary descriptors only: %w", entity.ErrInvalidInput)
	}
	if a.Len() == 0 || b.Len() == 0 {
		return []entity.Correspondence{}, nil
	}

	query, err := toMat(a.Binary)
	if err != nil {
		return nil, err
	}
	defer query.Close()
	train, err := toMat(b.Binary)
	if err != nil {
		return nil, err
	}
	defer train.Close()

	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer bf.Close()

	var out []entity.Correspondence
	for _, knn := range bf.KnnMatch(query, train, 1) {
		for _, dm := range knn {
			out = append(out, entity.Correspondence{QueryIdx: dm.QueryIdx, TrainIdx: dm.TrainIdx, Distance: dm.Distance})
		}
	}
	return out, nil
}

func toMat(rows [][]byte) (gocv.Mat, error) {
	flat, width := joinRows(rows)
	mat, err := gocv.NewMatFromBytes(len(rows), width, gocv.MatTypeCV8UC1, flat)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("descriptor mat: %w", err)
	}
	return mat, nil
}

var (
	_ port.FeatureDetector   = (*GoCVDetector)(nil)
	_ port.DescriptorMatcher = (*GoCVMatcher)(nil)
)
