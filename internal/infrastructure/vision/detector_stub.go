//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"
	"fmt"

	"pano-bot/internal/domain/entity"
	"pano-bot/internal/domain/port"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

type GoCVDetector struct {
	Kind        DetectorKind
	MaxFeatures int
}

// NewGoCVDetector создаёт детектор-заглушку (без OpenCV).
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

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Detect(ctx context.Context, img *entity.Image) (entity.Features, error) {
	_ = ctx
	_ = img
	return entity.Features{}, errNoGoCV
}

type GoCVMatcher struct{}

func NewGoCVMatcher() *GoCVMatcher {
	return &GoCVMatcher{}
}

// Match возвращает ошибку, если сборка без тега gocv.
func (m *GoCVMatcher) Match(a, b entity.Descriptors) ([]entity.Correspondence, error) {
	return nil, errNoGoCV
}

var (
	_ port.FeatureDetector   = (*GoCVDetector)(nil)
	_ port.DescriptorMatcher = (*GoCVMatcher)(nil)
)
