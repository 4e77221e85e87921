package port

import (
	"context"

	"pano-bot/internal/domain/entity"
)

// FeatureDetector интерфейс детектора особых точек
type FeatureDetector interface {
	// Name возвращает имя детектора (ORB, AKAZE)
	Name() string

	// Detect находит особые точки и дескрипторы, выровненные по индексу
	Detect(ctx context.Context, img *entity.Image) (entity.Features, error)
}
