package port

import (
	"context"

	"pano-bot/internal/domain/entity"
)

// EstimateRepository интерфейс хранилища оценок преобразований.
// Оценки переиспользуются при повторной композиции без сопоставления.
type EstimateRepository interface {
	// Save сохраняет оценку пары для сессии
	Save(ctx context.Context, session string, est entity.PairEstimate) error

	// Get возвращает оценку пары при пороге
	Get(ctx context.Context, session string, pair entity.Pair, threshold float64) (entity.PairEstimate, bool, error)

	// List возвращает все оценки сессии
	List(ctx context.Context, session string) ([]entity.PairEstimate, error)

	// Delete удаляет сессию
	Delete(ctx context.Context, session string) error
}
