package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pano-bot/internal/domain/entity"
	"pano-bot/internal/domain/port"
)

type estimateKey struct {
	pair      entity.Pair
	threshold float64
}

// MemoryEstimateRepository in-memory хранилище оценок по сессиям
type MemoryEstimateRepository struct {
	mu       sync.RWMutex
	sessions map[string]map[estimateKey]entity.PairEstimate
}

// NewMemoryEstimateRepository создаёт пустое хранилище
func NewMemoryEstimateRepository() *MemoryEstimateRepository {
	return &MemoryEstimateRepository{
		sessions: make(map[string]map[estimateKey]entity.PairEstimate),
	}
}

// Save сохраняет оценку, перезаписывая прежнюю для той же пары и порога
func (r *MemoryEstimateRepository) Save(ctx context.Context, session string, est entity.PairEstimate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == "" {
		return fmt.Errorf("empty session: %w", entity.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byKey, ok := r.sessions[session]
	if !ok {
		byKey = make(map[estimateKey]entity.PairEstimate)
		r.sessions[session] = byKey
	}
	byKey[estimateKey{pair: est.Pair, threshold: est.Threshold}] = est
	return nil
}

// Get возвращает оценку пары при пороге
func (r *MemoryEstimateRepository) Get(ctx context.Context, session string, pair entity.Pair, threshold float64) (entity.PairEstimate, bool, error) {
	if err := ctx.Err(); err != nil {
		return entity.PairEstimate{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	est, ok := r.sessions[session][estimateKey{pair: pair, threshold: threshold}]
	return est, ok, nil
}

// List возвращает оценки сессии, упорядоченные по паре и порогу
func (r *MemoryEstimateRepository) List(ctx context.Context, session string) ([]entity.PairEstimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]entity.PairEstimate, 0, len(r.sessions[session]))
	for _, est := range r.sessions[session] {
		out = append(out, est)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pair.From != b.Pair.From {
			return a.Pair.From < b.Pair.From
		}
		if a.Pair.To != b.Pair.To {
			return a.Pair.To < b.Pair.To
		}
		return a.Threshold < b.Threshold
	})
	return out, nil
}

// Delete удаляет все оценки сессии
func (r *MemoryEstimateRepository) Delete(ctx context.Context, session string) error {
	r.mu.Lock()
	delete(r.sessions, session)
	r.mu.Unlock()

	return nil
}

// Проверка реализации интерфейса
var _ port.EstimateRepository = (*MemoryEstimateRepository)(nil)
