package port

import "pano-bot/internal/domain/entity"

// DescriptorMatcher интерфейс сопоставления дескрипторов
type DescriptorMatcher interface {
	// Match возвращает соответствия, упорядоченные по индексу в a
	Match(a, b entity.Descriptors) ([]entity.Correspondence, error)
}
