package entity

import (
	"fmt"
	"strings"
)

// BlendMode — стратегия смешивания перекрывающихся изображений.
type BlendMode int

const (
	BlendOverlay BlendMode = iota // последнее поданное изображение побеждает
	BlendFeather                  // взвешенное среднее с затуханием к краю маски
)

func (m BlendMode) String() string {
	switch m {
	case BlendOverlay:
		return "overlay"
	case BlendFeather:
		return "feather"
	default:
		return "unknown"
	}
}

// ParseBlendMode разбирает имя режима без учёта регистра.
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overlay":
		return BlendOverlay, nil
	case "feather":
		return BlendFeather, nil
	default:
		return 0, fmt.Errorf("blend mode %q: %w", s, ErrInvalidInput)
	}
}
