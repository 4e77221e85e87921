package entity

import "errors"

// Ошибки единицы работы (пара, порог, панорама). Ни одна из них не фатальна
// для всего прогона: вызывающий пропускает единицу и продолжает.
var (
	// ErrInsufficientData — меньше 4 соответствий или меньше 3 изображений.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateFit — RANSAC не нашёл пригодного консенсуса.
	ErrDegenerateFit = errors.New("degenerate fit")

	// ErrInvalidInput — пустые дескрипторы, несовпадение каналов и т.п.
	ErrInvalidInput = errors.New("invalid input")
)
