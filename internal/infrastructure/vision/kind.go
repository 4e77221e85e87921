package vision

import (
	"fmt"
	"strings"

	"pano-bot/internal/domain/entity"
)

// DetectorKind алгоритм поиска особых точек.
type DetectorKind string

const (
	KindORB   DetectorKind = "ORB"
	KindAKAZE DetectorKind = "AKAZE"
)

// ParseDetectorKind разбирает имя детектора без учёта регистра.
func ParseDetectorKind(s string) (DetectorKind, error) {
	switch DetectorKind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindORB:
		return KindORB, nil
	case KindAKAZE:
		return KindAKAZE, nil
	default:
		return "", fmt.Errorf("detector %q: %w", s, entity.ErrInvalidInput)
	}
}

// Параметры ORB: масштаб пирамиды, число уровней, размер патча.
const (
	orbScaleFactor   = 1.2
	orbLevels        = 8
	orbEdgeThreshold = 31
	orbPatchSize     = 31
	orbFastThreshold = 20
)

// splitRows режет плоский буфер дескрипторов на строки по width байт.
func splitRows(flat []byte, rows, width int) ([][]byte, error) {
	if rows*width != len(flat) {
		return nil, fmt.Errorf("descriptor buffer %d bytes for %dx%d: %w", len(flat), rows, width, entity.ErrInvalidInput)
	}
	out := make([][]byte, rows)
	for i := range out {
		out[i] = flat[i*width : (i+1)*width : (i+1)*width]
	}
	return out, nil
}

// joinRows склеивает строки дескрипторов в плоский буфер.
func joinRows(rows [][]byte) ([]byte, int) {
	if len(rows) == 0 {
		return nil, 0
	}
	width := len(rows[0])
	flat := make([]byte, 0, len(rows)*width)
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return flat, width
}
