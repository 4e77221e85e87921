package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	// форматы, которые принимает DecodeImage
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pano-bot/internal/domain/entity"
)

// DefaultJPEGQuality качество превью, отправляемых пользователю.
const DefaultJPEGQuality = 90

// DecodeImage декодирует JPEG, PNG, GIF, BMP, TIFF или WebP.
// Непрозрачные изображения (и серые: они склеиваются с цветными) приводятся
// к RGB, остальные к RGBA. Ориентация JPEG из EXIF применяется к пикселям.
func DecodeImage(data []byte) (*entity.Image, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decode %s: empty image: %w", format, entity.ErrInvalidInput)
	}

	nrgba, ok := src.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	}
	if format == "jpeg" {
		nrgba = orient(nrgba, exifOrientation(data))
	}
	return entity.FromNRGBA(nrgba), nil
}

// LoadImage читает и декодирует файл.
func LoadImage(path string) (*entity.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// EncodeJPEG кодирует изображение в JPEG. Альфа-канал отбрасывается.
func EncodeJPEG(img *entity.Image, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("encode jpeg: empty image: %w", entity.ErrInvalidInput)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.ToImage(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG записывает изображение в PNG без потерь.
func WritePNG(w io.Writer, img *entity.Image) error {
	if img.Empty() {
		return fmt.Errorf("encode png: empty image: %w", entity.ErrInvalidInput)
	}
	if err := png.Encode(w, img.ToImage()); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Downscale уменьшает изображение так, чтобы большая сторона не превышала maxSide.
// Меньшие изображения возвращаются как есть.
func Downscale(img *entity.Image, maxSide int) *entity.Image {
	if maxSide < 1 || (img.Width <= maxSide && img.Height <= maxSide) {
		return img
	}
	s := float64(maxSide) / float64(max(img.Width, img.Height))
	w := max(1, int(float64(img.Width)*s))
	h := max(1, int(float64(img.Height)*s))

	src, sr := img.ToImage(), image.Rect(0, 0, img.Width, img.Height)
	if img.Channels == 1 {
		dst := image.NewGray(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
		return entity.FromGray(dst)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	return entity.FromNRGBA(dst)
}
