package ml

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
)

// MaxImageSide is the largest width or height an image may have before decoding
const MaxImageSide = 8192

// MaxImagePixels bounds width*height, about a 48 megapixel photo
const MaxImagePixels = 50_000_000

// ErrImageTooLarge is returned for images over MaxImageSide or MaxImagePixels
var ErrImageTooLarge = errors.New("image dimensions are too large")

// CheckImage reads only the image header and returns its format ("jpeg" or "png").
// The pixel buffer of a compressed image can be far larger than the upload itself.
func CheckImage(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("empty image")
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide || cfg.Width*cfg.Height > MaxImagePixels {
		return "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return format, nil
}
