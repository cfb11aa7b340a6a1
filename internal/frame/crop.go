package frame

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
)

const jpegQuality = 90

// CropPadded extracts the given box from the frame image, padded by pad
// pixels on every side and clamped to the frame bounds. The returned image is
// a copy, the frame pixels are not shared or mutated.
func CropPadded(f *Frame, box image.Rectangle, pad int) image.Image {
	padded := image.Rect(box.Min.X-pad, box.Min.Y-pad, box.Max.X+pad, box.Max.Y+pad)
	clamped := padded.Intersect(f.Image.Bounds())
	if clamped.Empty() {
		// Detection box entirely outside the frame, return a 1x1 fallback
		// rather than nil so callers can still write a file.
		clamped = image.Rect(0, 0, 1, 1).Intersect(f.Image.Bounds())
	}

	out := image.NewRGBA(image.Rect(0, 0, clamped.Dx(), clamped.Dy()))
	draw.Draw(out, out.Bounds(), f.Image, clamped.Min, draw.Src)
	return out
}

// SaveJPEG writes img to path, creating parent directories as needed.
func SaveJPEG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating media directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
