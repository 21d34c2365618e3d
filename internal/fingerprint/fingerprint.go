package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PhotoHash returns the hex SHA-256 of the photo bytes.
// Templates are cached under this hash so a replaced enrollment photo is recomputed.
func PhotoHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DecodeImage decodes JPEG, PNG, GIF, BMP or WebP data.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// fitWithin returns the dimensions of a w x h image scaled to fit maxSize, keeping aspect ratio.
func fitWithin(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w > h {
		return maxSize, max(1, int(float64(h)*float64(maxSize)/float64(w)))
	}
	return max(1, int(float64(w)*float64(maxSize)/float64(h))), maxSize
}

// resizeImage scales img to width x height.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// EncodeForComparison downsizes a frame to fit within maxSize and encodes it as JPEG.
// Preview resolution and comparison resolution are independent: the camera may
// deliver a large frame, only the scaled copy is sent for embedding extraction.
func EncodeForComparison(img image.Image, maxSize, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("empty image")
	}

	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxSize)
	src := img
	if w != bounds.Dx() || h != bounds.Dy() {
		src = resizeImage(img, w, h)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
