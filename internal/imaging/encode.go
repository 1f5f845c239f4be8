// Package imaging holds the pure image operations: collage assembly,
// size-capped JPEG encoding and data URIs for inline transport.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// SaveJPEG writes img to path as a JPEG at the given quality.
func SaveJPEG(img image.Image, path string, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
}

// EncodeJPEGUnder encodes img as a JPEG no larger than maxBytes. It steps the
// quality down first, then shrinks the image, matching what remote APIs with
// payload caps need.
func EncodeJPEGUnder(img image.Image, maxBytes int) ([]byte, error) {
	for quality := 95; quality >= 20; quality -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
	}

	for scale := 0.8; scale > 0.2; scale -= 0.1 {
		w := int(float64(img.Bounds().Dx()) * scale)
		h := int(float64(img.Bounds().Dy()) * scale)
		if w < 1 || h < 1 {
			break
		}
		resized := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), xdraw.Over, nil)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 70}); err != nil {
			return nil, err
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
	}

	return nil, fmt.Errorf("image does not fit in %d bytes", maxBytes)
}

// EncodeFileUnder decodes the image at path and re-encodes it as a JPEG no
// larger than maxBytes.
func EncodeFileUnder(path string, maxBytes int) ([]byte, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	return EncodeJPEGUnder(img, maxBytes)
}

// DataURI wraps JPEG bytes as a base64 data URI.
func DataURI(b []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(b)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// Flatten to RGB over white so transparency encodes predictably.
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Over)
	return rgba, nil
}
