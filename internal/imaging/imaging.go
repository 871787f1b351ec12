// Package imaging normalizes uploaded item photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	// MaxDimension bounds the width and height of stored photos.
	MaxDimension = 1280
	// MaxUploadBytes bounds the raw upload size.
	MaxUploadBytes = 8 << 20
	// MaxPixels bounds the decoded size of an upload. Compressed formats can
	// declare far more pixels than MaxUploadBytes suggests.
	MaxPixels = 40_000_000

	jpegQuality = 82
	contentType = "image/jpeg"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image too large")
)

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Photo is a processed image ready for storage.
type Photo struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Process sniffs the upload, rejects anything that is not a JPEG, PNG or GIF,
// fits it inside MaxDimension and re-encodes it as JPEG.
func Process(r io.Reader) (Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Photo{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return Photo{}, ErrTooLarge
	}

	if detected := http.DetectContentType(data); !acceptedTypes[detected] {
		return Photo{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Photo{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Photo{}, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Photo{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Photo{}, fmt.Errorf("encode jpeg: %w", err)
	}

	bounds := img.Bounds()
	return Photo{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// fit scales img down, preserving aspect ratio, so that neither side exceeds
// maxDim. Images already within bounds are returned unchanged.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
