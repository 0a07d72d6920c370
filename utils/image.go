package utils

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

const (
	DefaultJPEGQuality  = 80
	DefaultMaxDimension = 2048
)

// ImageProcessor normalizes attached images into stored JPEG bytes
type ImageProcessor struct {
	quality      int  // JPEG quality (1-100)
	maxDimension uint // longest side after processing; 0 keeps the original size
}

// NewImageProcessor creates an image processor; out of range values fall back to defaults
func NewImageProcessor(quality, maxDimension int) *ImageProcessor {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if maxDimension < 0 {
		maxDimension = DefaultMaxDimension
	}
	return &ImageProcessor{
		quality:      quality,
		maxDimension: uint(maxDimension),
	}
}

// Quality returns the JPEG quality used for encoding
func (p *ImageProcessor) Quality() int {
	return p.quality
}

// ToJPEG decodes any supported image format and re-encodes it as JPEG
func (p *ImageProcessor) ToJPEG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = p.fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so its longest side is at most maxDimension
func (p *ImageProcessor) fit(img image.Image) image.Image {
	if p.maxDimension == 0 {
		return img
	}
	bounds := img.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())
	if width <= p.maxDimension && height <= p.maxDimension {
		return img
	}
	if width > height {
		return resize.Resize(p.maxDimension, 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, p.maxDimension, img, resize.Lanczos3)
}
