package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 0xff, A: 0xff})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestToJPEGKeepsSmallImages(t *testing.T) {
	p := NewImageProcessor(90, 100)

	out, err := p.ToJPEG(pngBytes(t, 40, 20))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}

func TestToJPEGScalesLongestSide(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
		maxDimension int
	}{
		{"landscape", 400, 200, 100, 50, 100},
		{"portrait", 100, 300, 20, 60, 60},
		{"unbounded", 300, 100, 300, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewImageProcessor(DefaultJPEGQuality, tt.maxDimension)
			out, err := p.ToJPEG(pngBytes(t, tt.w, tt.h))
			require.NoError(t, err)

			cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)
		})
	}
}

func TestToJPEGRejectsBadInput(t *testing.T) {
	p := NewImageProcessor(DefaultJPEGQuality, DefaultMaxDimension)

	_, err := p.ToJPEG(nil)
	assert.Error(t, err)

	_, err = p.ToJPEG([]byte("GIF89a but not really"))
	assert.Error(t, err)
}

func TestNewImageProcessorDefaults(t *testing.T) {
	assert.Equal(t, DefaultJPEGQuality, NewImageProcessor(0, 0).Quality())
	assert.Equal(t, DefaultJPEGQuality, NewImageProcessor(101, 0).Quality())
	assert.Equal(t, 55, NewImageProcessor(55, 0).Quality())
}
