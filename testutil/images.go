package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// Gradient returns a w x h image with a horizontal red and vertical green ramp.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 0x40,
				A: 0xff,
			})
		}
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(tb testing.TB, img image.Image) []byte {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, png.Encode(&buf, img))
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(tb testing.TB, img image.Image) []byte {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// EncodeGIF encodes img as GIF.
func EncodeGIF(tb testing.TB, img image.Image) []byte {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

// Corrupt returns bytes that start like a PNG but cannot be decoded.
func Corrupt() []byte {
	return []byte("\x89PNG\r\n\x1a\nthis is not a real image")
}

// Putter is the write side of a blob store.
type Putter interface {
	Put(ctx context.Context, name string, data []byte) error
}

// SeedImages writes n PNG images named "img-NNNN.png" to store and returns
// their identifiers in order. Every image has a distinct solid color.
func SeedImages(tb testing.TB, store Putter, n, w, h int) []string {
	tb.Helper()

	rng := NewRNG(int64(n))
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("img-%04d.png", i)
		require.NoError(tb, store.Put(context.Background(), ids[i], EncodePNG(tb, Solid(w, h, rng.Color()))))
	}
	return ids
}
