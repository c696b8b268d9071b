package decode

import (
	"image"

	"golang.org/x/image/draw"
)

// FitSize returns the largest size with the aspect ratio of w x h that fits
// within maxW x maxH. Images are never upscaled. Non-positive bounds disable
// the constraint on that axis.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scaleW, scaleH := 1.0, 1.0
	if maxW > 0 && w > maxW {
		scaleW = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		scaleH = float64(maxH) / float64(h)
	}
	s := min(scaleW, scaleH)
	if s >= 1 {
		return w, h
	}
	return max(1, int(float64(w)*s+0.5)), max(1, int(float64(h)*s+0.5))
}

// Thumbnail scales src to fit within maxW x maxH into a new RGBA image
// anchored at the origin.
func Thumbnail(src image.Image, maxW, maxH int, scaler draw.Scaler) *image.RGBA {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
