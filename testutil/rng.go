package testutil

import (
	"image"
	"image/color"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Image returns a w x h image with random opaque pixels.
func (r *RNG) Image(w, h int) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := r.rand.Uint32()
		img.Pix[i] = uint8(v)
		img.Pix[i+1] = uint8(v >> 8)
		img.Pix[i+2] = uint8(v >> 16)
		img.Pix[i+3] = 0xff
	}
	return img
}

// Color returns a random opaque color.
func (r *RNG) Color() color.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.rand.Uint32()
	return color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 0xff}
}
