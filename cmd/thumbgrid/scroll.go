package main

import "math/rand"

// scrollPath returns n scroll offsets in [0, maxOffset] that mostly move
// forward in small steps with occasional jumps, like a user flicking
// through a grid. The same seed yields the same path.
func scrollPath(seed int64, n, maxOffset, step int) []int {
	rng := rand.New(rand.NewSource(seed))

	path := make([]int, max(n, 0))
	y := 0
	for i := range path {
		switch p := rng.Float64(); {
		case p < 0.05 && maxOffset > 0:
			y = rng.Intn(maxOffset + 1)
		case p < 0.25:
			y -= rng.Intn(step + 1)
		default:
			y += rng.Intn(step + 1)
		}
		y = min(max(y, 0), maxOffset)
		path[i] = y
	}
	return path
}
