// Package testutil provides testing utilities for thumbgrid.
//
// This package is intended for use in tests and benchmarks only.
//
// # Deterministic Randomness
//
//	rng := testutil.NewRNG(seed)
//	img := rng.Image(64, 48)
//
// # Image Fixtures
//
//	data := testutil.EncodePNG(t, img)
//	ids := testutil.SeedImages(t, store, 100, 64, 64)
//
// # Fake Collaborators
//
//	src := testutil.NewSource(ids...)
//	rec := &testutil.RepaintRecorder{}
package testutil
