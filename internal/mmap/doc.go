// Package mmap provides read-only memory-mapped access to local image files.
//
// LocalStore maps each image once per decode so the codec reads straight
// from the page cache instead of copying the file into a heap buffer:
//
//	m, err := mmap.Open("photos/IMG_0001.jpg")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	img, _, err := image.Decode(bytes.NewReader(m.Bytes()))
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) access hints
//   - Windows: CreateFileMapping/MapViewOfFile (hints are a no-op)
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent, but callers
// must not touch Bytes() after Close returns.
package mmap
