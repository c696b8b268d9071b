package testutil

import (
	"image"
	"sync"
)

// Source is a mutable in-memory data source.
type Source struct {
	mu  sync.RWMutex
	ids []string
}

// NewSource creates a source with the given image identifiers.
func NewSource(ids ...string) *Source {
	return &Source{ids: append([]string(nil), ids...)}
}

// Len returns the number of rows.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// ID returns the identifier of row.
func (s *Source) ID(row int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row < 0 || row >= len(s.ids) {
		return ""
	}
	return s.ids[row]
}

// Set replaces all identifiers.
func (s *Source) Set(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append([]string(nil), ids...)
}

// RepaintRecorder records repaint requests.
type RepaintRecorder struct {
	mu    sync.Mutex
	rects []image.Rectangle
}

// Repaint records r.
func (rr *RepaintRecorder) Repaint(r image.Rectangle) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.rects = append(rr.rects, r)
}

// Rects returns the recorded rectangles.
func (rr *RepaintRecorder) Rects() []image.Rectangle {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]image.Rectangle(nil), rr.rects...)
}

// Len returns the number of recorded repaints.
func (rr *RepaintRecorder) Len() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.rects)
}
