package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

type sliceSource []string

func (s sliceSource) Len() int          { return len(s) }
func (s sliceSource) ID(row int) string { return s[row] }

func rowsSource(n int) sliceSource {
	s := make(sliceSource, n)
	for i := range s {
		s[i] = fmt.Sprintf("img-%03d.png", i)
	}
	return s
}

type fixedRange struct{ begin, end int }

func (r fixedRange) VisibleRows() (int, int) { return r.begin, r.end }

type mapCache struct {
	mu sync.Mutex
	m  map[string]Entry
}

func newMapCache() *mapCache { return &mapCache{m: map[string]Entry{}} }

func (c *mapCache) Take(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[id]
	delete(c.m, id)
	return e, ok
}

func (c *mapCache) put(id string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = e
}

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// collector records delivered and dropped results.
type collector struct {
	mu        sync.Mutex
	delivered []DecodedResult
	dropped   []DecodedResult
}

func (c *collector) deliver(r DecodedResult) {
	c.mu.Lock()
	c.delivered = append(c.delivered, r)
	c.mu.Unlock()
}

func (c *collector) drop(r DecodedResult) {
	c.mu.Lock()
	c.dropped = append(c.dropped, r)
	c.mu.Unlock()
}

func (c *collector) snapshot() (delivered, dropped []DecodedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DecodedResult(nil), c.delivered...), append([]DecodedResult(nil), c.dropped...)
}
