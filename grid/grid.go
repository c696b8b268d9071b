// Package grid is a headless tile layout for a vertically scrolling image
// grid. It implements the geometry a Loader consumes: the visible row range,
// per-row rectangles in viewport coordinates, and the visible tile count.
//
// Rows are laid out left to right, top to bottom. Tiles are square unless the
// viewport is shorter than a tile is wide, in which case the tile height is
// clamped to the viewport height.
package grid

import (
	"image"
	"sync"
)

// DefaultColumns is the column count of a new Grid.
const DefaultColumns = 5

// Grid is safe for concurrent use.
type Grid struct {
	mu      sync.RWMutex
	columns int
	width   int
	height  int
	scrollY int
	count   int
}

// New creates a grid with a viewport of width x height pixels and count rows.
func New(width, height, count int) *Grid {
	return &Grid{
		columns: DefaultColumns,
		width:   max(width, 0),
		height:  max(height, 0),
		count:   max(count, 0),
	}
}

// tile returns the tile size; must hold g.mu.
func (g *Grid) tile() (int, int) {
	w := g.width / g.columns
	return w, min(w, g.height)
}

// TileSize returns the tile width and height in pixels.
func (g *Grid) TileSize() (int, int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tile()
}

// Columns returns the column count.
func (g *Grid) Columns() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.columns
}

// SetColumns changes the column count. Values below 1 are raised to 1.
func (g *Grid) SetColumns(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.columns = max(n, 1)
	g.scrollY = g.clampScroll(g.scrollY)
}

// Resize changes the viewport size.
func (g *Grid) Resize(width, height int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.width, g.height = max(width, 0), max(height, 0)
	g.scrollY = g.clampScroll(g.scrollY)
}

// SetCount changes the number of rows.
func (g *Grid) SetCount(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = max(n, 0)
	g.scrollY = g.clampScroll(g.scrollY)
}

// Count returns the number of rows.
func (g *Grid) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}

// ScrollTo sets the vertical offset, clamped to the scrollable range.
func (g *Grid) ScrollTo(y int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scrollY = g.clampScroll(y)
}

// ScrollBy moves the vertical offset by dy.
func (g *Grid) ScrollBy(dy int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scrollY = g.clampScroll(g.scrollY + dy)
}

// Offset returns the vertical scroll offset.
func (g *Grid) Offset() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scrollY
}

// MaxScroll returns the largest valid scroll offset.
func (g *Grid) MaxScroll() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.maxScroll()
}

func (g *Grid) maxScroll() int {
	_, th := g.tile()
	if th <= 0 {
		return 0
	}
	tileRows := (g.count + g.columns - 1) / g.columns
	return max(tileRows*th-g.height, 0)
}

func (g *Grid) clampScroll(y int) int {
	return min(max(y, 0), g.maxScroll())
}

// Viewport returns the viewport rectangle in viewport coordinates.
func (g *Grid) Viewport() image.Rectangle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return image.Rect(0, 0, g.width, g.height)
}

// RowRect returns the tile of row in viewport coordinates.
func (g *Grid) RowRect(row int) image.Rectangle {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if row < 0 || row >= g.count {
		return image.Rectangle{}
	}
	tw, th := g.tile()
	r, c := row/g.columns, row%g.columns
	x, y := c*tw, r*th-g.scrollY
	return image.Rect(x, y, x+tw, y+th)
}

// IndexAt returns the row under point p (viewport coordinates), or -1.
func (g *Grid) IndexAt(p image.Point) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.indexAt(p)
}

func (g *Grid) indexAt(p image.Point) int {
	tw, th := g.tile()
	if tw <= 0 || th <= 0 || p.X < 0 || p.Y+g.scrollY < 0 {
		return -1
	}
	c := min(p.X/tw, g.columns-1)
	r := (p.Y + g.scrollY) / th
	i := r*g.columns + c
	if i < 0 || i >= g.count {
		return -1
	}
	return i
}

// VisibleRows returns the half-open range of rows intersecting the viewport.
func (g *Grid) VisibleRows() (begin, end int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.width <= 0 || g.height <= 0 {
		return 0, 0
	}
	begin = g.indexAt(image.Pt(0, 0))
	if begin < 0 {
		return 0, 0
	}
	if last := g.indexAt(image.Pt(g.width-1, g.height-1)); last >= 0 {
		return begin, last + 1
	}
	return begin, g.count
}

// VisibleTiles returns how many tiles fit the viewport, counting a partially
// visible tile row as a full one.
func (g *Grid) VisibleTiles() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, th := g.tile()
	if th <= 0 {
		return 0
	}
	rows := (g.height + th - 1) / th
	return rows * g.columns
}
