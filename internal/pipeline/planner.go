package pipeline

import "github.com/RoaringBitmap/roaring/v2"

// DataSource resolves rows to image identifiers.
type DataSource interface {
	// Len returns the number of rows.
	Len() int
	// ID returns the image identifier of row.
	ID(row int) string
}

// RowRange maps the current viewport to rows.
type RowRange interface {
	// VisibleRows returns the visible half-open row range [begin, end).
	VisibleRows() (begin, end int)
}

// Cache is the subset of the image cache the planner uses.
type Cache interface {
	Take(id string) (Entry, bool)
}

// Planner snapshots the visible rows into a LoadBatch.
// It reads view state and mutates the cache, so it must run on the owning
// goroutine.
type Planner struct {
	source DataSource
	view   RowRange
	cache  Cache
}

// NewPlanner creates a planner.
func NewPlanner(source DataSource, view RowRange, cache Cache) *Planner {
	return &Planner{source: source, view: view, cache: cache}
}

// Plan builds the batch for the visible rows, in increasing row order.
// Cached entries are taken out of the cache and attached to their task.
// An empty range yields an empty batch.
func (p *Planner) Plan() LoadBatch {
	begin, end := p.view.VisibleRows()
	begin = max(begin, 0)
	end = min(end, p.source.Len())

	batch := LoadBatch{Rows: roaring.New()}
	if begin >= end {
		return batch
	}

	batch.Tasks = make([]LoadTask, 0, end-begin)
	batch.Rows.AddRange(uint64(begin), uint64(end))

	for row := begin; row < end; row++ {
		task := LoadTask{Row: row, ID: p.source.ID(row)}
		if e, ok := p.cache.Take(task.ID); ok {
			task.Prefetched = e
			task.Hit = true
		}
		batch.Tasks = append(batch.Tasks, task)
	}
	return batch
}
