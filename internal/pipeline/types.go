package pipeline

import (
	"image"

	"github.com/RoaringBitmap/roaring/v2"
)

// Entry is a cached decode outcome: a thumbnail, or a failure sentinel when
// Err is set.
type Entry struct {
	Image *image.RGBA
	Err   error
}

// Failed reports whether the entry is a failure sentinel.
func (e Entry) Failed() bool { return e.Err != nil }

// LoadTask is the load plan for one row.
type LoadTask struct {
	Row int
	ID  string
	// Prefetched holds the entry taken from the cache when Hit is true.
	// Ownership moved from the cache to the task.
	Prefetched Entry
	Hit        bool
}

// LoadBatch is the ordered set of tasks planned from one viewport snapshot.
type LoadBatch struct {
	// Generation is assigned by Supervisor.Submit.
	Generation uint64
	Tasks      []LoadTask
	// Rows holds the planned row indexes.
	Rows *roaring.Bitmap
}

// Len returns the number of tasks.
func (b LoadBatch) Len() int { return len(b.Tasks) }

// Hits returns the number of tasks served from the cache.
func (b LoadBatch) Hits() int {
	n := 0
	for _, t := range b.Tasks {
		if t.Hit {
			n++
		}
	}
	return n
}

// DecodedResult is the outcome of one LoadTask.
type DecodedResult struct {
	Generation uint64
	Row        int
	ID         string
	Image      *image.RGBA
	// Err is the failure marker; Image is nil when set.
	Err error
	// FromCache is true when the result came from a prefetched entry.
	FromCache bool
}

// Entry converts the result into its cache representation.
func (r DecodedResult) Entry() Entry {
	return Entry{Image: r.Image, Err: r.Err}
}
