package thumbgrid

import (
	"context"
	"image"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/thumbgrid/internal/pipeline"
)

// settled runs on the coalescer goroutine.
func (l *Loader) settled() {
	_, settles := l.coalescer.Stats()
	l.opts.logger.LogSettle(context.Background(), settles)
	l.dispatcher.Post(l.plan)
}

// plan runs on the owning goroutine.
func (l *Loader) plan() {
	if l.closed.Load() {
		return
	}
	l.restorePending()

	batch := l.planner.Plan()
	gen := l.supervisor.Submit(batch)
	if gen == 0 {
		// Closed concurrently; give the taken entries back.
		for _, t := range batch.Tasks {
			if t.Hit {
				l.cache.Insert(t.ID, t.Prefetched, l.costOf(t.Prefetched))
			}
		}
		return
	}
	for _, t := range batch.Tasks {
		if t.Hit {
			l.pending[t.ID] = t.Prefetched
		}
	}
	l.opts.metrics.RecordSettle(batch.Len(), batch.Hits())
	l.opts.logger.LogGeneration(context.Background(), gen, batch.Len(), batch.Hits())
}

// restorePending puts cache hits that the previous generation took out of
// the cache, but never handed to the sink, back into the cache. It runs
// before planning so the new generation finds them as hits again.
func (l *Loader) restorePending() {
	for id, e := range l.pending {
		if !l.cache.Contains(id) {
			l.cache.Insert(id, e, l.costOf(e))
		}
	}
	clear(l.pending)
}

// supersede abandons the current generation. Results still in the
// pipeline are dropped, and taken cache hits for which discard reports true
// are forgotten instead of restored. It runs on the owning goroutine.
func (l *Loader) supersede(discard func(id string, e pipeline.Entry) bool) {
	l.supervisor.Supersede()
	for id, e := range l.pending {
		if discard(id, e) {
			delete(l.pending, id)
		}
	}
}

// deliver runs on decode workers, or on the owning goroutine for cache hits.
func (l *Loader) deliver(r pipeline.DecodedResult) {
	l.batcher.Add(r)
}

func (l *Loader) current(r pipeline.DecodedResult) bool {
	return r.Generation == l.supervisor.Current()
}

// drop receives superseded results from any goroutine. Taken cache hits
// among them are restored by the next plan.
func (l *Loader) drop(pipeline.DecodedResult) {
	l.superseded.Add(1)
	l.opts.metrics.RecordSuperseded()
}

// emit runs on the batcher goroutine.
func (l *Loader) emit(results []pipeline.DecodedResult) {
	l.dispatcher.Post(func() { l.sink(results) })
}

// sink inserts a batch into the cache and requests one repaint for the
// union of the affected rows. It runs on the owning goroutine.
func (l *Loader) sink(results []pipeline.DecodedResult) {
	if l.closed.Load() {
		return
	}

	gen := l.supervisor.Current()
	dirty := roaring.New()
	failed := 0
	for _, r := range results {
		if r.Generation != gen {
			l.drop(r)
			continue
		}
		if r.Err != nil {
			failed++
		}
		delete(l.pending, r.ID)
		l.store(r)
		dirty.Add(uint32(r.Row))
	}
	if dirty.IsEmpty() {
		return
	}

	viewport := l.geom.Viewport()
	var union image.Rectangle
	visible := false
	it := dirty.Iterator()
	for it.HasNext() {
		rect := l.geom.RowRect(int(it.Next()))
		if rect.Overlaps(viewport) {
			visible = true
		}
		union = union.Union(rect)
	}

	size := int(dirty.GetCardinality())
	l.opts.metrics.RecordBatch(size, failed)
	l.opts.logger.LogBatch(context.Background(), size, failed, visible)

	if !visible {
		return
	}
	l.repaints.Add(1)
	l.opts.metrics.RecordRepaint()
	l.opts.repaint(union)
}

func (l *Loader) store(r pipeline.DecodedResult) {
	e := r.Entry()
	if e.Failed() && !l.opts.failureSentinel {
		return
	}
	l.cache.Insert(r.ID, e, l.costOf(e))
}

// costOf charges a failure sentinel one unit.
func (l *Loader) costOf(e pipeline.Entry) int64 {
	if l.opts.cost != ByteCost || e.Image == nil {
		return 1
	}
	return int64(len(e.Image.Pix))
}
