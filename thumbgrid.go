package thumbgrid

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/thumbgrid/blobstore"
	"github.com/hupe1980/thumbgrid/decode"
	"github.com/hupe1980/thumbgrid/internal/cache"
	"github.com/hupe1980/thumbgrid/internal/loop"
	"github.com/hupe1980/thumbgrid/internal/pipeline"
	"github.com/hupe1980/thumbgrid/internal/resource"
)

// DataSource resolves grid rows to image identifiers.
type DataSource interface {
	// Len returns the number of rows.
	Len() int
	// ID returns the image identifier of row.
	ID(row int) string
}

// Geometry maps the viewport to rows and rows to screen rectangles.
// grid.Grid is a ready-made implementation.
type Geometry interface {
	// VisibleRows returns the half-open range of rows in the viewport.
	VisibleRows() (begin, end int)
	// RowRect returns the screen rectangle of row.
	RowRect(row int) image.Rectangle
	// Viewport returns the visible screen rectangle.
	Viewport() image.Rectangle
	// VisibleTiles returns how many tiles fit the viewport.
	VisibleTiles() int
}

// SliceSource is a DataSource over a fixed list of identifiers.
type SliceSource []string

// NewSliceSource returns a DataSource over ids.
func NewSliceSource(ids []string) SliceSource {
	return SliceSource(ids)
}

// Len implements DataSource.
func (s SliceSource) Len() int { return len(s) }

// ID implements DataSource.
func (s SliceSource) ID(row int) string { return s[row] }

// Loader keeps the thumbnails of the visible grid rows decoded and cached.
type Loader struct {
	opts   options
	source DataSource
	geom   Geometry

	cache      *cache.LRU[pipeline.Entry]
	planner    *pipeline.Planner
	coalescer  *pipeline.Coalescer
	supervisor *pipeline.Supervisor
	batcher    *pipeline.Batcher

	dispatcher Dispatcher
	ownLoop    *loop.Loop

	decoder   *decode.Decoder // nil with WithDecoder
	resources *resource.Controller
	disk      *cache.DiskCache

	// pending holds the cache hits of the current generation that have not
	// reached the sink yet. Owning goroutine only.
	pending map[string]pipeline.Entry

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	superseded atomic.Int64
	repaints   atomic.Int64
}

// New creates a Loader reading images from store.
//
// The Loader does nothing until the first trigger; call GeometryChanged once
// the geometry is known.
func New(store blobstore.BlobStore, source DataSource, geom Geometry, optFns ...Option) (*Loader, error) {
	opts := applyOptions(optFns)
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if store == nil && opts.decoder == nil {
		return nil, ErrNilStore
	}
	if source == nil {
		return nil, ErrNilDataSource
	}
	if geom == nil {
		return nil, ErrNilGeometry
	}

	l := &Loader{
		opts:    opts,
		source:  source,
		geom:    geom,
		cache:   cache.NewLRU[pipeline.Entry](opts.capacity * opts.unitCost()),
		pending: make(map[string]pipeline.Entry),
	}
	opts.metrics.RecordCacheCapacity(l.cache.Capacity())

	var dec Decoder
	if opts.decoder != nil {
		dec = opts.decoder
	} else {
		l.resources = resource.NewController(resource.Config{
			MaxDecodeWorkers:   int64(max(opts.maxWorkers, 0)),
			DecodeMemoryBytes:  opts.decodeMemory,
			IOLimitBytesPerSec: opts.ioLimit,
		})
		if opts.diskDir != "" {
			disk, err := cache.NewDiskCache(cache.DiskCacheConfig{
				RootDir:      opts.diskDir,
				MaxSizeBytes: opts.diskMaxBytes,
			})
			if err != nil {
				// The loader still works without persistence.
				opts.logger.LogDiskCache(context.Background(), opts.diskDir, err)
			} else {
				l.disk = disk
			}
		}
		l.decoder = decode.New(store, decode.Config{
			MaxWidth:  opts.thumbWidth,
			MaxHeight: opts.thumbHeight,
			MaxPixels: opts.maxPixels,
			Scaler:    opts.scaler,
			Resources: l.resources,
			DiskCache: l.disk,
			Codec:     opts.codec,
		})
		dec = l.decoder
	}

	if opts.dispatcher != nil {
		l.dispatcher = opts.dispatcher
	} else {
		l.ownLoop = loop.New()
		l.dispatcher = l.ownLoop
	}

	l.planner = pipeline.NewPlanner(source, geom, l.cache)
	l.supervisor = pipeline.NewSupervisor(pipeline.SupervisorConfig{
		Decoder:     l.instrument(dec),
		MaxParallel: max(opts.maxWorkers, 0),
		Deliver:     l.deliver,
		Drop:        l.drop,
	})
	l.batcher = pipeline.NewBatcher(pipeline.BatcherConfig{
		Window: opts.batchWindow,
		Emit:   l.emit,
		Keep:   l.current,
		Drop:   l.drop,
	})
	l.coalescer = pipeline.NewCoalescer(opts.settleWindow, l.settled)

	return l, nil
}

// instrument wraps dec with metrics and logging of non-superseded decodes.
func (l *Loader) instrument(dec Decoder) Decoder {
	return DecoderFunc(func(ctx context.Context, id string) (*image.RGBA, error) {
		start := time.Now()
		img, err := dec.Decode(ctx, id)
		if ctx.Err() == nil {
			elapsed := time.Since(start)
			l.opts.metrics.RecordDecode(elapsed, err)
			l.opts.logger.LogDecode(ctx, id, elapsed, err)
		}
		return img, err
	})
}

// ViewportChanged reports that the viewport may have changed (scroll,
// resize, model reset, column change). Bursts of calls settle into one
// planning pass after the settle window.
func (l *Loader) ViewportChanged() error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.coalescer.Signal()
	return nil
}

// Reset drops every cached thumbnail, including failure sentinels and the
// disk cache, and triggers a settle. Results of the running generation are
// discarded. Call it when the data source or the images changed.
func (l *Loader) Reset() error {
	return l.post(func() {
		l.supersede(func(string, pipeline.Entry) bool { return true })
		n := l.cache.Len()
		l.cache.Clear()
		if l.disk != nil {
			l.disk.Clear()
		}
		l.opts.logger.LogReset(context.Background(), n)
	})
}

// GeometryChanged resizes the cache to a multiple of the visible tile count
// and triggers a settle. Call it when the viewport size or the column count
// changed.
func (l *Loader) GeometryChanged() error {
	return l.post(func() {
		tiles := l.geom.VisibleTiles()
		capacity := int64(max(tiles, 1)) * l.opts.capacityFactor * l.opts.unitCost()
		if capacity == l.cache.Capacity() {
			return
		}
		l.cache.SetCapacity(capacity)
		l.opts.metrics.RecordCacheCapacity(capacity)
		l.opts.logger.LogResize(context.Background(), tiles, capacity)
	})
}

// RetryFailed drops all failure sentinels so failed images are decoded again
// on the next settle, and triggers one.
func (l *Loader) RetryFailed() error {
	return l.post(func() {
		failed := func(_ string, e pipeline.Entry) bool { return e.Failed() }
		l.supersede(failed)
		n := l.cache.Invalidate(failed)
		l.opts.logger.LogRetry(context.Background(), n)
	})
}

// post runs fn on the owning goroutine and then signals a viewport change.
func (l *Loader) post(fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	ok := l.dispatcher.Post(func() {
		if l.closed.Load() {
			return
		}
		fn()
		l.coalescer.Signal()
	})
	if !ok {
		return ErrClosed
	}
	return nil
}

// Peek returns the cached thumbnail for id. It reports false when the image
// is not loaded yet or failed to load; the caller draws a placeholder then.
// Peek refreshes the recency of the entry and is safe for concurrent use.
func (l *Loader) Peek(id string) (*image.RGBA, bool) {
	e, ok := l.cache.Peek(id)
	if !ok || e.Failed() || e.Image == nil {
		return nil, false
	}
	return e.Image, true
}

// Failed reports whether id is cached as a failed decode.
func (l *Loader) Failed(id string) bool {
	e, ok := l.cache.Peek(id)
	return ok && e.Failed()
}

// Generation returns the current generation. Zero means nothing was planned yet.
func (l *Loader) Generation() uint64 {
	return l.supervisor.Current()
}

// Stats reports Loader activity.
type Stats struct {
	// Signals counts viewport change triggers, Settles the planning passes
	// they collapsed into.
	Signals int64
	Settles int64
	// Generations counts started generations.
	Generations int64
	// Superseded counts results dropped because a newer generation started.
	Superseded int64
	// Decoded and Failed count finished, non-superseded decodes.
	Decoded int64
	Failed  int64
	// Batches and Results count deliveries to the sink.
	Batches int64
	Results int64
	// Repaints counts repaint requests.
	Repaints int64

	CacheHits      int64
	CacheMisses    int64
	CacheEvictions int64
	CacheEntries   int
	CacheCost      int64
	CacheCapacity  int64

	// DiskHits counts thumbnails served from the disk cache.
	DiskHits int64
	// BytesRead counts encoded bytes read from the blob store.
	BytesRead int64
}

// Stats returns a snapshot of the Loader counters.
func (l *Loader) Stats() Stats {
	signals, settles := l.coalescer.Stats()
	sup := l.supervisor.Stats()
	batches, results := l.batcher.Stats()
	hits, misses, evictions := l.cache.Stats()

	st := Stats{
		Signals:        signals,
		Settles:        settles,
		Generations:    sup.Generations,
		Superseded:     l.superseded.Load(),
		Decoded:        sup.Decoded,
		Failed:         sup.Failed,
		Batches:        batches,
		Results:        results,
		Repaints:       l.repaints.Load(),
		CacheHits:      hits,
		CacheMisses:    misses,
		CacheEvictions: evictions,
		CacheEntries:   l.cache.Len(),
		CacheCost:      l.cache.Cost(),
		CacheCapacity:  l.cache.Capacity(),
	}
	if l.decoder != nil {
		ds := l.decoder.Stats()
		st.DiskHits = ds.DiskHits
		st.BytesRead = ds.BytesRead
	}
	return st
}

func (s Stats) String() string {
	return fmt.Sprintf("generations=%d superseded=%d decoded=%d failed=%d batches=%d cache=%d/%d",
		s.Generations, s.Superseded, s.Decoded, s.Failed, s.Batches, s.CacheCost, s.CacheCapacity)
}
