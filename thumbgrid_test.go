package thumbgrid

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/thumbgrid/blobstore"
	"github.com/hupe1980/thumbgrid/grid"
	"github.com/hupe1980/thumbgrid/internal/loop"
	"github.com/hupe1980/thumbgrid/internal/pipeline"
	"github.com/hupe1980/thumbgrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWindow = 10 * time.Millisecond
	waitFor    = 2 * time.Second
	tick       = 5 * time.Millisecond
)

var errCorrupt = errors.New("corrupt image")

type fakeDecoder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	gate  chan struct{}
}

func newFakeDecoder(failing ...string) *fakeDecoder {
	d := &fakeDecoder{calls: make(map[string]int), fail: make(map[string]bool)}
	for _, id := range failing {
		d.fail[id] = true
	}
	return d
}

func (d *fakeDecoder) Decode(_ context.Context, id string) (*image.RGBA, error) {
	d.mu.Lock()
	d.calls[id]++
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		// Not interruptible.
		<-gate
	}
	if d.fail[id] {
		return nil, errCorrupt
	}
	return testutil.Solid(4, 4, color.RGBA{R: 10, A: 255}), nil
}

func (d *fakeDecoder) Calls(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

func (d *fakeDecoder) Total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("img-%04d.png", i)
	}
	return ids
}

func newTestLoader(t *testing.T, ids []string, g *grid.Grid, dec Decoder, optFns ...Option) *Loader {
	t.Helper()
	opts := append([]Option{
		WithSettleWindow(testWindow),
		WithBatchWindow(testWindow),
		WithDecoder(dec),
	}, optFns...)
	l, err := New(nil, NewSliceSource(ids), g, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func loaded(l *Loader, ids []string) int {
	n := 0
	for _, id := range ids {
		if _, ok := l.Peek(id); ok {
			n++
		}
	}
	return n
}

// onOwner runs fn on the loader goroutine and waits for it.
func onOwner(t *testing.T, l *Loader, fn func()) {
	t.Helper()
	require.NoError(t, l.ownLoop.Do(fn))
}

func TestNew_Validation(t *testing.T) {
	g := grid.New(100, 40, 10)
	src := NewSliceSource(makeIDs(10))
	store := blobstore.NewMemoryStore()

	_, err := New(nil, src, g)
	assert.ErrorIs(t, err, ErrNilStore)

	_, err = New(store, nil, g)
	assert.ErrorIs(t, err, ErrNilDataSource)

	_, err = New(store, src, nil)
	assert.ErrorIs(t, err, ErrNilGeometry)

	_, err = New(store, src, g, WithSettleWindow(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = New(store, src, g, WithBatchWindow(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = New(store, src, g, WithCapacity(0))
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = New(store, src, g, WithCapacityFactor(0))
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = New(store, src, g, WithDiskCache(t.TempDir(), 0))
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	l, err := New(store, src, g)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultCapacity), l.Stats().CacheCapacity)
	require.NoError(t, l.Close())
}

func TestLoader_LoadsVisibleRows(t *testing.T) {
	ids := makeIDs(20)
	g := grid.New(100, 40, len(ids)) // rows [0,10) visible
	dec := newFakeDecoder()
	rec := &testutil.RepaintRecorder{}
	metrics := &BasicMetricsCollector{}

	l := newTestLoader(t, ids, g, dec, WithRepaint(rec.Repaint), WithMetricsCollector(metrics))
	require.NoError(t, l.GeometryChanged())

	require.Eventually(t, func() bool { return loaded(l, ids[:10]) == 10 }, waitFor, tick)
	assert.Equal(t, 0, loaded(l, ids[10:]))
	assert.Equal(t, 10, dec.Total())

	require.Eventually(t, func() bool { return rec.Len() > 0 }, waitFor, tick)
	for _, r := range rec.Rects() {
		assert.True(t, r.Overlaps(g.Viewport()))
		assert.True(t, r.In(image.Rect(0, 0, 100, 40)))
	}

	st := l.Stats()
	assert.Equal(t, int64(1), st.Generations)
	assert.Equal(t, int64(10), st.Decoded)
	assert.Equal(t, int64(50), st.CacheCapacity)
	assert.Equal(t, int64(50), metrics.GetStats().CacheCapacity)
	assert.Equal(t, int64(10), metrics.GetStats().DecodeCount)
}

func TestLoader_CacheHitsAreNotDecodedAgain(t *testing.T) {
	ids := makeIDs(10)
	g := grid.New(100, 40, len(ids))
	dec := newFakeDecoder()

	l := newTestLoader(t, ids, g, dec)
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return loaded(l, ids) == 10 }, waitFor, tick)

	before, _, _ := l.cache.Stats()
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool {
		st := l.Stats()
		return st.Generations == 2 && st.Results == 20
	}, waitFor, tick)

	after, _, _ := l.cache.Stats()
	assert.Equal(t, int64(10), after-before)
	assert.Equal(t, 10, dec.Total())
	require.Eventually(t, func() bool { return loaded(l, ids) == 10 }, waitFor, tick)
}

func TestLoader_FailureSentinel(t *testing.T) {
	ids := makeIDs(5)
	g := grid.New(100, 20, len(ids))
	dec := newFakeDecoder(ids[2])

	l := newTestLoader(t, ids, g, dec)
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return l.Failed(ids[2]) }, waitFor, tick)

	_, ok := l.Peek(ids[2])
	assert.False(t, ok)

	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return l.Stats().Results == 10 }, waitFor, tick)
	assert.Equal(t, 1, dec.Calls(ids[2]))

	require.NoError(t, l.RetryFailed())
	require.Eventually(t, func() bool { return dec.Calls(ids[2]) == 2 }, waitFor, tick)
	assert.Equal(t, 1, dec.Calls(ids[0]))
}

func TestLoader_FailureSentinelDisabled(t *testing.T) {
	ids := makeIDs(5)
	g := grid.New(100, 20, len(ids))
	dec := newFakeDecoder(ids[2])

	l := newTestLoader(t, ids, g, dec, WithFailureSentinel(false))
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return l.Stats().Results == 5 }, waitFor, tick)
	assert.False(t, l.Failed(ids[2]))

	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return dec.Calls(ids[2]) == 2 }, waitFor, tick)
	assert.Equal(t, 1, dec.Calls(ids[0]))
}

func TestLoader_SupersededResultsAreDropped(t *testing.T) {
	ids := makeIDs(30)
	g := grid.New(100, 20, len(ids)) // rows [0,5) visible
	dec := newFakeDecoder()
	dec.gate = make(chan struct{})
	rec := &testutil.RepaintRecorder{}

	l := newTestLoader(t, ids, g, dec, WithRepaint(rec.Repaint), WithMaxDecodeWorkers(0))
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return dec.Total() == 5 }, waitFor, tick)

	g.ScrollTo(100) // rows [25,30) visible
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return l.Generation() == 2 }, waitFor, tick)
	close(dec.gate)

	require.Eventually(t, func() bool { return loaded(l, ids[25:]) == 5 }, waitFor, tick)
	require.Eventually(t, func() bool { return l.Stats().Superseded == 5 }, waitFor, tick)
	assert.Equal(t, 0, loaded(l, ids[:5]))

	for _, r := range rec.Rects() {
		assert.True(t, r.Overlaps(g.Viewport()))
	}
}

func TestLoader_SupersededCacheHitsAreReusedByNextPlan(t *testing.T) {
	ids := makeIDs(5)
	g := grid.New(100, 20, len(ids))
	dec := newFakeDecoder()
	img := testutil.Solid(2, 2, color.RGBA{A: 255})

	l := newTestLoader(t, ids, g, dec, WithBatchWindow(time.Hour))

	// Two settles in a row over a cached viewport. The hits of the first
	// generation are still waiting in the batcher when the second plans.
	onOwner(t, l, func() {
		for _, id := range ids {
			l.cache.Insert(id, pipeline.Entry{Image: img}, 1)
		}
		l.plan()
		assert.Zero(t, l.cache.Len())
		l.plan()
		assert.Zero(t, l.cache.Len())
		assert.Len(t, l.pending, 5)
	})
	assert.Equal(t, int64(2), l.Stats().Generations)

	time.Sleep(5 * testWindow)
	assert.Zero(t, dec.Total())
}

func TestLoader_ResetDiscardsResultsInFlight(t *testing.T) {
	ids := makeIDs(1)
	g := grid.New(100, 20, len(ids))
	dec := newFakeDecoder()
	stale := testutil.Solid(4, 4, color.RGBA{R: 1, A: 255})

	l := newTestLoader(t, ids, g, dec, WithSettleWindow(100*time.Millisecond))

	onOwner(t, l, func() {
		l.cache.Insert(ids[0], pipeline.Entry{Image: stale}, 1)
		l.plan() // the hit now waits in the batcher
		assert.NoError(t, l.Reset())
	})

	require.Eventually(t, func() bool { return dec.Calls(ids[0]) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool {
		img, ok := l.Peek(ids[0])
		return ok && img.RGBAAt(0, 0).R == 10
	}, waitFor, tick)
	assert.Positive(t, l.Stats().Superseded)
}

func TestLoader_ResetDropsDiskCache(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ids := testutil.SeedImages(t, store, 1, 16, 16)
	g := grid.New(100, 20, len(ids))

	l, err := New(store, NewSliceSource(ids), g,
		WithSettleWindow(testWindow),
		WithBatchWindow(testWindow),
		WithThumbnailSize(16, 16),
		WithDiskCache(t.TempDir(), 1<<20),
	)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool {
		_, ok := l.Peek(ids[0])
		return ok
	}, waitFor, tick)
	l.disk.Flush()
	require.Equal(t, 1, l.disk.Len())

	// The image changes in place.
	blue := color.RGBA{B: 255, A: 255}
	require.NoError(t, store.Put(t.Context(), ids[0], testutil.EncodePNG(t, testutil.Solid(16, 16, blue))))
	require.NoError(t, l.Reset())

	require.Eventually(t, func() bool {
		img, ok := l.Peek(ids[0])
		return ok && img.RGBAAt(0, 0) == blue
	}, waitFor, tick)
	assert.Zero(t, l.Stats().DiskHits)
	assert.Equal(t, int64(2), l.Stats().Decoded)
}

func TestLoader_SinkRepaintsUnionOfVisibleRows(t *testing.T) {
	ids := makeIDs(30)
	g := grid.New(100, 40, len(ids)) // rows [0,10) visible, tiles 20x20
	rec := &testutil.RepaintRecorder{}
	img := testutil.Solid(4, 4, color.RGBA{A: 255})

	l := newTestLoader(t, ids, g, newFakeDecoder(), WithRepaint(rec.Repaint))

	// Off-screen only: cached, no repaint.
	onOwner(t, l, func() {
		l.sink([]pipeline.DecodedResult{{Row: 20, ID: ids[20], Image: img}})
	})
	assert.Equal(t, 0, rec.Len())
	_, ok := l.Peek(ids[20])
	assert.True(t, ok)

	// Two adjacent visible tiles.
	onOwner(t, l, func() {
		l.sink([]pipeline.DecodedResult{
			{Row: 3, ID: ids[3], Image: img},
			{Row: 4, ID: ids[4], Image: img},
		})
	})
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, image.Rect(60, 0, 100, 20), rec.Rects()[0])

	// A visible and an off-screen tile: one repaint covering both.
	onOwner(t, l, func() {
		l.sink([]pipeline.DecodedResult{
			{Row: 3, ID: ids[3], Image: img},
			{Row: 20, ID: ids[20], Image: img},
		})
	})
	require.Equal(t, 2, rec.Len())
	assert.Equal(t, image.Rect(0, 0, 100, 100), rec.Rects()[1])

	// Results of another generation are ignored.
	onOwner(t, l, func() {
		l.sink([]pipeline.DecodedResult{{Generation: 7, Row: 5, ID: ids[5], Image: img}})
	})
	assert.Equal(t, 2, rec.Len())
	_, ok = l.Peek(ids[5])
	assert.False(t, ok)
}

func TestLoader_GeometryChangedResizesCache(t *testing.T) {
	ids := makeIDs(100)

	t.Run("unit cost", func(t *testing.T) {
		g := grid.New(100, 40, len(ids))
		l := newTestLoader(t, ids, g, newFakeDecoder())
		assert.Equal(t, int64(100), l.Stats().CacheCapacity)

		require.NoError(t, l.GeometryChanged())
		require.Eventually(t, func() bool { return l.Stats().CacheCapacity == 50 }, waitFor, tick)

		g.Resize(100, 100) // 5 tile rows
		require.NoError(t, l.GeometryChanged())
		require.Eventually(t, func() bool { return l.Stats().CacheCapacity == 125 }, waitFor, tick)
	})

	t.Run("byte cost", func(t *testing.T) {
		g := grid.New(100, 40, len(ids))
		l := newTestLoader(t, ids, g, newFakeDecoder(),
			WithCost(ByteCost), WithThumbnailSize(16, 16), WithCapacityFactor(2))
		assert.Equal(t, int64(100*16*16*4), l.Stats().CacheCapacity)

		require.NoError(t, l.GeometryChanged())
		require.Eventually(t, func() bool { return l.Stats().CacheCapacity == 10*2*16*16*4 }, waitFor, tick)

		require.Eventually(t, func() bool { return loaded(l, ids[:10]) == 10 }, waitFor, tick)
		assert.Equal(t, int64(10*4*4*4), l.Stats().CacheCost)
	})
}

func TestLoader_Reset(t *testing.T) {
	ids := makeIDs(5)
	g := grid.New(100, 20, len(ids))
	dec := newFakeDecoder()

	l := newTestLoader(t, ids, g, dec)
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return loaded(l, ids) == 5 }, waitFor, tick)

	require.NoError(t, l.Reset())
	require.Eventually(t, func() bool { return dec.Total() == 10 }, waitFor, tick)
	require.Eventually(t, func() bool { return loaded(l, ids) == 5 }, waitFor, tick)
}

func TestLoader_EmptySource(t *testing.T) {
	g := grid.New(100, 40, 0)
	rec := &testutil.RepaintRecorder{}

	l := newTestLoader(t, nil, g, newFakeDecoder(), WithRepaint(rec.Repaint))
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return l.Generation() == 1 }, waitFor, tick)

	time.Sleep(5 * testWindow)
	assert.Equal(t, 0, rec.Len())
	assert.Equal(t, int64(0), l.Stats().Batches)
}

func TestLoader_ExternalDispatcher(t *testing.T) {
	ids := makeIDs(5)
	g := grid.New(100, 20, len(ids))
	ui := loop.New()
	defer ui.Close()

	l, err := New(nil, NewSliceSource(ids), g,
		WithDecoder(newFakeDecoder()),
		WithDispatcher(ui),
		WithSettleWindow(testWindow),
		WithBatchWindow(testWindow),
	)
	require.NoError(t, err)
	assert.Nil(t, l.ownLoop)

	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return loaded(l, ids) == 5 }, waitFor, tick)
	require.NoError(t, l.Close())

	// The external loop keeps running.
	assert.NoError(t, ui.Do(func() {}))
}

func TestLoader_Close(t *testing.T) {
	ids := makeIDs(5)
	g := grid.New(100, 20, len(ids))
	dec := newFakeDecoder()
	dec.gate = make(chan struct{})

	l := newTestLoader(t, ids, g, dec, WithMaxDecodeWorkers(0))
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return dec.Total() == 5 }, waitFor, tick)

	go func() {
		time.Sleep(testWindow)
		close(dec.gate)
	}()
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.ViewportChanged(), ErrClosed)
	assert.ErrorIs(t, l.Reset(), ErrClosed)
	assert.ErrorIs(t, l.GeometryChanged(), ErrClosed)
	assert.ErrorIs(t, l.RetryFailed(), ErrClosed)
	assert.Equal(t, 0, loaded(l, ids))

	var nilLoader *Loader
	assert.NoError(t, nilLoader.Close())
}

func TestLoader_BlobStore(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ids := testutil.SeedImages(t, store, 10, 64, 32)
	require.NoError(t, store.Put(t.Context(), "broken.png", testutil.Corrupt()))
	ids = append(ids[:4], "broken.png", "missing.png")

	g := grid.New(120, 24, len(ids)) // tiles 24x24, rows [0,5) visible
	dir := t.TempDir()

	open := func() *Loader {
		l, err := New(store, NewSliceSource(ids), g,
			WithSettleWindow(testWindow),
			WithBatchWindow(testWindow),
			WithThumbnailSize(16, 16),
			WithMaxDecodeWorkers(2),
			WithDiskCache(dir, 1<<20),
		)
		require.NoError(t, err)
		return l
	}

	l := open()
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return loaded(l, ids[:4]) == 4 && l.Failed(ids[4]) }, waitFor, tick)

	img, ok := l.Peek(ids[0])
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	assert.Equal(t, int64(4), l.Stats().Decoded)
	assert.Equal(t, int64(1), l.Stats().Failed)
	assert.False(t, l.Failed(ids[5]))
	require.NoError(t, l.Close())

	// Thumbnails persisted by the first loader are served from disk.
	l = open()
	defer l.Close()
	require.NoError(t, l.ViewportChanged())
	require.Eventually(t, func() bool { return loaded(l, ids[:4]) == 4 }, waitFor, tick)
	assert.Equal(t, int64(4), l.Stats().DiskHits)
}
