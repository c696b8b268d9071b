// Package thumbgrid loads thumbnails for a scrollable image grid.
//
// A Loader watches a viewport over a list of images and keeps the visible
// thumbnails decoded and cached. Viewport changes are debounced, the visible
// rows are planned against the in-memory cache, misses are decoded in
// parallel off the owning goroutine, and finished thumbnails are handed back
// in rate-limited batches together with a single repaint request.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore("./photos")
//	g := grid.New(800, 600, len(ids))
//
//	l, _ := thumbgrid.New(store, thumbgrid.NewSliceSource(ids), g,
//	    thumbgrid.WithRepaint(func(r image.Rectangle) { window.Invalidate(r) }),
//	)
//	defer l.Close()
//
//	l.GeometryChanged()
//
//	// On every scroll event:
//	g.ScrollBy(dy)
//	l.ViewportChanged()
//
//	// While painting:
//	if img, ok := l.Peek(id); ok {
//	    draw(img)
//	} else {
//	    drawPlaceholder()
//	}
//
// # Generations
//
// Every settled viewport becomes a new generation. Starting a generation
// supersedes the previous one: its pending decodes are cancelled and any
// result it still produces is dropped instead of reaching the cache or the
// repaint callback.
//
// # Owning Goroutine
//
// Planning, cache mutation and repaint requests run on a single owning
// goroutine. By default the Loader starts its own; an application with a UI
// event loop passes it with WithDispatcher so the repaint callback runs on
// the UI thread.
//
// # Failures
//
// A failed decode is data, not a fault. It is cached as a failure sentinel
// so it is not retried on every settle, and Peek reports it as absent so the
// renderer keeps drawing the placeholder. RetryFailed drops all sentinels.
//
// # Image Sources
//
// Images are read through blobstore.BlobStore: local files (memory mapped),
// memory, MinIO (blobstore/minio) or Amazon S3 (blobstore/s3).
package thumbgrid
