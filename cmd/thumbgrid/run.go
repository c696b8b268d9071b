package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/hupe1980/thumbgrid"
	"github.com/hupe1980/thumbgrid/codec"
	"github.com/hupe1980/thumbgrid/grid"
	"github.com/prometheus/client_golang/prometheus"
)

func runCommand(ctx context.Context, cfg *Config, logger *thumbgrid.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	steps := fs.Int("steps", cfg.Session.Steps, "Number of scroll steps")
	prefix := fs.String("prefix", cfg.Store.Prefix, "Only show images below this prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Store, false)
	if err != nil {
		return err
	}
	ids, err := listImages(ctx, store, *prefix)
	if err != nil {
		return err
	}
	logger.WithStore(cfg.Store.Kind).Info("images listed", "count", len(ids), "prefix", *prefix)

	g := grid.New(cfg.Grid.Width, cfg.Grid.Height, len(ids))
	g.SetColumns(cfg.Grid.Columns)

	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts, err := loaderOptions(cfg.Loader)
	if err != nil {
		return err
	}
	opts = append(opts,
		thumbgrid.WithLogger(logger),
		thumbgrid.WithMetricsCollector(collector),
		thumbgrid.WithRepaint(func(r image.Rectangle) {
			logger.Debug("repaint", "rect", r.String())
		}),
	)

	l, err := thumbgrid.New(store, thumbgrid.NewSliceSource(ids), g, opts...)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.GeometryChanged(); err != nil {
		return err
	}

	path := scrollPath(cfg.Session.Seed, *steps, g.MaxScroll(), cfg.Session.ScrollStep)
	if err := replay(ctx, l, g, path, cfg.Session.Interval); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-time.After(cfg.Session.Linger):
	}

	begin, end := g.VisibleRows()
	loaded := 0
	for row := begin; row < end; row++ {
		if _, ok := l.Peek(ids[row]); ok {
			loaded++
		}
	}
	fmt.Fprintf(out, "visible rows [%d,%d): %d loaded\n", begin, end, loaded)
	fmt.Fprintln(out, l.Stats())
	return nil
}

// replay scrolls g along path, one step per interval.
func replay(ctx context.Context, l *thumbgrid.Loader, g *grid.Grid, path []int, interval time.Duration) error {
	ticker := time.NewTicker(max(interval, time.Millisecond))
	defer ticker.Stop()

	for _, y := range path {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if y == g.Offset() {
			continue
		}
		g.ScrollTo(y)
		if err := l.ViewportChanged(); err != nil {
			return err
		}
	}
	return nil
}

func loaderOptions(cfg LoaderConfig) ([]thumbgrid.Option, error) {
	opts := []thumbgrid.Option{
		thumbgrid.WithSettleWindow(cfg.SettleWindow),
		thumbgrid.WithBatchWindow(cfg.BatchWindow),
		thumbgrid.WithCapacityFactor(cfg.CapacityFactor),
		thumbgrid.WithIOLimit(cfg.IOLimitBytes),
		thumbgrid.WithDecodeMemory(cfg.DecodeMemoryBytes),
		thumbgrid.WithMaxPixels(cfg.MaxPixels),
		thumbgrid.WithThumbnailSize(cfg.ThumbWidth, cfg.ThumbHeight),
		thumbgrid.WithFailureSentinel(cfg.FailureSentinel),
	}
	if cfg.MaxDecodeWorkers > 0 {
		opts = append(opts, thumbgrid.WithMaxDecodeWorkers(cfg.MaxDecodeWorkers))
	}
	if cfg.Cost == "bytes" {
		opts = append(opts, thumbgrid.WithCost(thumbgrid.ByteCost))
	}
	if cfg.DiskCache.Dir != "" {
		c, ok := codec.ByName(cfg.DiskCache.Codec)
		if !ok {
			return nil, fmt.Errorf("unknown disk cache codec %q", cfg.DiskCache.Codec)
		}
		opts = append(opts,
			thumbgrid.WithDiskCache(cfg.DiskCache.Dir, cfg.DiskCache.MaxBytes),
			thumbgrid.WithCodec(c),
		)
	}
	return opts, nil
}
