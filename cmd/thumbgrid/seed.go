package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path"
	"sync/atomic"

	"github.com/hupe1980/thumbgrid"
	"github.com/hupe1980/thumbgrid/blobstore"
	"golang.org/x/sync/errgroup"
)

const seedConcurrency = 8

func seedCommand(ctx context.Context, cfg *Config, logger *thumbgrid.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("seed: expected exactly one source directory")
	}

	src := blobstore.NewLocalStore(fs.Arg(0))
	names, err := listImages(ctx, src, "")
	if err != nil {
		return err
	}

	dst, err := openStore(ctx, cfg.Store, true)
	if err != nil {
		return err
	}

	var uploaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for _, name := range names {
		g.Go(func() error {
			data, err := blobstore.ReadAll(gctx, src, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			key := path.Join(cfg.Store.Prefix, name)
			if err := dst.Put(gctx, key, data); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
			uploaded.Add(1)
			logger.WithID(key).Debug("image uploaded", "bytes", len(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.WithStore(cfg.Store.Kind).Info("seed completed", "images", uploaded.Load())
	fmt.Fprintf(out, "seeded %d images\n", uploaded.Load())
	return nil
}
