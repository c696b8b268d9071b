package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"io"

	"github.com/hupe1980/thumbgrid/blobstore"
	"github.com/hupe1980/thumbgrid/codec"
	"github.com/hupe1980/thumbgrid/internal/cache"
	"github.com/hupe1980/thumbgrid/internal/resource"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP
	"golang.org/x/image/draw"
)

// Config configures a Decoder. The zero value decodes without limits,
// without a disk cache and keeps the full image size.
type Config struct {
	// MaxWidth and MaxHeight bound the produced thumbnail.
	MaxWidth  int
	MaxHeight int
	// MaxPixels rejects images whose decoded pixel count exceeds it (0 = unlimited).
	MaxPixels int64
	// Scaler resamples oversized images. Default: draw.ApproxBiLinear.
	Scaler draw.Scaler
	// Resources bounds parallelism, read bandwidth and decode memory.
	Resources *resource.Controller
	// DiskCache persists thumbnails between runs. Optional.
	DiskCache *cache.DiskCache
	// Codec encodes thumbnails for the disk cache. Default: codec.Default.
	Codec codec.Codec
}

// Decoder produces thumbnails from a blob store.
type Decoder struct {
	store blobstore.BlobStore
	cfg   Config
	stats stats
}

// New creates a Decoder reading from store.
func New(store blobstore.BlobStore, cfg Config) *Decoder {
	if cfg.Codec == nil {
		cfg.Codec = codec.Default
	}
	if cfg.Scaler == nil {
		cfg.Scaler = draw.ApproxBiLinear
	}
	return &Decoder{store: store, cfg: cfg}
}

// Decode loads the image id and returns its thumbnail.
// Context cancellation is returned unwrapped.
func (d *Decoder) Decode(ctx context.Context, id string) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var epoch uint64
	if d.cfg.DiskCache != nil {
		epoch = d.cfg.DiskCache.Epoch()
	}
	if img, ok := d.fromDisk(ctx, id); ok {
		return img, nil
	}

	rc := d.cfg.Resources
	if err := rc.AcquireWorker(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseWorker()

	data, err := d.read(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, stageErr(id, StageDecode, classify(err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, stageErr(id, StageDecode, ErrEmpty)
	}
	pixels := int64(cfg.Width) * int64(cfg.Height)
	if d.cfg.MaxPixels > 0 && pixels > d.cfg.MaxPixels {
		return nil, stageErr(id, StageBudget, ErrTooLarge)
	}

	tw, th := FitSize(cfg.Width, cfg.Height, d.cfg.MaxWidth, d.cfg.MaxHeight)
	reserved, err := rc.AcquireMemory(ctx, pixels*4+int64(tw)*int64(th)*4)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, stageErr(id, StageBudget, err)
	}
	defer rc.ReleaseMemory(reserved)

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, stageErr(id, StageDecode, classify(err))
	}

	thumb := Thumbnail(src, d.cfg.MaxWidth, d.cfg.MaxHeight, d.cfg.Scaler)
	d.stats.decoded.Add(1)

	d.toDisk(ctx, epoch, id, thumb)
	return thumb, nil
}

func (d *Decoder) read(ctx context.Context, id string) ([]byte, error) {
	blob, err := d.store.Open(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, stageErr(id, StageOpen, err)
	}
	defer blob.Close()

	if blob.Size() == 0 {
		return nil, stageErr(id, StageRead, ErrEmpty)
	}

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return nil, stageErr(id, StageRead, err)
	}
	defer r.Close()

	buf := bytes.NewBuffer(make([]byte, 0, blob.Size()))
	if _, err := io.Copy(buf, resource.NewRateLimitedReader(ctx, r, d.cfg.Resources)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, stageErr(id, StageRead, err)
	}
	d.stats.bytesRead.Add(int64(buf.Len()))
	return buf.Bytes(), nil
}

func (d *Decoder) fromDisk(ctx context.Context, id string) (*image.RGBA, bool) {
	if d.cfg.DiskCache == nil {
		return nil, false
	}
	key := d.diskKey(id)
	data, ok := d.cfg.DiskCache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	img, err := d.cfg.Codec.Unmarshal(data)
	if err != nil {
		d.cfg.DiskCache.Delete(key)
		return nil, false
	}
	d.stats.diskHits.Add(1)
	return img, true
}

func (d *Decoder) toDisk(ctx context.Context, epoch uint64, id string, thumb *image.RGBA) {
	if d.cfg.DiskCache == nil {
		return
	}
	data, err := d.cfg.Codec.Marshal(thumb)
	if err != nil {
		return
	}
	d.cfg.DiskCache.SetEpoch(ctx, epoch, d.diskKey(id), data)
}

// diskKey names the persisted thumbnail of id at the configured bound, so a
// cache directory shared by decoders with different bounds never serves a
// thumbnail of the wrong size.
func (d *Decoder) diskKey(id string) string {
	return fmt.Sprintf("%s@%dx%d", id, d.cfg.MaxWidth, d.cfg.MaxHeight)
}

// Forget drops any persisted thumbnail for id.
func (d *Decoder) Forget(id string) {
	if d.cfg.DiskCache != nil {
		d.cfg.DiskCache.Delete(d.diskKey(id))
	}
}

func classify(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrUnsupportedFormat
	}
	return err
}
