package thumbgrid

import (
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/hupe1980/thumbgrid/codec"
	"github.com/hupe1980/thumbgrid/internal/pipeline"
	"golang.org/x/image/draw"
)

// CostModel selects how cache entries are charged against the capacity.
type CostModel int

const (
	// UnitCost charges one unit per cached thumbnail.
	UnitCost CostModel = iota
	// ByteCost charges the resident pixel bytes of a thumbnail. Capacity is
	// then expressed in bytes of thumbnails at the configured size.
	ByteCost
)

const (
	// DefaultSettleWindow is the debounce window for viewport changes.
	DefaultSettleWindow = pipeline.DefaultWindow
	// DefaultBatchWindow is the period at which results reach the sink.
	DefaultBatchWindow = pipeline.DefaultWindow
	// DefaultCapacity is the number of thumbnails cached before the first
	// geometry change sizes the cache to the viewport.
	DefaultCapacity = 100
	// DefaultCapacityFactor multiplies the visible tile count to get the
	// cache capacity.
	DefaultCapacityFactor = 5
	// DefaultThumbnailSize bounds both thumbnail dimensions.
	DefaultThumbnailSize = 256
)

// Decoder produces the thumbnail for one image identifier.
// Implementations must be safe for concurrent use.
type Decoder = pipeline.Decoder

// DecoderFunc adapts a function to Decoder.
type DecoderFunc = pipeline.DecoderFunc

// Dispatcher runs closures on the owning goroutine in the order they were
// posted. Post must not block and reports false once the dispatcher stopped.
type Dispatcher interface {
	Post(fn func()) bool
}

type options struct {
	settleWindow    time.Duration
	batchWindow     time.Duration
	capacity        int64
	capacityFactor  int64
	cost            CostModel
	maxWorkers      int
	ioLimit         int64
	decodeMemory    int64
	maxPixels       int64
	thumbWidth      int
	thumbHeight     int
	scaler          draw.Scaler
	failureSentinel bool
	diskDir         string
	diskMaxBytes    int64
	codec           codec.Codec
	decoder         Decoder
	dispatcher      Dispatcher
	repaint         func(image.Rectangle)
	logger          *Logger
	metrics         MetricsCollector
}

// Option configures a Loader.
type Option func(*options)

// WithSettleWindow sets the debounce window for viewport changes.
// Zero selects DefaultSettleWindow.
func WithSettleWindow(d time.Duration) Option {
	return func(o *options) {
		o.settleWindow = d
	}
}

// WithBatchWindow sets how often decoded results are delivered to the sink.
// Zero selects DefaultBatchWindow.
func WithBatchWindow(d time.Duration) Option {
	return func(o *options) {
		o.batchWindow = d
	}
}

// WithCapacity sets the number of thumbnails cached until the first
// GeometryChanged.
func WithCapacity(n int64) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithCapacityFactor sets how many viewports worth of thumbnails are cached.
//
// With the default of 5, moderate back and forth scrolling is served from
// the cache.
func WithCapacityFactor(factor int64) Option {
	return func(o *options) {
		o.capacityFactor = factor
	}
}

// WithCost selects the cost model of the cache.
func WithCost(m CostModel) Option {
	return func(o *options) {
		o.cost = m
	}
}

// WithMaxDecodeWorkers bounds the number of concurrent decodes across all
// generations. Zero or less means unbounded.
func WithMaxDecodeWorkers(n int) Option {
	return func(o *options) {
		o.maxWorkers = n
	}
}

// WithIOLimit bounds the read throughput from the blob store in bytes per
// second. Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithDecodeMemory bounds the estimated memory of in-flight decodes.
// Zero means unlimited.
func WithDecodeMemory(bytes int64) Option {
	return func(o *options) {
		o.decodeMemory = bytes
	}
}

// WithMaxPixels rejects images with more than n pixels. Zero means unlimited.
func WithMaxPixels(n int64) Option {
	return func(o *options) {
		o.maxPixels = n
	}
}

// WithThumbnailSize bounds the size of decoded thumbnails. Images are
// scaled down preserving their aspect ratio and never scaled up.
// Zero on an axis leaves it unbounded.
func WithThumbnailSize(width, height int) Option {
	return func(o *options) {
		o.thumbWidth = width
		o.thumbHeight = height
	}
}

// WithScaler sets the resampling kernel used for thumbnails.
func WithScaler(s draw.Scaler) Option {
	return func(o *options) {
		o.scaler = s
	}
}

// WithFailureSentinel controls whether failed decodes are cached.
//
// Enabled by default: a failed image is not decoded again until
// RetryFailed or Reset. When disabled, failures are retried on every settle
// that shows them.
func WithFailureSentinel(enabled bool) Option {
	return func(o *options) {
		o.failureSentinel = enabled
	}
}

// WithDiskCache persists thumbnails under dir, bounded by maxBytes, which
// must be positive. The disk cache is consulted before the blob store.
func WithDiskCache(dir string, maxBytes int64) Option {
	return func(o *options) {
		o.diskDir = dir
		o.diskMaxBytes = maxBytes
	}
}

// WithCodec configures the codec used for the disk cache.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithDecoder replaces the built-in blob store decoder.
// The store passed to New may be nil when a decoder is set.
func WithDecoder(d Decoder) Option {
	return func(o *options) {
		o.decoder = d
	}
}

// WithDispatcher runs planning, cache mutation and repaint requests on an
// external event loop instead of a goroutine owned by the Loader.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = d
	}
}

// WithRepaint sets the callback receiving repaint requests.
// It runs on the owning goroutine.
func WithRepaint(fn func(image.Rectangle)) Option {
	return func(o *options) {
		o.repaint = fn
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &thumbgrid.BasicMetricsCollector{}
//	l, _ := thumbgrid.New(store, source, geom, thumbgrid.WithMetricsCollector(metrics))
//	// ... scroll ...
//	stats := metrics.GetStats()
//	fmt.Printf("Decodes: %d, Avg latency: %dns\n", stats.DecodeCount, stats.DecodeAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := thumbgrid.NewJSONLogger(slog.LevelDebug)
//	l, _ := thumbgrid.New(store, source, geom, thumbgrid.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		settleWindow:    DefaultSettleWindow,
		batchWindow:     DefaultBatchWindow,
		capacity:        DefaultCapacity,
		capacityFactor:  DefaultCapacityFactor,
		cost:            UnitCost,
		maxWorkers:      runtime.NumCPU(),
		thumbWidth:      DefaultThumbnailSize,
		thumbHeight:     DefaultThumbnailSize,
		failureSentinel: true,
		codec:           codec.Default,
		metrics:         NoopMetricsCollector{},
		logger:          NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.settleWindow == 0 {
		o.settleWindow = DefaultSettleWindow
	}
	if o.batchWindow == 0 {
		o.batchWindow = DefaultBatchWindow
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.repaint == nil {
		o.repaint = func(image.Rectangle) {}
	}
	return o
}

func (o options) validate() error {
	if o.settleWindow < 0 {
		return fmt.Errorf("settle window %v: %w", o.settleWindow, ErrInvalidWindow)
	}
	if o.batchWindow < 0 {
		return fmt.Errorf("batch window %v: %w", o.batchWindow, ErrInvalidWindow)
	}
	if o.capacity < 1 {
		return fmt.Errorf("capacity %d: %w", o.capacity, ErrInvalidCapacity)
	}
	if o.capacityFactor < 1 {
		return fmt.Errorf("capacity factor %d: %w", o.capacityFactor, ErrInvalidCapacity)
	}
	if o.diskDir != "" && o.diskMaxBytes < 1 {
		return fmt.Errorf("disk cache size %d: %w", o.diskMaxBytes, ErrInvalidCapacity)
	}
	return nil
}

// unitCost is the cost of one thumbnail at the configured size.
func (o options) unitCost() int64 {
	if o.cost != ByteCost {
		return 1
	}
	w, h := o.thumbWidth, o.thumbHeight
	if w <= 0 {
		w = DefaultThumbnailSize
	}
	if h <= 0 {
		h = DefaultThumbnailSize
	}
	return int64(w) * int64(h) * 4
}
