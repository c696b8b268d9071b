package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root CLI configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Grid    GridConfig    `mapstructure:"grid"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StoreConfig selects where images are read from.
type StoreConfig struct {
	// Kind: local, minio or s3
	Kind string `mapstructure:"kind"`

	// Prefix restricts the listed images.
	Prefix string      `mapstructure:"prefix"`
	Local  LocalConfig `mapstructure:"local"`
	MinIO  MinIOConfig `mapstructure:"minio"`
	S3     S3Config    `mapstructure:"s3"`
}

// LocalConfig configures a directory of images.
type LocalConfig struct {
	Root string `mapstructure:"root"`
}

// MinIOConfig configures a MinIO bucket.
type MinIOConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Bucket     string `mapstructure:"bucket"`
	RootPrefix string `mapstructure:"root_prefix"`
	Secure     bool   `mapstructure:"secure"`
}

// S3Config configures an S3 bucket. Credentials come from the default AWS
// credential chain.
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	RootPrefix   string `mapstructure:"root_prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	PartSizeMB   int64  `mapstructure:"part_size_mb"`
	Concurrency  int    `mapstructure:"concurrency"`
	Checksum     bool   `mapstructure:"checksum"`
}

// LoaderConfig maps to thumbgrid options. Cost is "unit" or "bytes".
type LoaderConfig struct {
	SettleWindow      time.Duration   `mapstructure:"settle_window"`
	BatchWindow       time.Duration   `mapstructure:"batch_window"`
	CapacityFactor    int64           `mapstructure:"capacity_factor"`
	Cost              string          `mapstructure:"cost"`
	MaxDecodeWorkers  int             `mapstructure:"max_decode_workers"`
	IOLimitBytes      int64           `mapstructure:"io_limit_bytes"`
	DecodeMemoryBytes int64           `mapstructure:"decode_memory_bytes"`
	MaxPixels         int64           `mapstructure:"max_pixels"`
	ThumbWidth        int             `mapstructure:"thumb_width"`
	ThumbHeight       int             `mapstructure:"thumb_height"`
	FailureSentinel   bool            `mapstructure:"failure_sentinel"`
	DiskCache         DiskCacheConfig `mapstructure:"disk_cache"`
}

// DiskCacheConfig configures the persistent thumbnail cache.
// An empty Dir disables it.
type DiskCacheConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`

	// Codec: raw, lz4 or zstd
	Codec string `mapstructure:"codec"`
}

// GridConfig sizes the simulated viewport.
type GridConfig struct {
	Width   int `mapstructure:"width"`
	Height  int `mapstructure:"height"`
	Columns int `mapstructure:"columns"`
}

// SessionConfig drives the simulated scroll session of the run command.
type SessionConfig struct {
	Steps      int           `mapstructure:"steps"`
	Interval   time.Duration `mapstructure:"interval"`
	ScrollStep int           `mapstructure:"scroll_step"`
	Seed       int64         `mapstructure:"seed"`

	// Linger keeps the loader running after the last step so pending
	// decodes can finish.
	Linger time.Duration `mapstructure:"linger"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format: text or json
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Kind:  "local",
			Local: LocalConfig{Root: "."},
			MinIO: MinIOConfig{Endpoint: "localhost:9000"},
			S3: S3Config{
				PartSizeMB:  8,
				Concurrency: 5,
				Checksum:    true,
			},
		},
		Loader: LoaderConfig{
			SettleWindow:    250 * time.Millisecond,
			BatchWindow:     250 * time.Millisecond,
			CapacityFactor:  5,
			Cost:            "unit",
			ThumbWidth:      256,
			ThumbHeight:     256,
			FailureSentinel: true,
			DiskCache: DiskCacheConfig{
				MaxBytes: 256 << 20,
				Codec:    "lz4",
			},
		},
		Grid: GridConfig{
			Width:   1280,
			Height:  800,
			Columns: 5,
		},
		Session: SessionConfig{
			Steps:      200,
			Interval:   20 * time.Millisecond,
			ScrollStep: 120,
			Seed:       42,
			Linger:     2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":2112",
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix THUMBGRID and `.`/`-` are replaced with `_`.
// Example: THUMBGRID_STORE_KIND=minio
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("THUMBGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("store.kind", cfg.Store.Kind)
	v.SetDefault("store.prefix", cfg.Store.Prefix)
	v.SetDefault("store.local.root", cfg.Store.Local.Root)
	v.SetDefault("store.minio.endpoint", cfg.Store.MinIO.Endpoint)
	v.SetDefault("store.minio.access_key", cfg.Store.MinIO.AccessKey)
	v.SetDefault("store.minio.secret_key", cfg.Store.MinIO.SecretKey)
	v.SetDefault("store.minio.bucket", cfg.Store.MinIO.Bucket)
	v.SetDefault("store.minio.root_prefix", cfg.Store.MinIO.RootPrefix)
	v.SetDefault("store.minio.secure", cfg.Store.MinIO.Secure)
	v.SetDefault("store.s3.bucket", cfg.Store.S3.Bucket)
	v.SetDefault("store.s3.root_prefix", cfg.Store.S3.RootPrefix)
	v.SetDefault("store.s3.region", cfg.Store.S3.Region)
	v.SetDefault("store.s3.endpoint", cfg.Store.S3.Endpoint)
	v.SetDefault("store.s3.use_path_style", cfg.Store.S3.UsePathStyle)
	v.SetDefault("store.s3.part_size_mb", cfg.Store.S3.PartSizeMB)
	v.SetDefault("store.s3.concurrency", cfg.Store.S3.Concurrency)
	v.SetDefault("store.s3.checksum", cfg.Store.S3.Checksum)
	v.SetDefault("loader.settle_window", cfg.Loader.SettleWindow)
	v.SetDefault("loader.batch_window", cfg.Loader.BatchWindow)
	v.SetDefault("loader.capacity_factor", cfg.Loader.CapacityFactor)
	v.SetDefault("loader.cost", cfg.Loader.Cost)
	v.SetDefault("loader.max_decode_workers", cfg.Loader.MaxDecodeWorkers)
	v.SetDefault("loader.io_limit_bytes", cfg.Loader.IOLimitBytes)
	v.SetDefault("loader.decode_memory_bytes", cfg.Loader.DecodeMemoryBytes)
	v.SetDefault("loader.max_pixels", cfg.Loader.MaxPixels)
	v.SetDefault("loader.thumb_width", cfg.Loader.ThumbWidth)
	v.SetDefault("loader.thumb_height", cfg.Loader.ThumbHeight)
	v.SetDefault("loader.failure_sentinel", cfg.Loader.FailureSentinel)
	v.SetDefault("loader.disk_cache.dir", cfg.Loader.DiskCache.Dir)
	v.SetDefault("loader.disk_cache.max_bytes", cfg.Loader.DiskCache.MaxBytes)
	v.SetDefault("loader.disk_cache.codec", cfg.Loader.DiskCache.Codec)
	v.SetDefault("grid.width", cfg.Grid.Width)
	v.SetDefault("grid.height", cfg.Grid.Height)
	v.SetDefault("grid.columns", cfg.Grid.Columns)
	v.SetDefault("session.steps", cfg.Session.Steps)
	v.SetDefault("session.interval", cfg.Session.Interval)
	v.SetDefault("session.scroll_step", cfg.Session.ScrollStep)
	v.SetDefault("session.seed", cfg.Session.Seed)
	v.SetDefault("session.linger", cfg.Session.Linger)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	// Choose config file
	if path == "" {
		if envPath := os.Getenv("THUMBGRID_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("thumbgrid")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	case "":
		c.Log.Format = "text"
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}

	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
	switch c.Store.Kind {
	case "local":
	case "minio":
		if c.Store.MinIO.Bucket == "" {
			return errors.New("store.minio.bucket is required")
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			return errors.New("store.s3.bucket is required")
		}
	default:
		return fmt.Errorf("invalid store.kind: %q", c.Store.Kind)
	}

	switch c.Loader.Cost {
	case "unit", "bytes":
	default:
		return fmt.Errorf("invalid loader.cost: %q", c.Loader.Cost)
	}
	if c.Loader.DiskCache.Dir != "" && c.Loader.DiskCache.MaxBytes <= 0 {
		return fmt.Errorf("invalid loader.disk_cache.max_bytes: %d", c.Loader.DiskCache.MaxBytes)
	}
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 || c.Grid.Columns <= 0 {
		return fmt.Errorf("invalid grid %dx%d with %d columns", c.Grid.Width, c.Grid.Height, c.Grid.Columns)
	}
	return nil
}
