package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thumbgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 250*time.Millisecond, cfg.Loader.SettleWindow)
	assert.Equal(t, "local", cfg.Store.Kind)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
store:
  kind: MinIO
  minio:
    endpoint: minio:9000
    bucket: photos
loader:
  settle_window: 50ms
  cost: bytes
  disk_cache:
    dir: /tmp/thumbs
    codec: zstd
grid:
  columns: 8
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Store.Kind)
	assert.Equal(t, "minio:9000", cfg.Store.MinIO.Endpoint)
	assert.Equal(t, "photos", cfg.Store.MinIO.Bucket)
	assert.Equal(t, 50*time.Millisecond, cfg.Loader.SettleWindow)
	assert.Equal(t, 250*time.Millisecond, cfg.Loader.BatchWindow)
	assert.Equal(t, "bytes", cfg.Loader.Cost)
	assert.Equal(t, "zstd", cfg.Loader.DiskCache.Codec)
	assert.Equal(t, 8, cfg.Grid.Columns)
	assert.Equal(t, 1280, cfg.Grid.Width)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("THUMBGRID_STORE_KIND", "s3")
	t.Setenv("THUMBGRID_STORE_S3_BUCKET", "images")
	t.Setenv("THUMBGRID_SESSION_STEPS", "7")
	t.Setenv("THUMBGRID_LOADER_BATCH_WINDOW", "100ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Store.Kind)
	assert.Equal(t, "images", cfg.Store.S3.Bucket)
	assert.Equal(t, 7, cfg.Session.Steps)
	assert.Equal(t, 100*time.Millisecond, cfg.Loader.BatchWindow)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"log level", "log:\n  level: loud\n"},
		{"log format", "log:\n  format: xml\n"},
		{"store kind", "store:\n  kind: ftp\n"},
		{"minio bucket", "store:\n  kind: minio\n"},
		{"s3 bucket", "store:\n  kind: s3\n"},
		{"cost", "loader:\n  cost: pixels\n"},
		{"grid", "grid:\n  columns: 0\n"},
		{"disk cache size", "loader:\n  disk_cache:\n    dir: /tmp/thumbs\n    max_bytes: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error"} {
		l, err := newLogger(LogConfig{Level: level, Format: "json"})
		require.NoError(t, err)
		assert.NotNil(t, l)
	}

	_, err := newLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
