package main

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/thumbgrid/blobstore"
	"github.com/hupe1980/thumbgrid/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMain_SeedAndRun(t *testing.T) {
	src := t.TempDir()
	for i := range 12 {
		img := testutil.Solid(40, 30, color.RGBA{R: uint8(i * 20), A: 255})
		name := filepath.Join(src, fmt.Sprintf("photo-%02d.png", i))
		require.NoError(t, os.WriteFile(name, testutil.EncodePNG(t, img), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip me"), 0o644))

	dst := t.TempDir()
	cfgPath := writeConfig(t, fmt.Sprintf(`
store:
  kind: local
  local:
    root: %s
loader:
  settle_window: 10ms
  batch_window: 10ms
  thumb_width: 16
  thumb_height: 16
  disk_cache:
    dir: %s
    codec: zstd
grid:
  width: 100
  height: 40
  columns: 5
session:
  steps: 3
  interval: 5ms
  scroll_step: 20
  linger: 300ms
log:
  level: error
metrics:
  addr: ""
`, dst, filepath.Join(t.TempDir(), "cache")))

	var out bytes.Buffer
	require.NoError(t, runMain([]string{"-config", cfgPath, "seed", src}, &out))
	assert.Equal(t, "seeded 12 images\n", out.String())

	ids, err := listImages(t.Context(), blobstore.NewLocalStore(dst), "")
	require.NoError(t, err)
	assert.Len(t, ids, 12)

	out.Reset()
	require.NoError(t, runMain([]string{"-config", cfgPath, "run", "-steps", "2"}, &out))
	assert.Contains(t, out.String(), "visible rows [")
	assert.Contains(t, out.String(), "generations=")
}

func TestRunMain_Errors(t *testing.T) {
	var out bytes.Buffer
	cfgPath := writeConfig(t, "metrics:\n  addr: \"\"\n")

	assert.Error(t, runMain(nil, &out))
	assert.Error(t, runMain([]string{"-config", cfgPath, "bogus"}, &out))
	assert.Error(t, runMain([]string{"-config", cfgPath, "seed"}, &out))
}
