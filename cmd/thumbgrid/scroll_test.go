package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrollPath(t *testing.T) {
	path := scrollPath(1, 500, 1000, 80)
	require.Len(t, path, 500)
	for _, y := range path {
		assert.GreaterOrEqual(t, y, 0)
		assert.LessOrEqual(t, y, 1000)
	}
	assert.Equal(t, path, scrollPath(1, 500, 1000, 80))

	for _, y := range scrollPath(7, 20, 0, 80) {
		assert.Zero(t, y)
	}
}
