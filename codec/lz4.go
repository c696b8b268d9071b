package codec

import (
	"errors"
	"image"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses pixels with LZ4 block compression.
type LZ4 struct{}

// Marshal encodes the thumbnail with LZ4.
func (LZ4) Marshal(img *image.RGBA) ([]byte, error) { return marshal(img, CompressionLZ4) }

// Unmarshal decodes a thumbnail.
func (LZ4) Unmarshal(data []byte) (*image.RGBA, error) { return unmarshal(data) }

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }

func compressLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return compressed[:n], nil
}

func decompressLZ4(src []byte, size int) ([]byte, error) {
	result := make([]byte, size)
	n, err := lz4.UncompressBlock(src, result)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, errors.New("decompressed size mismatch")
	}
	return result, nil
}
