package codec

import (
	"errors"
	"image"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ZSTD compresses pixels with Zstandard.
type ZSTD struct{}

// Marshal encodes the thumbnail with ZSTD.
func (ZSTD) Marshal(img *image.RGBA) ([]byte, error) { return marshal(img, CompressionZSTD) }

// Unmarshal decodes a thumbnail.
func (ZSTD) Unmarshal(data []byte) (*image.RGBA, error) { return unmarshal(data) }

// Name returns "zstd".
func (ZSTD) Name() string { return "zstd" }

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func compressZSTD(data []byte) []byte {
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)

	return enc.EncodeAll(data, nil)
}

func decompressZSTD(src []byte, size int) ([]byte, error) {
	dec := getZstdDecoder()
	defer zstdDecoderPool.Put(dec)

	decoded, err := dec.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, err
	}
	if len(decoded) != size {
		return nil, errors.New("decompressed size mismatch")
	}
	return decoded, nil
}
