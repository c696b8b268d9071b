// Package codec serializes decoded thumbnails for the persistent disk cache.
//
// Every encoded thumbnail is self-describing: a fixed header records the
// dimensions and the compression used, so any codec can decode bytes written
// by any other. Changing the header layout is a breaking change for existing
// cache directories; bump Version when doing so.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
)

// Codec encodes and decodes thumbnails.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(img *image.RGBA) ([]byte, error)
	Unmarshal(data []byte) (*image.RGBA, error)
	Name() string
}

// Compression identifies the payload compression stored in the header.
type Compression uint8

const (
	// CompressionNone stores the pixel payload as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio, slower).
	CompressionZSTD Compression = 2
)

// Version is the current header version.
const Version uint8 = 1

var magic = [4]byte{'T', 'H', 'M', 'B'}

// Header: [magic 4][version 1][compression 1][reserved 2]
// [width u32][height u32][uncompressed u32][compressed u32].
// compressed == 0 means the payload is stored uncompressed.
const headerSize = 24

// Maximum dimension accepted when decoding, guarding against corrupt headers.
const maxDimension = 1 << 14

var (
	// ErrCorrupt is returned when the encoded bytes cannot be parsed.
	ErrCorrupt = errors.New("codec: corrupt thumbnail data")
	// ErrVersion is returned for headers written by an unknown version.
	ErrVersion = errors.New("codec: unsupported version")
)

// Default is the codec used when none is configured.
var Default Codec = LZ4{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "raw", "none", "":
		return Raw{}, true
	case "lz4":
		return LZ4{}, true
	case "zstd":
		return ZSTD{}, true
	default:
		return nil, false
	}
}

// Decode parses bytes written by any built-in codec.
func Decode(data []byte) (*image.RGBA, error) {
	return unmarshal(data)
}

func marshal(img *image.RGBA, c Compression) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrCorrupt)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pix := packedPix(img)

	var payload []byte
	if c != CompressionNone && len(pix) > 0 {
		var err error
		switch c {
		case CompressionLZ4:
			payload, err = compressLZ4(pix)
		case CompressionZSTD:
			payload = compressZSTD(pix)
		default:
			return nil, fmt.Errorf("codec: unknown compression %d", c)
		}
		if err != nil {
			return nil, err
		}
	}

	// Store uncompressed if compression does not help (ratio > 0.9).
	compressed := true
	if len(payload) == 0 || float64(len(payload)) > float64(len(pix))*0.9 {
		payload = pix
		compressed = false
		c = CompressionNone
	}

	out := make([]byte, headerSize+len(payload))
	copy(out[0:4], magic[:])
	out[4] = Version
	out[5] = byte(c)
	binary.LittleEndian.PutUint32(out[8:], uint32(w))
	binary.LittleEndian.PutUint32(out[12:], uint32(h))
	binary.LittleEndian.PutUint32(out[16:], uint32(len(pix)))
	if compressed {
		binary.LittleEndian.PutUint32(out[20:], uint32(len(payload)))
	}
	copy(out[headerSize:], payload)
	return out, nil
}

func unmarshal(data []byte) (*image.RGBA, error) {
	if len(data) < headerSize || [4]byte(data[0:4]) != magic {
		return nil, ErrCorrupt
	}
	if data[4] != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, data[4])
	}

	c := Compression(data[5])
	w := binary.LittleEndian.Uint32(data[8:])
	h := binary.LittleEndian.Uint32(data[12:])
	uncompressedSize := binary.LittleEndian.Uint32(data[16:])
	compressedSize := binary.LittleEndian.Uint32(data[20:])

	if w > maxDimension || h > maxDimension || uint64(uncompressedSize) != uint64(w)*uint64(h)*4 {
		return nil, ErrCorrupt
	}

	var pix []byte
	if compressedSize == 0 {
		if uint64(len(data)) < headerSize+uint64(uncompressedSize) {
			return nil, ErrCorrupt
		}
		pix = make([]byte, uncompressedSize)
		copy(pix, data[headerSize:])
	} else {
		if uint64(len(data)) < headerSize+uint64(compressedSize) {
			return nil, ErrCorrupt
		}
		src := data[headerSize : headerSize+compressedSize]

		var err error
		switch c {
		case CompressionLZ4:
			pix, err = decompressLZ4(src, int(uncompressedSize))
		case CompressionZSTD:
			pix, err = decompressZSTD(src, int(uncompressedSize))
		default:
			return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, c)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	return &image.RGBA{
		Pix:    pix,
		Stride: int(w) * 4,
		Rect:   image.Rect(0, 0, int(w), int(h)),
	}, nil
}

// packedPix returns the pixel rows without stride padding.
func packedPix(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	rowLen := w * 4
	if img.Stride == rowLen && img.Rect.Min == (image.Point{}) {
		return img.Pix[:rowLen*h]
	}

	out := make([]byte, rowLen*h)
	for y := range h {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(out[y*rowLen:], img.Pix[off:off+rowLen])
	}
	return out
}
