package codec

import "image"

// Raw stores pixels uncompressed.
type Raw struct{}

// Marshal encodes the thumbnail without compression.
func (Raw) Marshal(img *image.RGBA) ([]byte, error) { return marshal(img, CompressionNone) }

// Unmarshal decodes a thumbnail.
func (Raw) Unmarshal(data []byte) (*image.RGBA, error) { return unmarshal(data) }

// Name returns "raw".
func (Raw) Name() string { return "raw" }
