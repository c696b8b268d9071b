package decode

import "sync/atomic"

type stats struct {
	decoded   atomic.Int64
	diskHits  atomic.Int64
	bytesRead atomic.Int64
}

// Stats reports decoder activity.
type Stats struct {
	// Decoded counts images decoded from the blob store.
	Decoded int64
	// DiskHits counts thumbnails served from the disk cache.
	DiskHits int64
	// BytesRead counts encoded bytes read from the blob store.
	BytesRead int64
}

// Stats returns a snapshot of the decoder counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Decoded:   d.stats.decoded.Load(),
		DiskHits:  d.stats.diskHits.Load(),
		BytesRead: d.stats.bytesRead.Load(),
	}
}
