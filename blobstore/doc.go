// Package blobstore provides the storage abstraction thumbnails are decoded from.
//
// An image is addressed by its identifier, which a BlobStore resolves to a
// blob. Implementations must be safe for concurrent use since decode workers
// open blobs in parallel.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with mmap support
//   - MemoryStore: in-memory, for tests and fixtures
//   - minio.Store: MinIO and other S3-compatible storage
//   - s3.Store: Amazon S3 with range reads and managed uploads
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Stores that can be written to (used by the seed command) also implement
// Writer. Remote blobs should implement RangeReader so a whole image can be
// streamed with a single request.
package blobstore
