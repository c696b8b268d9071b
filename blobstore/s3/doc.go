// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store := s3blob.NewStore(client, "my-bucket", "photos/")
//
// # Features
//
//   - Whole-image streaming with a single ranged GET
//   - Managed (multipart) uploads with CRC32C integrity validation
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
