package main

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/thumbgrid/blobstore"
	tgminio "github.com/hupe1980/thumbgrid/blobstore/minio"
	tgs3 "github.com/hupe1980/thumbgrid/blobstore/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// imageStore is a blob store the CLI can read from and seed.
type imageStore interface {
	blobstore.BlobStore
	blobstore.Writer
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

func isImage(name string) bool {
	return imageExts[strings.ToLower(path.Ext(name))]
}

// openStore builds the configured store. With create set, a missing MinIO
// bucket is created.
func openStore(ctx context.Context, cfg StoreConfig, create bool) (imageStore, error) {
	switch cfg.Kind {
	case "local":
		return blobstore.NewLocalStore(cfg.Local.Root), nil
	case "minio":
		return openMinIO(ctx, cfg.MinIO, create)
	case "s3":
		return openS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

func openMinIO(ctx context.Context, cfg MinIOConfig, create bool) (imageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	if create {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("minio bucket %s: %w", cfg.Bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("minio create bucket %s: %w", cfg.Bucket, err)
			}
		}
	}

	return tgminio.NewStore(client, cfg.Bucket, cfg.RootPrefix), nil
}

func openS3(ctx context.Context, cfg S3Config) (imageStore, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	upload := tgs3.DefaultUploadConfig()
	if cfg.PartSizeMB > 0 {
		upload.PartSize = cfg.PartSizeMB << 20
	}
	if cfg.Concurrency > 0 {
		upload.Concurrency = cfg.Concurrency
	}
	upload.EnableChecksum = cfg.Checksum

	return tgs3.NewStoreWithConfig(client, cfg.Bucket, cfg.RootPrefix, upload), nil
}

// listImages returns the image names under prefix in lexical order.
func listImages(ctx context.Context, store blobstore.BlobStore, prefix string) ([]string, error) {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	ids := names[:0]
	for _, n := range names {
		if isImage(n) {
			ids = append(ids, n)
		}
	}
	return ids, nil
}
