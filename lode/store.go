package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// Backend names accepted by StoreConfig.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// StoreConfig selects and configures a storage backend.
type StoreConfig struct {
	// Backend is one of "fs", "s3", "memory".
	Backend string
	// Path is the root directory for fs, or "bucket/prefix" for s3.
	Path string
	// Region is the AWS region (s3 only, optional).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers.
	Endpoint string
	// UsePathStyle forces path-style addressing (s3 only).
	UsePathStyle bool
}

// Validate checks that the backend is known and its required fields are set.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.Path == "" {
			return errors.New("fs backend requires a path")
		}
	case BackendS3:
		bucket, _ := ParseS3Path(c.Path)
		if bucket == "" {
			return errors.New("s3 backend requires a bucket path")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q (want fs, s3, or memory)", c.Backend)
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// NewStoreFactory returns a Lode StoreFactory for the configured backend.
// The S3 backend uses the AWS SDK default credential chain.
func NewStoreFactory(ctx context.Context, cfg StoreConfig) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendFS:
		return lode.NewFSFactory(cfg.Path), nil
	case BackendMemory:
		store := lode.NewMemory()
		return func() (lode.Store, error) { return store, nil }, nil
	default:
		return newS3Factory(ctx, cfg)
	}
}

// NewStore constructs a single Store for the configured backend.
func NewStore(ctx context.Context, cfg StoreConfig) (lode.Store, error) {
	factory, err := NewStoreFactory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := factory()
	if err != nil {
		return nil, Wrap(err, "init", cfg.Path)
	}
	return store, nil
}

func newS3Factory(ctx context.Context, cfg StoreConfig) (lode.StoreFactory, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	bucket, prefix := ParseS3Path(cfg.Path)
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: bucket,
			Prefix: prefix,
		})
	}, nil
}
