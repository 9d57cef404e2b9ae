package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/internal/ratelimiter"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	bulkfs "github.com/linpawslitap/mds-scaling/pkg/bulk/fs"
	bulkmemory "github.com/linpawslitap/mds-scaling/pkg/bulk/memory"
	bulks3 "github.com/linpawslitap/mds-scaling/pkg/bulk/s3"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
	"github.com/linpawslitap/mds-scaling/pkg/metadata/badger"
	"github.com/linpawslitap/mds-scaling/pkg/metadata/bolt"
	"github.com/linpawslitap/mds-scaling/pkg/metadata/kvstore"
	"github.com/linpawslitap/mds-scaling/pkg/metadata/memory"
	"github.com/linpawslitap/mds-scaling/pkg/metrics"
	"github.com/linpawslitap/mds-scaling/pkg/tierfs"
)

// decode decodes a type-specific options map into out, accepting duration
// strings such as "5s".
func decode(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// ============================================================================
// Metadata stores
// ============================================================================

// CreateMetadataStore creates a metadata store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "memory": Uses pkg/metadata/memory (in-memory storage, ephemeral)
//   - "badger": Uses pkg/metadata/badger (BadgerDB storage, persistent)
//   - "bolt": Uses pkg/metadata/bolt (bbolt single-file storage, persistent)
//
// The returned store is not initialized; callers run Init before use.
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Metadata store configuration
//
// Returns:
//   - metadata.MetadataStore: Metadata store ready for Init
//   - error: Configuration or initialization error
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.MetadataStore, error) {
	storeOpts := kvstore.Options{Compress: cfg.Compress}

	switch cfg.Type {
	case "memory":
		return createMemoryMetadataStore(ctx, storeOpts)
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger, storeOpts)
	case "bolt":
		return createBoltMetadataStore(ctx, cfg.Bolt, storeOpts)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger, bolt)", cfg.Type)
	}
}

// createMemoryMetadataStore creates an in-memory metadata store.
func createMemoryMetadataStore(ctx context.Context, storeOpts kvstore.Options) (metadata.MetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return memory.NewMemoryMetadataStore(storeOpts)
}

// createBadgerMetadataStore creates a BadgerDB-based persistent metadata store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any, storeOpts kvstore.Options) (metadata.MetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var storeCfg badger.BadgerMetadataStoreConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}
	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger metadata store: db_path is required")
	}
	storeCfg.Store = storeOpts

	store, err := badger.NewBadgerMetadataStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}
	return store, nil
}

// createBoltMetadataStore creates a bbolt-based persistent metadata store.
func createBoltMetadataStore(ctx context.Context, options map[string]any, storeOpts kvstore.Options) (metadata.MetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var storeCfg bolt.BoltMetadataStoreConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode bolt metadata store options: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("bolt metadata store: path is required")
	}
	storeCfg.Store = storeOpts

	store, err := bolt.NewBoltMetadataStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create bolt metadata store: %w", err)
	}
	return store, nil
}

// ============================================================================
// Bulk stores
// ============================================================================

// CreateBulkStore creates a bulk store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/bulk/memory (ephemeral)
//   - "filesystem": Uses pkg/bulk/fs (local volumes)
//   - "s3": Uses pkg/bulk/s3 (Amazon S3 or compatible storage)
//
// When rate_limit.bytes_per_second is set the store is wrapped so every
// write waits for its share of the byte budget.
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Bulk store configuration
//
// Returns:
//   - bulk.Store: Initialized bulk store
//   - error: Configuration or initialization error
func CreateBulkStore(ctx context.Context, cfg *BulkConfig) (bulk.Store, error) {
	var (
		store bulk.Store
		err   error
	)
	switch cfg.Type {
	case "memory":
		store = bulkmemory.NewMemoryBulkStore()
	case "filesystem":
		store, err = createFilesystemBulkStore(ctx, cfg.Filesystem)
	case "s3":
		store, err = createS3BulkStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown bulk store type: %q (supported: memory, filesystem, s3)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	limiter := ratelimiter.New(cfg.RateLimit.BytesPerSecond, cfg.RateLimit.Burst)
	if !limiter.Unlimited() {
		logger.Info("Bulk writes limited to %d bytes/s (burst %d)", cfg.RateLimit.BytesPerSecond, limiter.Burst())
	}
	return bulk.NewThrottledStore(store, limiter), nil
}

// createFilesystemBulkStore creates a bulk store over local volumes.
func createFilesystemBulkStore(ctx context.Context, options map[string]any) (bulk.Store, error) {
	var storeCfg bulkfs.FSBulkStoreConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem bulk store config: %w", err)
	}
	if len(storeCfg.Volumes) == 0 {
		return nil, fmt.Errorf("filesystem bulk store: volumes is required")
	}

	store, err := bulkfs.NewFSBulkStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem bulk store: %w", err)
	}
	return store, nil
}

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PartSize        int64  `mapstructure:"part_size"`
	MaxRetries      int    `mapstructure:"max_retries"`
	SkipBucketCheck bool   `mapstructure:"skip_bucket_check"`
}

// createS3BulkStore creates an S3-based bulk store.
func createS3BulkStore(ctx context.Context, options map[string]any) (bulk.Store, error) {
	var storeCfg s3YAMLConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 bulk store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bulk store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 bulk store: region is required")
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := bulks3.NewS3BulkStore(ctx, bulks3.S3BulkStoreConfig{
		Client:          client,
		Bucket:          storeCfg.Bucket,
		KeyPrefix:       storeCfg.KeyPrefix,
		PartSize:        storeCfg.PartSize,
		SkipBucketCheck: storeCfg.SkipBucketCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 bulk store: %w", err)
	}

	logger.Info("S3 bulk store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// newS3Client builds an S3 client from the YAML options.
func newS3Client(ctx context.Context, storeCfg s3YAMLConfig) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Set credentials if provided, otherwise use default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Default to 10 attempts (AWS default is 3)
	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
		if storeCfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// ============================================================================
// File system
// ============================================================================

// NewFileSystem creates and initializes both stores and returns the tiered
// file system over them. Closing the FileSystem releases both stores.
func NewFileSystem(ctx context.Context, cfg *Config, tierMetrics metrics.TierMetrics) (*tierfs.FileSystem, error) {
	meta, err := CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, err
	}
	if err := meta.Init(ctx); err != nil {
		_ = meta.Destroy()
		return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
	}

	bulkStore, err := CreateBulkStore(ctx, &cfg.Bulk)
	if err != nil {
		_ = meta.Destroy()
		return nil, err
	}

	fs, err := tierfs.New(meta, bulkStore, tierfs.Options{
		Threshold:        cfg.Tiering.Threshold,
		BufferSize:       cfg.Tiering.BufferSize,
		Replication:      cfg.Tiering.Replication,
		BlockSize:        cfg.Tiering.BlockSize,
		WorkingDirectory: cfg.Tiering.WorkingDirectory,
		Metrics:          tierMetrics,
	})
	if err != nil {
		_ = meta.Destroy()
		_ = bulkStore.Close()
		return nil, err
	}

	logger.Info("Tiered store ready: metadata=%s bulk=%s threshold=%d",
		cfg.Metadata.Type, cfg.Bulk.Type, cfg.Tiering.Threshold)
	return fs, nil
}
