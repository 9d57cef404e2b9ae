package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/bulk"
)

const (
	metaReplication = "replication"
	metaBlockSize   = "block-size"

	minPartSize     = 5 * 1024 * 1024
	maxPartSize     = 5 * 1024 * 1024 * 1024
	defaultPartSize = 10 * 1024 * 1024
)

// API is the subset of the S3 client used by the store.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

// S3BulkStoreConfig contains configuration for the S3 bulk store.
type S3BulkStoreConfig struct {
	// Client is the configured S3 client. Required.
	Client API

	// Bucket is the bucket holding the objects. Required.
	Bucket string

	// KeyPrefix is prepended to every object key (e.g. "gtfs/").
	KeyPrefix string

	// PartSize is the multipart upload part size (default 10MB, min 5MB).
	// Objects smaller than one part are written with a single PutObject.
	PartSize int64

	// SkipBucketCheck disables the HeadBucket check on construction.
	SkipBucketCheck bool
}

// S3BulkStore stores bulk objects in an S3-compatible bucket.
//
// Writes are buffered client-side: an object that stays below PartSize is
// uploaded with one PutObject on Close, larger ones stream as a multipart
// upload. An object becomes visible only when its writer closes.
//
// S3 has no append, so Append reads the existing object into the new
// writer's buffer and rewrites it on Close.
type S3BulkStore struct {
	client    API
	bucket    string
	keyPrefix string
	partSize  int64

	mu      sync.Mutex
	writing map[string]struct{}
}

var _ bulk.CollectableStore = (*S3BulkStore)(nil)

// NewS3BulkStore validates the configuration and, unless disabled, checks
// that the bucket is reachable.
func NewS3BulkStore(ctx context.Context, cfg S3BulkStoreConfig) (*S3BulkStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = defaultPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > maxPartSize {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	if !cfg.SkipBucketCheck {
		_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
		if err != nil {
			return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &S3BulkStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
		writing:   make(map[string]struct{}),
	}, nil
}

func (s *S3BulkStore) objectKey(clean string) string {
	return s.keyPrefix + strings.TrimPrefix(clean, "/")
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func (s *S3BulkStore) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.writing[key]; busy {
		return false
	}
	s.writing[key] = struct{}{}
	return true
}

func (s *S3BulkStore) unclaim(key string) {
	s.mu.Lock()
	delete(s.writing, key)
	s.mu.Unlock()
}

func (s *S3BulkStore) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *S3BulkStore) Create(ctx context.Context, path string, opts bulk.CreateOptions) (bulk.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}
	key := s.objectKey(clean)

	if !s.claim(key) {
		return nil, &bulk.PathError{Op: "create", Path: clean, Err: bulk.ErrObjectBusy}
	}

	if !opts.Overwrite {
		found, err := s.exists(ctx, key)
		if err != nil || found {
			s.unclaim(key)
			if err == nil {
				err = bulk.ErrObjectExists
			}
			return nil, &bulk.PathError{Op: "create", Path: clean, Err: err}
		}
	}

	meta := map[string]string{}
	if opts.Replication > 0 {
		meta[metaReplication] = strconv.Itoa(int(opts.Replication))
	}
	if opts.BlockSize > 0 {
		meta[metaBlockSize] = strconv.FormatInt(opts.BlockSize, 10)
	}

	return &writer{
		ctx:      ctx,
		store:    s,
		path:     clean,
		key:      key,
		metadata: meta,
		progress: opts.Progress,
	}, nil
}

func (s *S3BulkStore) Append(ctx context.Context, path string, _ int, progress bulk.ProgressFunc) (bulk.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}
	key := s.objectKey(clean)

	if !s.claim(key) {
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: bulk.ErrObjectBusy}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.unclaim(key)
		if isNotFound(err) {
			err = bulk.ErrObjectNotFound
		}
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: err}
	}
	defer func() { _ = out.Body.Close() }()

	w := &writer{
		ctx:      ctx,
		store:    s,
		path:     clean,
		key:      key,
		metadata: out.Metadata,
		progress: progress,
	}
	if _, err := io.Copy(&w.buf, out.Body); err != nil {
		s.unclaim(key)
		return nil, &bulk.PathError{Op: "append", Path: clean, Err: err}
	}
	return w, nil
}

func (s *S3BulkStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(clean)),
	})
	if err != nil {
		if isNotFound(err) {
			err = bulk.ErrObjectNotFound
		}
		return nil, &bulk.PathError{Op: "open", Path: clean, Err: err}
	}
	return out.Body, nil
}

func (s *S3BulkStore) Stat(ctx context.Context, path string) (*bulk.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(clean)),
	})
	if err != nil {
		if isNotFound(err) {
			err = bulk.ErrObjectNotFound
		}
		return nil, &bulk.PathError{Op: "stat", Path: clean, Err: err}
	}

	info := &bulk.ObjectInfo{
		Path: clean,
		Size: aws.ToInt64(out.ContentLength),
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	if v, err := strconv.Atoi(out.Metadata[metaReplication]); err == nil {
		info.Replication = int16(v)
	}
	if v, err := strconv.ParseInt(out.Metadata[metaBlockSize], 10, 64); err == nil {
		info.BlockSize = v
	}
	return info, nil
}

// List pages through every key under the prefix. Replication and block size
// are not reported since they would need a HeadObject per key.
func (s *S3BulkStore) List(ctx context.Context, prefix string) ([]bulk.ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix + strings.TrimPrefix(prefix, "/")),
	})

	var out []bulk.ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			info := bulk.ObjectInfo{
				Path: "/" + strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.ModTime = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *S3BulkStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := bulk.CleanPath(path)
	if err != nil {
		return err
	}
	key := s.objectKey(clean)

	if !s.claim(key) {
		return &bulk.PathError{Op: "delete", Path: clean, Err: bulk.ErrObjectBusy}
	}
	defer s.unclaim(key)

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return &bulk.PathError{Op: "delete", Path: clean, Err: err}
	}
	return nil
}

func (s *S3BulkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.writing); n > 0 {
		logger.Warn("S3 bulk store closed with %d writers still open", n)
	}
	return nil
}
