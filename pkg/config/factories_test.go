package config

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	bulkfs "github.com/linpawslitap/mds-scaling/pkg/bulk/fs"
	bulkmemory "github.com/linpawslitap/mds-scaling/pkg/bulk/memory"
	bulks3 "github.com/linpawslitap/mds-scaling/pkg/bulk/s3"
	"github.com/linpawslitap/mds-scaling/pkg/metrics"
	"github.com/linpawslitap/mds-scaling/pkg/tierfs"
)

func TestCreateMetadataStore_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := &MetadataConfig{
		Type:   "memory",
		Memory: map[string]any{},
	}

	store, err := CreateMetadataStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create memory metadata store: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_ = store.Destroy()
}

func TestCreateMetadataStore_BadgerInMemory(t *testing.T) {
	ctx := context.Background()
	cfg := &MetadataConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true},
	}

	store, err := CreateMetadataStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create badger metadata store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_ = store.Destroy()
}

func TestCreateMetadataStore_BadgerMissingPath(t *testing.T) {
	cfg := &MetadataConfig{
		Type:   "badger",
		Badger: map[string]any{},
	}

	_, err := CreateMetadataStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for missing db_path")
	}
	if !strings.Contains(err.Error(), "db_path is required") {
		t.Errorf("Expected 'db_path is required' error, got: %v", err)
	}
}

func TestCreateMetadataStore_Bolt(t *testing.T) {
	ctx := context.Background()
	cfg := &MetadataConfig{
		Type:     "bolt",
		Compress: true,
		Bolt: map[string]any{
			"path":         filepath.Join(t.TempDir(), "meta.db"),
			"lock_timeout": "2s",
		},
	}

	store, err := CreateMetadataStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create bolt metadata store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_ = store.Destroy()
}

func TestCreateMetadataStore_UnknownType(t *testing.T) {
	cfg := &MetadataConfig{Type: "postgres"}

	_, err := CreateMetadataStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unknown metadata store type") {
		t.Errorf("Expected 'unknown metadata store type' error, got: %v", err)
	}
}

func TestCreateMetadataStore_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &MetadataConfig{Type: "memory"}
	if _, err := CreateMetadataStore(ctx, cfg); err == nil {
		t.Fatal("Expected error for canceled context")
	}
}

func TestCreateBulkStore_Memory(t *testing.T) {
	store, err := CreateBulkStore(context.Background(), &BulkConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory bulk store: %v", err)
	}
	if _, ok := store.(*bulkmemory.MemoryBulkStore); !ok {
		t.Errorf("Expected unthrottled *MemoryBulkStore, got %T", store)
	}
}

func TestCreateBulkStore_Filesystem(t *testing.T) {
	cfg := &BulkConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"volumes": []any{t.TempDir(), t.TempDir()},
		},
	}

	store, err := CreateBulkStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create filesystem bulk store: %v", err)
	}
	if _, ok := store.(*bulkfs.FSBulkStore); !ok {
		t.Errorf("Expected *FSBulkStore, got %T", store)
	}
}

func TestCreateBulkStore_FilesystemMissingVolumes(t *testing.T) {
	cfg := &BulkConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{},
	}

	_, err := CreateBulkStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for missing volumes")
	}
	if !strings.Contains(err.Error(), "volumes is required") {
		t.Errorf("Expected 'volumes is required' error, got: %v", err)
	}
}

func TestCreateBulkStore_S3(t *testing.T) {
	isolate(t)

	cfg := &BulkConfig{
		Type: "s3",
		S3: map[string]any{
			"bucket":            "gtfs-test",
			"region":            "us-east-1",
			"endpoint":          "http://localhost:9000",
			"access_key_id":     "test",
			"secret_access_key": "test",
			"skip_bucket_check": true,
		},
	}

	store, err := CreateBulkStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create S3 bulk store: %v", err)
	}
	if _, ok := store.(*bulks3.S3BulkStore); !ok {
		t.Errorf("Expected *S3BulkStore, got %T", store)
	}
}

func TestCreateBulkStore_S3MissingBucket(t *testing.T) {
	cfg := &BulkConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	}

	_, err := CreateBulkStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for missing bucket")
	}
	if !strings.Contains(err.Error(), "bucket is required") {
		t.Errorf("Expected 'bucket is required' error, got: %v", err)
	}
}

func TestCreateBulkStore_RateLimited(t *testing.T) {
	cfg := &BulkConfig{
		Type:      "memory",
		RateLimit: RateLimitConfig{BytesPerSecond: 1 << 20},
	}

	store, err := CreateBulkStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create throttled bulk store: %v", err)
	}
	throttled, ok := store.(*bulk.ThrottledStore)
	if !ok {
		t.Fatalf("Expected *ThrottledStore, got %T", store)
	}
	if _, ok := throttled.Unwrap().(*bulkmemory.MemoryBulkStore); !ok {
		t.Errorf("Expected wrapped *MemoryBulkStore, got %T", throttled.Unwrap())
	}
}

func TestCreateBulkStore_UnknownType(t *testing.T) {
	_, err := CreateBulkStore(context.Background(), &BulkConfig{Type: "gcs"})
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unknown bulk store type") {
		t.Errorf("Expected 'unknown bulk store type' error, got: %v", err)
	}
}

func TestCreateBulkStore_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &BulkConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"volumes": []string{t.TempDir()}},
	}
	if _, err := CreateBulkStore(ctx, cfg); err == nil {
		t.Fatal("Expected error for canceled context")
	}
}

func TestNewFileSystem_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "memory"
	cfg.Bulk.Type = "memory"
	cfg.Tiering.Threshold = 16
	cfg.Tiering.WorkingDirectory = "/"

	fs, err := NewFileSystem(ctx, cfg, metrics.NewNoopTierMetrics())
	if err != nil {
		t.Fatalf("NewFileSystem failed: %v", err)
	}
	defer func() { _ = fs.Close() }()

	if fs.Threshold() != 16 {
		t.Errorf("Expected threshold 16, got %d", fs.Threshold())
	}

	small := []byte("tiny")
	large := bytes.Repeat([]byte("x"), 100)

	for name, data := range map[string][]byte{"/small": small, "/large": large} {
		w, err := fs.Create(ctx, name, tierfs.CreateOptions{})
		if err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("Write %s failed: %v", name, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close %s failed: %v", name, err)
		}
	}

	for name, want := range map[string]struct {
		data     []byte
		migrated bool
	}{
		"/small": {small, false},
		"/large": {large, true},
	} {
		r, err := fs.Open(ctx, name)
		if err != nil {
			t.Fatalf("Open %s failed: %v", name, err)
		}
		got, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			t.Fatalf("Read %s failed: %v", name, err)
		}
		if !bytes.Equal(got, want.data) {
			t.Errorf("%s: read %d bytes, want %d", name, len(got), len(want.data))
		}
		if r.Migrated() != want.migrated {
			t.Errorf("%s: migrated = %v, want %v", name, r.Migrated(), want.migrated)
		}
	}
}

func TestNewFileSystem_BadBulkConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "memory"
	cfg.Bulk.Type = "filesystem"
	cfg.Bulk.Filesystem = map[string]any{}

	if _, err := NewFileSystem(context.Background(), cfg, nil); err == nil {
		t.Fatal("Expected error for filesystem bulk store without volumes")
	}
}
