package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/fetchq/internal/model"
)

// Suffix is appended to a task's target path to name its sidecar record.
const Suffix = ".task"

// ErrNotFound is returned by Store.Load when no record exists for the path.
var ErrNotFound = errors.New("record: not found")

// Store persists task descriptors keyed by the task's target path.
type Store interface {
	Load(ctx context.Context, fullPath string) (model.Descriptor, error)
	Save(ctx context.Context, fullPath string, d model.Descriptor) error
	Close() error
}

// Marshal encodes a descriptor as a sidecar record.
func Marshal(d model.Descriptor) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal decodes a sidecar record.
func Unmarshal(data []byte) (model.Descriptor, error) {
	var d model.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return model.Descriptor{}, fmt.Errorf("record: unmarshal: %w", err)
	}
	return d, nil
}

// Open returns a Store for bucketURL. An empty URL stores each record next to
// its target file; anything else is opened with blob.OpenBucket, so the
// caller must import the matching gocloud driver.
func Open(ctx context.Context, bucketURL string) (Store, error) {
	if bucketURL == "" {
		return NewFileStore(), nil
	}
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("record: open bucket: %w", err)
	}
	return NewBucketStore(bucket, ""), nil
}

// FileStore keeps each record beside its target file as <fullPath>.task.
type FileStore struct {
	opts fileblob.Options
}

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{
		opts: fileblob.Options{
			CreateDir: true,
			NoTempDir: true,
			Metadata:  fileblob.MetadataDontWrite,
		},
	}
}

// Path returns where the record for fullPath is stored.
func (s *FileStore) Path(fullPath string) string {
	return fullPath + Suffix
}

func (s *FileStore) open(fullPath string) (*blob.Bucket, string, error) {
	bucket, err := fileblob.OpenBucket(filepath.Dir(fullPath), &s.opts)
	if err != nil {
		return nil, "", fmt.Errorf("record: open %s: %w", filepath.Dir(fullPath), err)
	}
	return bucket, filepath.Base(fullPath) + Suffix, nil
}

// Load reads the record for fullPath.
func (s *FileStore) Load(ctx context.Context, fullPath string) (model.Descriptor, error) {
	bucket, key, err := s.open(fullPath)
	if err != nil {
		return model.Descriptor{}, err
	}
	defer bucket.Close()
	return load(ctx, bucket, key)
}

// Save writes the record for fullPath.
func (s *FileStore) Save(ctx context.Context, fullPath string, d model.Descriptor) error {
	bucket, key, err := s.open(fullPath)
	if err != nil {
		return err
	}
	defer bucket.Close()
	return save(ctx, bucket, key, d)
}

// Close is a no-op; buckets are opened per operation.
func (s *FileStore) Close() error {
	return nil
}

// ReadFile reads a record stored at an explicit path, with no suffix added.
func ReadFile(ctx context.Context, file string) (model.Descriptor, error) {
	bucket, err := fileblob.OpenBucket(filepath.Dir(file), &fileblob.Options{NoTempDir: true})
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("record: open %s: %w", filepath.Dir(file), err)
	}
	defer bucket.Close()
	return load(ctx, bucket, filepath.Base(file))
}

// WriteFile writes a record to an explicit path, creating its directory.
func WriteFile(ctx context.Context, file string, d model.Descriptor) error {
	bucket, err := fileblob.OpenBucket(filepath.Dir(file), &fileblob.Options{
		CreateDir: true,
		NoTempDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return fmt.Errorf("record: open %s: %w", filepath.Dir(file), err)
	}
	defer bucket.Close()
	return save(ctx, bucket, filepath.Base(file), d)
}

// BucketStore keeps records in a single bucket, keyed by the target path.
type BucketStore struct {
	bucket *blob.Bucket
	prefix string
}

// NewBucketStore creates a store over bucket. Keys are prefix followed by the
// slash-separated target path and Suffix. The store owns the bucket.
func NewBucketStore(bucket *blob.Bucket, prefix string) *BucketStore {
	return &BucketStore{bucket: bucket, prefix: prefix}
}

// Key returns the object key used for fullPath.
func (s *BucketStore) Key(fullPath string) string {
	p := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(fullPath)), "/")
	return path.Join(s.prefix, p) + Suffix
}

// Load reads the record for fullPath.
func (s *BucketStore) Load(ctx context.Context, fullPath string) (model.Descriptor, error) {
	return load(ctx, s.bucket, s.Key(fullPath))
}

// Save writes the record for fullPath.
func (s *BucketStore) Save(ctx context.Context, fullPath string, d model.Descriptor) error {
	return save(ctx, s.bucket, s.Key(fullPath), d)
}

// Close closes the underlying bucket.
func (s *BucketStore) Close() error {
	return s.bucket.Close()
}

func load(ctx context.Context, bucket *blob.Bucket, key string) (model.Descriptor, error) {
	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		if isNotExist(err) {
			return model.Descriptor{}, ErrNotFound
		}
		return model.Descriptor{}, fmt.Errorf("record: read %s: %w", key, err)
	}
	return Unmarshal(data)
}

func save(ctx context.Context, bucket *blob.Bucket, key string, d model.Descriptor) error {
	data, err := Marshal(d)
	if err != nil {
		return fmt.Errorf("record: marshal: %w", err)
	}
	if err := bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("record: write %s: %w", key, err)
	}
	return nil
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
