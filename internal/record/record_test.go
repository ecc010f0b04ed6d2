package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/ligustah/fetchq/internal/model"
)

func testDescriptor(dir string) model.Descriptor {
	return model.Descriptor{
		ID:            "6f1c1a52-5d36-4a8e-9d0e-1f3c2b4a5e6d",
		FileName:      "file.bin",
		DestDirectory: dir,
		SourceURL:     "https://host/dir/file.bin",
		ETag:          "abc",
		CurrentSize:   512,
		TotalSize:     1000000,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	d := testDescriptor(dir)

	s := NewFileStore()
	defer s.Close()

	_, err := s.Load(ctx, d.FullPath())
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, d.FullPath(), d))

	// The record sits beside the target and nothing else is written.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.bin"+Suffix, entries[0].Name())
	assert.Equal(t, s.Path(d.FullPath()), filepath.Join(dir, entries[0].Name()))

	got, err := s.Load(ctx, d.FullPath())
	require.NoError(t, err)
	assert.Equal(t, d, got)

}

func TestFileStoreCorruptRecord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := testDescriptor(dir)
	require.NoError(t, os.WriteFile(d.FullPath()+Suffix, []byte("{not json"), 0o644))

	_, err := NewFileStore().Load(ctx, d.FullPath())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestBucketStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)

	s := NewBucketStore(bucket, "records")
	defer s.Close()

	d := testDescriptor("/var/downloads/dir")
	assert.Equal(t, "records/var/downloads/dir/file.bin.task", s.Key(d.FullPath()))

	require.NoError(t, s.Save(ctx, d.FullPath(), d))
	got, err := s.Load(ctx, d.FullPath())
	require.NoError(t, err)
	assert.Equal(t, d, got)

	exists, err := bucket.Exists(ctx, s.Key(d.FullPath()))
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.Load(ctx, "/var/downloads/dir/other.bin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, "mem://")
	require.NoError(t, err)
	assert.IsType(t, &BucketStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "nosuchscheme://bucket")
	require.Error(t, err)
}

func TestWriteReadFile(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "saved", "snapshot.json")
	d := testDescriptor("downloads")

	_, err := ReadFile(ctx, file)
	require.Error(t, err)

	require.NoError(t, WriteFile(ctx, file, d))
	_, err = os.Stat(file)
	require.NoError(t, err)

	got, err := ReadFile(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestUnmarshalFieldNames(t *testing.T) {
	d, err := Unmarshal([]byte(`{"id":"x","file_name":"a","dest_directory":"d","source_url":"u","etag":"e","current_size":1,"total_size":2}`))
	require.NoError(t, err)
	assert.Equal(t, model.Descriptor{ID: "x", FileName: "a", DestDirectory: "d", SourceURL: "u", ETag: "e", CurrentSize: 1, TotalSize: 2}, d)
}
