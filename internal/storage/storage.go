// Package storage is the local file-system capability used by download tasks.
package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

// File is an open, writable file owned by a single task.
type File interface {
	io.WriterAt
	Sync() error
	Truncate(size int64) error
	Size() (int64, error)
	Close() error
}

// FS is the set of file operations a task needs.
type FS interface {
	MkdirAll(dir string) error
	// OpenWrite opens path for writing, creating it when missing and keeping
	// any existing contents so an interrupted transfer can resume.
	OpenWrite(path string) (File, error)
	Exists(path string) bool
	Size(path string) (int64, error)
	Remove(path string) error
	Rename(from, to string) error
}

// OS implements FS on the host file system.
type OS struct{}

// MkdirAll creates dir and any missing parents.
func (OS) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// OpenWrite opens path for writing without truncating it.
func (OS) OpenWrite(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return osFile{f}, nil
}

// Exists reports whether path exists and is a regular file.
func (OS) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Size returns the size of the file at path.
func (OS) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes path. A missing file is not an error.
func (OS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Rename moves from to to, replacing nothing: the caller removes an existing
// target first.
func (OS) Rename(from, to string) error {
	return os.Rename(from, to)
}

type osFile struct {
	*os.File
}

func (f osFile) Size() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
