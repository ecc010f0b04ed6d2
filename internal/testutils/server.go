// Package testutils provides shared test infrastructure: an in-process range
// server for unit tests and container helpers for integration tests.
package testutils

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// TestFile defines a test file with size and data.
type TestFile struct {
	Name string
	Data []byte
	// ETag is served quoted. Empty serves no ETag header.
	ETag string
}

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 256)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// RangeServer serves TestFiles with HEAD and byte-range GET support and
// counts the requests it sees.
type RangeServer struct {
	*httptest.Server

	mu          sync.Mutex
	files       map[string]TestFile
	ignoreRange bool
	ranges      []string

	heads atomic.Int64
	gets  atomic.Int64
}

// StartRangeServer starts a RangeServer serving files. It is closed when the
// test ends.
func StartRangeServer(t *testing.T, files ...TestFile) *RangeServer {
	t.Helper()

	s := &RangeServer{files: make(map[string]TestFile)}
	for _, f := range files {
		s.files["/"+f.Name] = f
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// FileURL returns the absolute URL of the named file.
func (s *RangeServer) FileURL(name string) string {
	return s.Server.URL + "/" + name
}

// SetFile adds or replaces a served file.
func (s *RangeServer) SetFile(f TestFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files["/"+f.Name] = f
}

// IgnoreRange makes GET requests answer 200 with the whole body.
func (s *RangeServer) IgnoreRange(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreRange = v
}

// Heads returns the number of HEAD requests served.
func (s *RangeServer) Heads() int64 {
	return s.heads.Load()
}

// Gets returns the number of GET requests received.
func (s *RangeServer) Gets() int64 {
	return s.gets.Load()
}

// Ranges returns the Range headers of all GET requests in order.
func (s *RangeServer) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func (s *RangeServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	f, ok := s.files[r.URL.Path]
	ignoreRange := s.ignoreRange
	if r.Method == http.MethodGet {
		s.ranges = append(s.ranges, r.Header.Get("Range"))
	}
	s.mu.Unlock()

	if r.Method == http.MethodHead {
		s.heads.Add(1)
	} else {
		s.gets.Add(1)
	}

	if !ok {
		http.NotFound(w, r)
		return
	}

	data := f.Data
	size := int64(len(data))
	if f.ETag != "" {
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, f.ETag))
	}
	w.Header().Set("Accept-Ranges", "bytes")

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || ignoreRange {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Write(data)
		return
	}

	// Parse range header: bytes=start-end
	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(rangeHeader, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end := size - 1
	if len(parts) > 1 && parts[1] != "" {
		end, _ = strconv.ParseInt(parts[1], 10, 64)
	}

	if end >= size {
		end = size - 1
	}
	if start > end {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

// CompareFileToData fails the test unless the file at path holds expected.
func CompareFileToData(t *testing.T, path string, expected []byte) {
	t.Helper()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(got) != len(expected) {
		t.Fatalf("size mismatch: got %d bytes, want %d", len(got), len(expected))
	}
	if i := firstDiff(got, expected); i >= 0 {
		t.Fatalf("data mismatch at offset %d", i)
	}
}

func firstDiff(a, b []byte) int {
	const chunk = 1024 * 1024
	for off := 0; off < len(a); off += chunk {
		end := min(off+chunk, len(a))
		if !bytes.Equal(a[off:end], b[off:end]) {
			for i := off; i < end; i++ {
				if a[i] != b[i] {
					return i
				}
			}
		}
	}
	return -1
}
