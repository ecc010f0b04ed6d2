package task

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://host/dir/file.bin", "file.bin"},
		{"https://host/dir/file.bin?token=1#frag", "file.bin"},
		{"https://host/my%20file.txt", "my file.txt"},
		{"https://host/dir/", ""},
		{"https://host", ""},
		{"https://host/..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, FileNameFromURL(tt.url))
		})
	}
}

func TestDefaultDirectory(t *testing.T) {
	base := filepath.Join("var", "downloads")
	assert.Equal(t, filepath.Join(base, "a", "b"), DefaultDirectory(base, "https://host/a/b/file.bin"))
	assert.Equal(t, base, DefaultDirectory(base, "https://host/file.bin"))
	assert.Equal(t, base, DefaultDirectory(base, "https://host"))
	assert.Equal(t, filepath.Join(base, "x"), DefaultDirectory(base, "https://host/../x/file.bin"))
}

func TestTempPath(t *testing.T) {
	assert.Equal(t, "dir/file.bin.part", TempPath("dir/file.bin"))
}
