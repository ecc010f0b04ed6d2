package task

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// TempSuffix names the temporary payload file next to the target.
const TempSuffix = ".part"

// TempPath returns the temporary payload path for a target path.
func TempPath(fullPath string) string {
	return fullPath + TempSuffix
}

// FileNameFromURL returns the last path segment of rawURL, or "" when the
// URL has no usable segment (no path, a trailing slash, "." or "..").
// The query string is never part of the name.
func FileNameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i != -1 {
		p = p[:i]
	}

	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	name := path.Base(p)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// DefaultDirectory derives a destination directory for rawURL under base
// from the URL's path, e.g. https://host/a/b/file.bin -> base/a/b.
func DefaultDirectory(base, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return base
	}
	dir := path.Dir(path.Clean("/" + u.Path))
	return filepath.Join(base, filepath.FromSlash(dir))
}
