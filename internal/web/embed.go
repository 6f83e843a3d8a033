// Package web holds the browser dashboard served next to the API.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// IndexFile is the dashboard entry point.
const IndexFile = "index.html"

//go:embed all:static
var embeddedFS embed.FS

var (
	subOnce sync.Once
	subFS   fs.FS
)

// GetFS returns the dashboard assets rooted at the static directory, so
// callers open "index.html" rather than "static/index.html". When dir is set
// and holds an index.html it is served from disk instead, for dashboard work
// without rebuilding.
func GetFS(dir string) fs.FS {
	if dir != "" {
		if _, err := os.Stat(filepath.Join(dir, IndexFile)); err == nil {
			return os.DirFS(dir)
		}
	}
	subOnce.Do(func() {
		sub, err := fs.Sub(embeddedFS, "static")
		if err == nil {
			subFS = sub
		}
	})
	return subFS
}

// GetHTTPFS returns GetFS(dir) as an http.FileSystem, or nil without assets.
func GetHTTPFS(dir string) http.FileSystem {
	fsys := GetFS(dir)
	if fsys == nil {
		return nil
	}
	return http.FS(fsys)
}

// HasIndex reports whether fsys contains the dashboard entry point.
func HasIndex(fsys fs.FS) bool {
	if fsys == nil {
		return false
	}
	_, err := fs.Stat(fsys, IndexFile)
	return err == nil
}

// ListFiles returns every file in fsys, for debug logging.
func ListFiles(fsys fs.FS) []string {
	if fsys == nil {
		return nil
	}
	var files []string
	_ = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files
}
