package api

import (
	"archive/zip"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/logger"
)

const recentLogLines = 100

// handleRecentLogs returns the newest log file entries, oldest first.
func (s *RESTServer) handleRecentLogs(c *gin.Context) {
	entries, err := logger.Recent(s.cfg.LogDir, recentLogLines)
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, "Failed to read log file", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// handleDownloadLogs streams the current and rotated log files as a zip.
func (s *RESTServer) handleDownloadLogs(c *gin.Context) {
	files, err := os.ReadDir(s.cfg.LogDir)
	if err != nil && !os.IsNotExist(err) {
		abortJSON(c, http.StatusInternalServerError, "Failed to list log files", err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=beepwatch_logs.zip")
	c.Header("Content-Type", "application/zip")
	c.Status(http.StatusOK)

	zw := zip.NewWriter(c.Writer)
	for _, f := range files {
		if !f.Type().IsRegular() {
			continue
		}
		if err := addToZip(zw, filepath.Join(s.cfg.LogDir, f.Name()), archiveName(f.Name())); err != nil {
			// Headers are gone; the client gets a truncated archive
			logger.Errorf("Failed to zip %s: %v", f.Name(), err)
			break
		}
	}
	if err := zw.Close(); err != nil {
		logger.Errorf("Failed to finish log archive: %v", err)
	}
}

// archiveName renames plain .log files to .txt so they open on any desktop.
// Compressed backups keep their name.
func archiveName(name string) string {
	if base, ok := strings.CutSuffix(name, ".log"); ok {
		return base + ".txt"
	}
	return name
}

func addToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
