package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mescon/beepwatch/internal/logger"
)

func writeLogFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func recentLogs(t *testing.T, ts *testServer) []logger.LogEntry {
	t.Helper()
	w := ts.do(http.MethodGet, "/api/logs/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []logger.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	return entries
}

func TestHandleRecentLogs_NoLogFile(t *testing.T) {
	ts := newTestServer(t)

	entries := recentLogs(t, ts)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestHandleRecentLogs_WithLogEntries(t *testing.T) {
	ts := newTestServer(t)
	writeLogFile(t, ts.cfg.LogDir, logger.LogFileName,
		"2025-11-24T19:00:00Z [INFO] Server started\n"+
			"\n"+
			"not a log line\n"+
			"2025-11-24T19:00:01Z [WARN] Wake lock request failed: no session bus\n")

	entries := recentLogs(t, ts)
	require.Len(t, entries, 2)
	assert.Equal(t, "2025-11-24T19:00:00Z", entries[0].Timestamp)
	assert.Equal(t, logger.Info, entries[0].Level)
	assert.Equal(t, "Server started", entries[0].Message)
	assert.Equal(t, logger.Warn, entries[1].Level)
	assert.Equal(t, "Wake lock request failed: no session bus", entries[1].Message)
}

func TestHandleRecentLogs_KeepsLast100(t *testing.T) {
	ts := newTestServer(t)
	var b strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "2025-11-24T19:00:00Z [DEBUG] line %d\n", i)
	}
	writeLogFile(t, ts.cfg.LogDir, logger.LogFileName, b.String())

	entries := recentLogs(t, ts)
	require.Len(t, entries, 100)
	assert.Equal(t, "line 50", entries[0].Message)
	assert.Equal(t, "line 149", entries[99].Message)
}

func TestHandleDownloadLogs(t *testing.T) {
	ts := newTestServer(t)
	writeLogFile(t, ts.cfg.LogDir, logger.LogFileName, "2025-11-24T19:00:00Z [INFO] current\n")
	writeLogFile(t, ts.cfg.LogDir, "beepwatch-2025-11-23.log.gz", "rotated")

	w := ts.do(http.MethodGet, "/api/logs/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "beepwatch_logs.zip")

	body := w.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(content)
	}

	assert.Equal(t, "2025-11-24T19:00:00Z [INFO] current\n", files["beepwatch.txt"])
	assert.Equal(t, "rotated", files["beepwatch-2025-11-23.log.gz"])
}

func TestHandleDownloadLogs_NoLogDir(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, os.RemoveAll(ts.cfg.LogDir))

	w := ts.do(http.MethodGet, "/api/logs/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}

func TestArchiveName(t *testing.T) {
	tests := map[string]string{
		"beepwatch.log":                       "beepwatch.txt",
		"beepwatch-2025-11-23T10-00-00.0.log": "beepwatch-2025-11-23T10-00-00.0.txt",
		"beepwatch-2025-11-23.log.gz":         "beepwatch-2025-11-23.log.gz",
		"notes.md":                            "notes.md",
	}
	for in, want := range tests {
		if got := archiveName(in); got != want {
			t.Errorf("archiveName(%q) = %q, want %q", in, got, want)
		}
	}
}
