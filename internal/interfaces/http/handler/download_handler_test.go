package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadHandler_ServesAttachment(t *testing.T) {
	reportsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(reportsDir, "database_health_20240101_080000.html"), []byte("<html>ok</html>"), 0o600))
	env := newTestEnv(reportsDir, t.TempDir(), &stubMaintenance{})

	req := httptest.NewRequest(http.MethodGet, "/download/report/database_health_20240101_080000.html", nil)
	req.SetPathValue("name", "database_health_20240101_080000.html")
	rec := httptest.NewRecorder()
	env.download.Report(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="database_health_20240101_080000.html"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "<html>ok</html>", rec.Body.String())
}

func TestDownloadHandler_Rejects(t *testing.T) {
	backupsDir := t.TempDir()
	env := newTestEnv(t.TempDir(), backupsDir, &stubMaintenance{})
	require.NoError(t, os.Mkdir(filepath.Join(backupsDir, "nested"), 0o755))

	tests := []struct {
		name   string
		file   string
		status int
	}{
		{"empty", "", http.StatusBadRequest},
		{"parent traversal", "../secret.sql", http.StatusBadRequest},
		{"dot dot inside", "backup..sql", http.StatusBadRequest},
		{"backslash", `..\\secret.sql`, http.StatusBadRequest},
		{"missing file", "manual_backup_20240101_000000.sql", http.StatusNotFound},
		{"directory", "nested", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/download/backup/x", nil)
			req.SetPathValue("name", tt.file)
			rec := httptest.NewRecorder()
			env.download.Backup(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
