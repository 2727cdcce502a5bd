package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dreschagin/dbops-agent/pkg/logger"
)

var errBadFilename = errors.New("invalid filename")

// DownloadHandler отдает файлы отчетов и резервных копий как вложения
type DownloadHandler struct {
	reportsDir string
	backupsDir string
	logger     *logger.Logger
}

func NewDownloadHandler(reportsDir, backupsDir string, logger *logger.Logger) *DownloadHandler {
	return &DownloadHandler{
		reportsDir: reportsDir,
		backupsDir: backupsDir,
		logger:     logger,
	}
}

// Report GET /download/report/{name}
func (h *DownloadHandler) Report(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.reportsDir)
}

// Backup GET /download/backup/{name}
func (h *DownloadHandler) Backup(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.backupsDir)
}

func (h *DownloadHandler) serve(w http.ResponseWriter, r *http.Request, dir string) {
	name, err := cleanFilename(r.PathValue("name"))
	if err != nil {
		h.logger.Warn("Rejected download", "name", r.PathValue("name"), "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("Failed to open download", err, "path", path)
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// cleanFilename пропускает только голое имя файла внутри каталога
func cleanFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\"`) || filepath.Base(name) != name {
		return "", errBadFilename
	}
	return name, nil
}
