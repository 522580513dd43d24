package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/PriceImport/internal/core"
	"github.com/JonMunkholm/PriceImport/internal/logging"
	"github.com/JonMunkholm/PriceImport/internal/report"
	"github.com/JonMunkholm/PriceImport/internal/source"
)

var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
	errNotFinished  = errors.New("import is still running")
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// UploadResponse is returned when an import is accepted.
type UploadResponse struct {
	ImportID  string `json:"import_id"`
	StatusURL string `json:"status_url"`
	ReportURL string `json:"report_url"`
}

// handleUpload accepts a multipart price file and starts an import.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, fmt.Errorf("%w: %v", errFileTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		respondError(w, r, fmt.Errorf("%w: %d bytes (max %d)", errFileTooLarge, header.Size, maxSize), http.StatusRequestEntityTooLarge)
		return
	}

	format, err := uploadFormat(r.FormValue("format"), header.Filename)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	behavior, err := core.ParseBehavior(formValue(r, "behavior", s.cfg.Import.Behavior))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	scoped := formBool(r, "scoped", s.cfg.Import.Scoped)
	dryRun := formBool(r, "dry_run", false)

	path, err := s.saveUpload(file, format)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	src, err := source.Open(path, source.Options{
		Format:    format,
		Columns:   core.Columns(scoped),
		BunchSize: s.cfg.Import.BunchSize,
		Sheet:     r.FormValue("sheet"),
	})
	if err != nil {
		os.Remove(path)
		respondError(w, r, err, statusFor(err))
		return
	}

	id, err := s.service.StartImport(r.Context(), core.ImportRequest{
		FileName: header.Filename,
		Source:   src,
		Cleanup: func() error {
			err := src.Close()
			os.Remove(path)
			return err
		},
		Behavior: behavior,
		Scoped:   scoped,
		DryRun:   dryRun,
	})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("import accepted",
		"import_id", id,
		"file", header.Filename,
		"size", header.Size,
		"behavior", string(behavior),
		"scoped", scoped,
		"dry_run", dryRun,
	)
	writeJSON(w, http.StatusAccepted, UploadResponse{
		ImportID:  id,
		StatusURL: "/api/imports/" + id,
		ReportURL: "/imports/" + id,
	})
}

// saveUpload copies the upload to a temp file so the run can outlive the request.
func (s *Server) saveUpload(file io.Reader, format source.Format) (string, error) {
	tmp, err := os.CreateTemp(s.cfg.Server.UploadDir, "priceimport-*."+string(format))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store upload: %w", err)
	}
	return tmp.Name(), nil
}

func uploadFormat(explicit, fileName string) (source.Format, error) {
	if explicit != "" {
		return source.ParseFormat(explicit)
	}
	return source.DetectFormat(fileName)
}

func formValue(r *http.Request, key, fallback string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return fallback
}

func formBool(r *http.Request, key string, fallback bool) bool {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v == "on" || v == "yes"
	}
	return b
}

// handleGetImport returns progress, and the summary once finished.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetImport(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleCancelImport cancels a running import.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")
	if err := s.service.CancelImport(id); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"import_id": id, "status": "cancelling"})
}

// handleExportErrors downloads the row errors of a finished import.
func (s *Server) handleExportErrors(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	run, err := s.service.GetImport(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if run.Summary == nil {
		respondErrorJSON(w, core.UserMessage{
			Message: "The import has not finished yet.",
			Action:  "Wait for the import to complete and try again.",
			Code:    "IMP005",
		}, http.StatusConflict)
		logging.FromContext(r.Context()).Warn("error export requested early", "import_id", run.ID, "error", errNotFinished)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.FileName(run.ID)))
	if err := report.Write(w, format, report.Lines(*run.Summary)); err != nil {
		logging.FromContext(r.Context()).Error("error export failed", "import_id", run.ID, "error", err)
	}
}

// ImportList is the body of GET /api/imports.
type ImportList struct {
	Active  []core.ImportRun    `json:"active"`
	History []core.HistoryEntry `json:"history"`
}

// handleListImports returns tracked runs and persisted history.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	history, err := s.service.RecentImports(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []core.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, ImportList{Active: s.service.ListImports(), History: history})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string             `json:"status"`
	Database string             `json:"database"`
	Imports  core.LimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "disabled", Imports: s.service.LimiterStatus()}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check: database unreachable", "error", err)
			resp.Status, resp.Database = "degraded", "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, status, resp)
}

// handleReport renders the HTML report page of an import.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetImport(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ImportReport(run).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render report", "import_id", run.ID, "error", err)
	}
}
