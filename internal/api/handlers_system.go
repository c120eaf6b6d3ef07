package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/JustinTDCT/SerialDesk/internal/db"
	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/maintenance"
	"github.com/JustinTDCT/SerialDesk/internal/store"
	"github.com/JustinTDCT/SerialDesk/internal/upload"
)

// ──────────────────── Health & status ────────────────────

// handleHealth never touches the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()
	httputil.Bare(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"status":      "healthy",
		"time":        time.Now().UTC(),
		"environment": s.config.AppEnv,
		"port":        s.config.Port,
		"hostname":    hostname,
	})
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	database := dependencyStatus{Status: "ok"}
	h, err := s.provider.Acquire(ctx)
	if err == nil {
		err = h.Ping(ctx)
		_ = s.provider.Release(ctx, h)
	}
	if err != nil {
		database = dependencyStatus{Status: "unavailable", Error: err.Error()}
	}

	cacheStatus := dependencyStatus{Status: "disabled"}
	if s.cache.Enabled() {
		cacheStatus.Status = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			cacheStatus = dependencyStatus{Status: "unavailable", Error: err.Error()}
		}
	}

	httputil.Bare(w, http.StatusOK, map[string]interface{}{
		"status":      "OK",
		"timestamp":   time.Now().UTC(),
		"version":     s.version.Version,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"method":      r.Method,
		"url":         r.URL.String(),
		"environment": s.config.AppEnv,
		"port":        s.config.Port,
		"database":    database,
		"cache":       cacheStatus,
		"cloudflare": map[string]string{
			"connecting_ip": r.Header.Get("CF-Connecting-IP"),
			"ray_id":        r.Header.Get("CF-Ray"),
			"visitor":       r.Header.Get("CF-Visitor"),
		},
	})
}

// ──────────────────── Upload ────────────────────

type uploadResponse struct {
	Success bool `json:"success"`
	*upload.Result
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+1<<20)
	res, err := s.uploads.Save(r)
	switch {
	case errors.Is(err, upload.ErrNoFile), errors.Is(err, upload.ErrTooLarge), errors.Is(err, upload.ErrNotImage):
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.requestLog(r).Error("upload failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	s.requestLog(r).Info("file uploaded", "path", res.FilePath, "size", res.Size, "type", res.Kind)
	httputil.Bare(w, http.StatusOK, uploadResponse{Success: true, Result: res})
}

// ──────────────────── Maintenance ────────────────────

func (s *Server) handleRunMaintenance(w http.ResponseWriter, r *http.Request) {
	task := r.PathValue("task")
	if task == "" {
		task = maintenance.TaskReport
	}
	if s.maintenance == nil || !maintenance.Known(task) {
		httputil.Error(w, http.StatusNotFound, "Unknown maintenance task")
		return
	}
	out, err := s.maintenance.Dispatch(r.Context(), task)
	if err != nil {
		if db.IsConnectionError(err) {
			httputil.Error(w, http.StatusInternalServerError, "Database connection failed")
			return
		}
		s.requestLog(r).Error("maintenance task failed", "task", task, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Failed to run maintenance task")
		return
	}
	if out.Queued {
		httputil.Envelope(w, http.StatusAccepted, out, "Maintenance task queued")
		return
	}
	httputil.Envelope(w, http.StatusOK, out, "Maintenance task completed")
}

func (s *Server) handleMaintenanceReport(w http.ResponseWriter, r *http.Request, database store.Database) {
	rep, err := maintenance.NewRunner(database, s.requestLog(r).Named("maintenance")).Report(r.Context())
	if err != nil {
		s.fail(w, r, err, "Report", "build")
		return
	}
	httputil.Envelope(w, http.StatusOK, rep, "")
}
