package api

import (
	"net/http"

	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

// ──────────────────── Notices ────────────────────

func (s *Server) handleGetNotices(w http.ResponseWriter, r *http.Request, database store.Database) {
	repo := repository.NewNoticeRepository(database)
	if id := r.URL.Query().Get("id"); id != "" {
		notice, err := repo.GetByID(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "Notice", "fetch")
			return
		}
		httputil.Envelope(w, http.StatusOK, notice, "")
		return
	}
	notices, err := repo.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "Notice", "fetch")
		return
	}
	httputil.Envelope(w, http.StatusOK, notices, "")
}

func (s *Server) handleCreateNotice(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.NoticeCreate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	notice, err := repository.NewNoticeRepository(database).Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, "Notice", "create")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusCreated, notice, "")
}

func (s *Server) handleUpdateNotice(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.NoticeUpdate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := firstNonEmpty(in.DocID, in.ID, r.URL.Query().Get("id"))
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Notice ID is required")
		return
	}
	notice, err := repository.NewNoticeRepository(database).Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err, "Notice", "update")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, notice, "")
}

func (s *Server) handleDeleteNotice(w http.ResponseWriter, r *http.Request, database store.Database) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Notice ID is required")
		return
	}
	if err := repository.NewNoticeRepository(database).Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, "Notice", "delete")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, nil, "Notice deleted successfully")
}
