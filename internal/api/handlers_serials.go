package api

import (
	"net/http"

	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

// ──────────────────── Serials ────────────────────

func (s *Server) handleGetSerials(w http.ResponseWriter, r *http.Request, database store.Database) {
	repo := repository.NewSerialRepository(database)
	if id := r.URL.Query().Get("id"); id != "" {
		serial, err := repo.GetByID(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "Serial", "fetch")
			return
		}
		httputil.Envelope(w, http.StatusOK, serial, "")
		return
	}
	serials, err := repo.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "Serial", "fetch")
		return
	}
	httputil.Envelope(w, http.StatusOK, serials, "")
}

func (s *Server) handleCreateSerial(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.SerialCreate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	serial, err := repository.NewSerialRepository(database).Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, "Serial", "create")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusCreated, serial, "Serial created successfully")
}

func (s *Server) handleUpdateSerial(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.SerialUpdate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := firstNonEmpty(in.ID, r.URL.Query().Get("id"))
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Serial ID is required")
		return
	}
	serial, err := repository.NewSerialRepository(database).Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err, "Serial", "update")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, serial, "Serial updated successfully")
}

func (s *Server) handleDeleteSerial(w http.ResponseWriter, r *http.Request, database store.Database) {
	id, err := bodyOrQueryID(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Serial ID is required")
		return
	}
	if err := repository.NewSerialRepository(database).Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, "Serial", "delete")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, nil, "Serial deleted successfully")
}
