package api

import (
	"net/http"

	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

// ──────────────────── Episodes ────────────────────

// handleGetEpisodes serves one episode by id, one serial's episodes newest
// number first, or every episode newest release first.
func (s *Server) handleGetEpisodes(w http.ResponseWriter, r *http.Request, database store.Database) {
	repo := repository.NewEpisodeRepository(database)
	q := r.URL.Query()
	if id := q.Get("id"); id != "" {
		episode, err := repo.GetByID(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "Episode", "fetch")
			return
		}
		httputil.Envelope(w, http.StatusOK, episode, "")
		return
	}
	episodes, err := repo.List(r.Context(), q.Get("serial_id"))
	if err != nil {
		s.fail(w, r, err, "Episode", "fetch")
		return
	}
	httputil.Envelope(w, http.StatusOK, episodes, "")
}

func (s *Server) handleCreateEpisode(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.EpisodeCreate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	episode, err := repository.NewEpisodeRepository(database).Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, "Episode", "create")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusCreated, episode, "Episode created successfully")
}

func (s *Server) handleUpdateEpisode(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.EpisodeUpdate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := firstNonEmpty(r.URL.Query().Get("id"), in.ID)
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Episode ID is required")
		return
	}
	episode, err := repository.NewEpisodeRepository(database).Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err, "Episode", "update")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, episode, "Episode updated successfully")
}

func (s *Server) handleDeleteEpisode(w http.ResponseWriter, r *http.Request, database store.Database) {
	id := r.URL.Query().Get("id")
	if id == "" {
		var err error
		if id, err = bodyOrQueryID(r); err != nil {
			httputil.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Episode ID is required")
		return
	}
	if err := repository.NewEpisodeRepository(database).Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, "Episode", "delete")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, nil, "Episode deleted successfully")
}
