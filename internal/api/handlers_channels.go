package api

import (
	"net/http"

	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

// ──────────────────── Channels ────────────────────

func (s *Server) handleGetChannels(w http.ResponseWriter, r *http.Request, database store.Database) {
	repo := repository.NewChannelRepository(database)
	if id := r.URL.Query().Get("id"); id != "" {
		channel, err := repo.GetByID(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "Channel", "fetch")
			return
		}
		httputil.Envelope(w, http.StatusOK, channel, "")
		return
	}
	channels, err := repo.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "Channel", "fetch")
		return
	}
	httputil.Envelope(w, http.StatusOK, channels, "")
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.ChannelCreate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	channel, err := repository.NewChannelRepository(database).Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, "Channel", "create")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusCreated, channel, "")
}

func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.ChannelUpdate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := firstNonEmpty(in.DocID, in.ID, r.URL.Query().Get("id"))
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Channel ID is required")
		return
	}
	channel, err := repository.NewChannelRepository(database).Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err, "Channel", "update")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, channel, "")
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request, database store.Database) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.Error(w, http.StatusBadRequest, "Channel ID is required")
		return
	}
	if err := repository.NewChannelRepository(database).Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, "Channel", "delete")
		return
	}
	s.invalidate(r.Context())
	httputil.Envelope(w, http.StatusOK, nil, "Channel deleted successfully")
}

// idBody is the optional body of a DELETE that names its target.
type idBody struct {
	ID string `json:"id"`
}

// bodyOrQueryID reads id from the JSON body, falling back to the query.
func bodyOrQueryID(r *http.Request) (string, error) {
	var body idBody
	if err := httputil.ReadJSON(r, &body); err != nil {
		return "", err
	}
	return firstNonEmpty(body.ID, r.URL.Query().Get("id")), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
