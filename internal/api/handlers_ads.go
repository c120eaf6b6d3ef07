package api

import (
	"net/http"

	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/models"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

// ──────────────────── AdMob ads ────────────────────
//
// The consumer app reads ad configs without an envelope, so successful
// responses here are bare. Failures still use the envelope.

func (s *Server) handleGetAds(w http.ResponseWriter, r *http.Request, database store.Database) {
	repo := repository.NewAdConfigRepository(database)
	if id := r.URL.Query().Get("id"); id != "" {
		ad, err := repo.GetByID(r.Context(), id)
		if err != nil {
			s.fail(w, r, err, "Ad", "fetch")
			return
		}
		httputil.Bare(w, http.StatusOK, ad)
		return
	}
	ads, err := repo.List(r.Context())
	if err != nil {
		s.fail(w, r, err, "Ad", "fetch")
		return
	}
	httputil.Bare(w, http.StatusOK, ads)
}

func (s *Server) handleUpdateAd(w http.ResponseWriter, r *http.Request, database store.Database) {
	var in models.AdConfigUpdate
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.ID == "" {
		httputil.Error(w, http.StatusBadRequest, "Ad ID is required")
		return
	}
	ad, err := repository.NewAdConfigRepository(database).Update(r.Context(), in.ID, in)
	if err != nil {
		s.fail(w, r, err, "Ad", "update")
		return
	}
	s.invalidate(r.Context())
	httputil.Bare(w, http.StatusOK, ad)
}
