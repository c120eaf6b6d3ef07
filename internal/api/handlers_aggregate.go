package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/JustinTDCT/SerialDesk/internal/httputil"
	"github.com/JustinTDCT/SerialDesk/internal/repository"
	"github.com/JustinTDCT/SerialDesk/internal/store"
)

type allDataResponse struct {
	Success   bool                     `json:"success"`
	Data      repository.SnapshotData  `json:"data"`
	Stats     repository.SnapshotStats `json:"stats"`
	Timestamp time.Time                `json:"timestamp"`
}

// cachedSnapshot is what the snapshot cache stores: the encoded response and
// its validator.
type cachedSnapshot struct {
	ETag string          `json:"etag"`
	Body json.RawMessage `json:"body"`
}

// handleGetAllData serves every collection in one response. The ETag covers
// data and stats only, so an unchanged catalog revalidates even though the
// timestamp moves. A snapshot is cached under the generation read before it
// was loaded, so a write landing mid-load cannot be masked.
func (s *Server) handleGetAllData(w http.ResponseWriter, r *http.Request, database store.Database) {
	raw, gen, ok := s.cache.Get(r.Context())
	if ok {
		var hit cachedSnapshot
		if err := json.Unmarshal(raw, &hit); err == nil {
			s.metrics.CacheHit()
			s.writeSnapshot(w, r, hit)
			return
		}
	}
	if s.cache.Enabled() {
		s.metrics.CacheMiss()
	}

	snap, err := repository.NewSnapshotRepository(database).Load(r.Context())
	if err != nil {
		s.requestLog(r).Error("snapshot load failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Failed to fetch data")
		return
	}
	entry, err := encodeSnapshot(snap)
	if err != nil {
		s.requestLog(r).Error("snapshot encode failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Failed to fetch data")
		return
	}
	if s.cache.Enabled() {
		if encoded, err := json.Marshal(entry); err == nil {
			s.cache.Set(r.Context(), gen, encoded)
		}
	}
	s.writeSnapshot(w, r, entry)
}

func encodeSnapshot(snap *repository.Snapshot) (cachedSnapshot, error) {
	validated, err := json.Marshal(struct {
		Data  repository.SnapshotData  `json:"data"`
		Stats repository.SnapshotStats `json:"stats"`
	}{snap.Data, snap.Stats})
	if err != nil {
		return cachedSnapshot{}, err
	}
	body, err := json.Marshal(allDataResponse{
		Success:   true,
		Data:      snap.Data,
		Stats:     snap.Stats,
		Timestamp: snap.Timestamp,
	})
	if err != nil {
		return cachedSnapshot{}, err
	}
	return cachedSnapshot{ETag: httputil.ETag(validated), Body: body}, nil
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, entry cachedSnapshot) {
	w.Header().Set("ETag", entry.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if httputil.NotModified(r, entry.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(entry.Body)
}
