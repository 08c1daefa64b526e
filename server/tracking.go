package server

import (
	"net/http"
	"time"

	"github.com/s0up4200/torrentsnag/tracker"
)

type trackingResponse struct {
	Count      int          `json:"count"`
	MaxEntries int          `json:"maxEntries"`
	Meta       tracker.Meta `json:"meta"`
}

func (s *Server) trackingStats(w http.ResponseWriter, r *http.Request) {
	t := s.deps.Tracker
	s.RespondJSON(w, http.StatusOK, trackingResponse{
		Count:      t.Count(r.Context()),
		MaxEntries: t.MaxEntries(),
		Meta:       t.Meta(r.Context()),
	})
}

type compactRequest struct {
	MaxAgeDays int `json:"maxAgeDays,omitempty"`
	MaxEntries int `json:"maxEntries,omitempty"`
}

func (s *Server) compactTracking(w http.ResponseWriter, r *http.Request) {
	var req compactRequest
	if !s.DecodeJSONOptional(w, r, &req) {
		return
	}

	var maxAge time.Duration
	if req.MaxAgeDays > 0 {
		maxAge = time.Duration(req.MaxAgeDays) * 24 * time.Hour
	}

	removed := s.deps.Tracker.Compact(r.Context(), maxAge, req.MaxEntries)
	s.RespondJSON(w, http.StatusOK, map[string]int{
		"removed": removed,
		"count":   s.deps.Tracker.Count(r.Context()),
	})
}

func (s *Server) clearTracking(w http.ResponseWriter, r *http.Request) {
	s.deps.Tracker.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
