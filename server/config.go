package server

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/s0up4200/torrentsnag/handlers"
	"github.com/s0up4200/torrentsnag/settings"
)

type handlersResponse struct {
	Handlers []handlers.Descriptor `json:"handlers"`
	Selected string                `json:"selected"`
}

func (s *Server) listHandlers(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.RespondJSON(w, http.StatusOK, handlersResponse{Handlers: handlers.Available(), Selected: cfg.SelectedHandler})
}

type selectRequest struct {
	Type string `json:"type"`
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !s.DecodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Settings.SelectHandler(r.Context(), req.Type); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	var req settings.HandlerConfig
	if !s.DecodeJSON(w, r, &req) {
		return
	}
	err := s.deps.Settings.UpdateHandler(r.Context(), chi.URLParam(r, "type"), func(cfg *settings.HandlerConfig) {
		*cfg = req
	})
	if err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// testHandler tests the posted configuration, or the stored one when the body
// is empty.
func (s *Server) testHandler(w http.ResponseWriter, r *http.Request) {
	var cfg *settings.HandlerConfig
	if !s.DecodeJSONOptional(w, r, &cfg) {
		return
	}

	res := s.deps.Orchestrator.TestHandler(r.Context(), chi.URLParam(r, "type"), cfg)
	s.RespondJSON(w, http.StatusOK, res)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.RespondJSON(w, http.StatusOK, cfg)
}

func (s *Server) exportSettings(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Settings.Export(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="torrent-snag-settings-`+time.Now().Format("2006-01-02")+`.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) importSettings(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		s.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	summary, err := s.deps.Settings.Import(r.Context(), data)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.RespondJSON(w, http.StatusOK, summary)
}
