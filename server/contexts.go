package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/s0up4200/torrentsnag/candidate"
	"github.com/s0up4200/torrentsnag/matcher"
)

type contextInfo struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Candidates int    `json:"candidates"`
}

func (s *Server) listContexts(w http.ResponseWriter, _ *http.Request) {
	out := []contextInfo{}
	for _, id := range s.deps.Sessions.IDs() {
		sess, ok := s.deps.Sessions.Lookup(id)
		if !ok {
			continue
		}
		out = append(out, contextInfo{ID: id, URL: sess.URL(), Candidates: len(sess.Candidates())})
	}
	s.RespondJSON(w, http.StatusOK, out)
}

func (s *Server) closeContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contextID")
	s.deps.Sessions.Close(id)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ForgetContext(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

type navigateRequest struct {
	URL string `json:"url"`
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !s.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.RespondError(w, http.StatusBadRequest, "url is required")
		return
	}

	sess := s.deps.Sessions.Session(chi.URLParam(r, "contextID"))
	changed := sess.Navigate(req.URL)
	s.RespondJSON(w, http.StatusOK, map[string]any{"changed": changed, "generation": sess.Generation()})
}

type linksRequest struct {
	URL   string         `json:"url,omitempty"`
	Links []matcher.Link `json:"links"`
}

type scanResponse struct {
	Added      int                   `json:"added"`
	Candidates []candidate.Candidate `json:"candidates"`
}

// links receives the hyperlinks of a document. By default the scan is
// debounced; ?now=1 scans immediately and returns the candidates.
func (s *Server) links(w http.ResponseWriter, r *http.Request) {
	var req linksRequest
	if !s.DecodeJSON(w, r, &req) {
		return
	}

	sess := s.deps.Sessions.Session(chi.URLParam(r, "contextID"))
	if req.URL != "" {
		sess.Navigate(req.URL)
	}
	if req.Links == nil {
		req.Links = []matcher.Link{}
	}

	if r.URL.Query().Get("now") != "1" {
		sess.Notify(req.Links)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	added, err := sess.Scan(r.Context(), req.Links)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.RespondJSON(w, http.StatusOK, scanResponse{Added: added, Candidates: sess.Candidates()})
}

func (s *Server) candidates(w http.ResponseWriter, r *http.Request) {
	list := s.deps.Sessions.Candidates(chi.URLParam(r, "contextID"))
	if list == nil {
		list = []candidate.Candidate{}
	}
	s.RespondJSON(w, http.StatusOK, list)
}

func (s *Server) clearCandidates(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.Clear(chi.URLParam(r, "contextID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeCandidate(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.RespondError(w, http.StatusBadRequest, "url is required")
		return
	}

	sess, ok := s.deps.Sessions.Lookup(chi.URLParam(r, "contextID"))
	if !ok || !sess.Remove(url) {
		s.RespondError(w, http.StatusNotFound, "candidate not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dispatchRequest struct {
	URLs   []string `json:"urls"`
	Labels []string `json:"labels,omitempty"`
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if !s.DecodeJSON(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		s.RespondError(w, http.StatusBadRequest, "urls is required")
		return
	}

	res, err := s.deps.Orchestrator.DispatchSelected(r.Context(), req.URLs, chi.URLParam(r, "contextID"), req.Labels)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.RespondJSON(w, http.StatusOK, res)
}

func (s *Server) sendAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Orchestrator.SendAll(r.Context(), chi.URLParam(r, "contextID"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.RespondJSON(w, http.StatusOK, res)
}
