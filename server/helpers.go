package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/backend"
	"github.com/s0up4200/torrentsnag/labelrule"
	"github.com/s0up4200/torrentsnag/orchestrator"
	"github.com/s0up4200/torrentsnag/session"
	"github.com/s0up4200/torrentsnag/settings"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// RespondJSON sends a JSON response
func (s *Server) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// RespondError sends an error response
func (s *Server) RespondError(w http.ResponseWriter, status int, message string) {
	s.RespondJSON(w, status, ErrorResponse{Error: message})
}

// respondErr maps err onto a status code.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var validation *settings.ValidationError
	var compilation *labelrule.CompilationError

	switch {
	case backend.IsConfiguration(err):
		status = http.StatusConflict
	case backend.IsAuthentication(err):
		status = http.StatusUnauthorized
	case backend.IsNetwork(err):
		status = http.StatusBadGateway
	case errors.Is(err, orchestrator.ErrNoLinks):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrScanInProgress), errors.Is(err, session.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, settings.ErrRuleNotFound):
		status = http.StatusNotFound
	case errors.As(err, &validation),
		errors.As(err, &compilation),
		errors.Is(err, settings.ErrBuiltinRule),
		errors.Is(err, settings.ErrMissingName),
		errors.Is(err, settings.ErrUnknownHandler),
		errors.Is(err, settings.ErrMissingSettings),
		errors.Is(err, settings.ErrWrongApplication):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}

	s.RespondJSON(w, status, ErrorResponse{Error: err.Error(), Suggestions: backend.SuggestionsFor(err)})
}

// DecodeJSON decodes the request body into the provided struct.
// Returns false if decoding fails (error already sent to client).
func (s *Server) DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		s.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// DecodeJSONOptional accepts an empty body.
func (s *Server) DecodeJSONOptional(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		s.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// requestLogger logs every request at debug level.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
