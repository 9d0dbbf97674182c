package httpapi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/outstandingcode/gamenight/internal/bgg"
	"github.com/outstandingcode/gamenight/internal/filters"
)

// errorBody is the error envelope every failed request returns.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
	Status   int      `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignored: the status line is already gone, nothing useful to do.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, extra ...string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Message:  message,
		Messages: extra,
		Status:   status,
	}})
}

// writeDomainError maps domain errors onto HTTP responses. Upstream
// provider errors carry their status through; repository errors map to 404
// and 400; anything unrecognized is a 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var upstream *bgg.UpstreamError
	switch {
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		message := "upstream error"
		if len(upstream.Messages) > 0 {
			message = upstream.Messages[0]
		}
		writeError(w, status, message, upstream.Messages...)

	case errors.Is(err, filters.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, filters.ErrDuplicate), errors.Is(err, filters.ErrNoFields):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
