package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleCollection returns the enriched owned-collection listing for a
// BGG username. No authorization required.
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	collection, err := s.games.ListingView(r.Context(), username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": collection})
}

// handleUser returns the full aggregated profile for a BGG username.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	userData, err := s.games.ProfileView(r.Context(), username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userData": userData})
}

// handleTrending returns the hot listing.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.Trending(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

// handleTopRanked returns the top-ranked listing.
func (s *Server) handleTopRanked(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.TopRanked(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}
