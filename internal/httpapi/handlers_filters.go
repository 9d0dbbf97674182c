package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/outstandingcode/gamenight/internal/filters"
)

type createFilterRequest struct {
	Username       string          `json:"username" validate:"required,max=64"`
	FilterName     string          `json:"filterName" validate:"required,max=128"`
	FilterSettings json.RawMessage `json:"filterSettings" validate:"required"`
}

type updateFilterRequest struct {
	FilterName     *string         `json:"filterName" validate:"omitempty,min=1,max=128"`
	FilterSettings json.RawMessage `json:"filterSettings"`
}

// handleCreateFilter adds a quick filter. Any logged-in user may create
// filters for themselves.
func (s *Server) handleCreateFilter(w http.ResponseWriter, r *http.Request) {
	var req createFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, _ := identityFrom(r.Context())
	if !id.IsAdmin && req.Username != id.Username {
		writeError(w, http.StatusUnauthorized, "cannot create filters for another user")
		return
	}

	filter, err := s.store.Add(r.Context(), req.Username, req.FilterName, req.FilterSettings)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"quickFilter": filter})
}

// handleListFilters returns every quick filter. Admin only.
func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quickFilters": all})
}

// handleListUserFilters returns one user's quick filters. Admin or the
// user themselves.
func (s *Server) handleListUserFilters(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	userFilters, err := s.store.ListForUser(r.Context(), username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quickFilters": userFilters})
}

// handleGetFilter returns one quick filter by id. Admin only.
func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	filter, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quickFilter": filter})
}

// handleUpdateFilter partially updates a quick filter. The caller must be
// an admin or own the filter, which requires loading it first.
func (s *Server) handleUpdateFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req updateFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.authorizeFilterAccess(w, r, id) {
		return
	}

	filter, err := s.store.Update(r.Context(), id, filters.UpdateParams{
		FilterName:     req.FilterName,
		FilterSettings: req.FilterSettings,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quickFilter": filter})
}

// handleDeleteFilter removes a quick filter. Admin or owner.
func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if !s.authorizeFilterAccess(w, r, id) {
		return
	}

	if err := s.store.Remove(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// authorizeFilterAccess loads the filter and checks the caller may touch
// it. Writes the error response itself when access is denied.
func (s *Server) authorizeFilterAccess(w http.ResponseWriter, r *http.Request, id int64) bool {
	filter, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return false
	}

	caller, _ := identityFrom(r.Context())
	if !caller.IsAdmin && filter.Username != caller.Username {
		writeError(w, http.StatusUnauthorized, "access denied")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
