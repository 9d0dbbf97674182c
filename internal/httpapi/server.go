// Package httpapi is the HTTP surface of the server: routing, middleware,
// and the handlers over the BGG views and the quick-filter repository.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/outstandingcode/gamenight/internal/bgg"
	"github.com/outstandingcode/gamenight/internal/cache"
	"github.com/outstandingcode/gamenight/internal/filters"
)

// GameService is the BGG view surface the handlers depend on.
type GameService interface {
	ListingView(ctx context.Context, username string) ([]bgg.Item, error)
	ProfileView(ctx context.Context, username string) (*bgg.ProfileView, error)
	Trending(ctx context.Context) ([]bgg.Item, error)
	TopRanked(ctx context.Context) ([]bgg.Item, error)
}

// FilterStore is the quick-filter surface the handlers depend on.
type FilterStore interface {
	Add(ctx context.Context, username, filterName string, settings json.RawMessage) (*filters.QuickFilter, error)
	List(ctx context.Context) ([]filters.QuickFilter, error)
	ListForUser(ctx context.Context, username string) ([]filters.QuickFilter, error)
	Get(ctx context.Context, id int64) (*filters.QuickFilter, error)
	Update(ctx context.Context, id int64, params filters.UpdateParams) (*filters.QuickFilter, error)
	Remove(ctx context.Context, id int64) error
}

// CacheStatus reports shared cache availability for the readiness endpoint.
type CacheStatus interface {
	Available() bool
	State() cache.State
}

// Options configures a Server.
type Options struct {
	ClientOrigin string
	SecretKey    string
	RateLimit    int
}

// Server wires the routes, middleware and handlers.
type Server struct {
	games     GameService
	store     FilterStore
	status    CacheStatus
	validate  *validator.Validate
	logger    zerolog.Logger
	secretKey string
	opts      Options
}

// NewServer creates a Server.
func NewServer(games GameService, store FilterStore, status CacheStatus, opts Options, logger zerolog.Logger) *Server {
	return &Server{
		games:     games,
		store:     store,
		status:    status,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "httpapi").Logger(),
		secretKey: opts.SecretKey,
		opts:      opts,
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.opts.ClientOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	if s.opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
	}
	r.Use(s.authenticate)

	r.Get("/healthz", s.handleHealth)
	r.Get("/cache-ready", s.handleCacheReady)

	r.Route("/bgg", func(r chi.Router) {
		r.Get("/collection/{username}", s.handleCollection)
		r.Get("/user/{username}", s.handleUser)
		r.Get("/hot", s.handleTrending)
		r.Get("/top", s.handleTopRanked)
	})

	r.Route("/quick-filters", func(r chi.Router) {
		r.With(requireLoggedIn).Post("/", s.handleCreateFilter)
		r.With(requireAdmin).Get("/", s.handleListFilters)
		r.With(requireSelfOrAdmin("username")).Get("/user/{username}", s.handleListUserFilters)
		r.With(requireAdmin).Get("/id/{id}", s.handleGetFilter)
		r.With(requireLoggedIn).Patch("/id/{id}", s.handleUpdateFilter)
		r.With(requireLoggedIn).Delete("/id/{id}", s.handleDeleteFilter)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCacheReady reports shared cache readiness, mirroring what the
// caching layer consults internally.
func (s *Server) handleCacheReady(w http.ResponseWriter, _ *http.Request) {
	state := s.status.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":              s.status.Available(),
		"state":              state.String(),
		"usingLocalCache":    !s.status.Available(),
		"sharedCacheEnabled": state != cache.StateDisabled,
	})
}
