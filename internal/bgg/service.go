package bgg

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/outstandingcode/gamenight/internal/cache"
)

// Cache keys for the served views. Per-user keys get the username appended.
const (
	keyListingPrefix = "listing-"
	keyProfilePrefix = "profile-"
	keyTrending      = "hot-50"
	keyTopRanked     = "top-100"
)

// TTLs configures how long each view stays cached.
type TTLs struct {
	Listing  time.Duration
	Profile  time.Duration
	Trending time.Duration
	Top      time.Duration
}

// Service exposes the cached BGG views to the HTTP layer. Every call is
// cache-aside: served from cache when fresh, otherwise aggregated from the
// upstream and written back with the view's TTL.
type Service struct {
	agg       *Aggregator
	aside     *cache.Aside
	ttls      TTLs
	browseURL string
	logger    zerolog.Logger
}

// NewService creates a Service.
func NewService(agg *Aggregator, aside *cache.Aside, ttls TTLs, browseURL string, logger zerolog.Logger) *Service {
	return &Service{
		agg:       agg,
		aside:     aside,
		ttls:      ttls,
		browseURL: browseURL,
		logger:    logger.With().Str("component", "bgg-service").Logger(),
	}
}

// ListingView returns the enriched owned-collection records for a user.
func (s *Service) ListingView(ctx context.Context, username string) ([]Item, error) {
	return cache.View(ctx, s.aside, keyListingPrefix+username, s.ttls.Listing,
		func(ctx context.Context) ([]Item, error) {
			return s.agg.CollectionView(ctx, username)
		})
}

// ProfileView returns the full aggregated profile for a user.
func (s *Service) ProfileView(ctx context.Context, username string) (*ProfileView, error) {
	return cache.View(ctx, s.aside, keyProfilePrefix+username, s.ttls.Profile,
		func(ctx context.Context) (*ProfileView, error) {
			return s.agg.ProfileView(ctx, username)
		})
}

// Trending returns the current hot listing.
func (s *Service) Trending(ctx context.Context) ([]Item, error) {
	return cache.View(ctx, s.aside, keyTrending, s.ttls.Trending,
		func(ctx context.Context) ([]Item, error) {
			return s.agg.Trending(ctx)
		})
}

// TopRanked returns the top-ranked games listing.
func (s *Service) TopRanked(ctx context.Context) ([]Item, error) {
	return cache.View(ctx, s.aside, keyTopRanked, s.ttls.Top,
		func(ctx context.Context) ([]Item, error) {
			return s.agg.TopRanked(ctx, s.browseURL)
		})
}
