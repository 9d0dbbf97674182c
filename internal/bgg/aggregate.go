package bgg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// listingKind selects which of a user's listings a collection request asks
// for, mapped to the query flag the collection endpoint expects.
type listingKind string

const (
	listingOwn        listingKind = "own"
	listingWishlist   listingKind = "wishlist"
	listingWantToPlay listingKind = "wanttoplay"
)

// WishlistEntry pairs an item identifier with its wishlist priority.
type WishlistEntry struct {
	ID       int `json:"id"`
	Priority int `json:"priority"`
}

// ProfileView is the full aggregated profile for a BGG user: user details,
// enriched item records for every game the user touches, the per-listing
// identifier sets, and play-log metadata.
type ProfileView struct {
	UserDetails        *User           `json:"userDetails,omitempty"`
	Games              []Item          `json:"games"`
	CollectionIDs      []int           `json:"collectionIDs"`
	WishlistIDs        []int           `json:"wishlistIDs"`
	WantToPlayIDs      []int           `json:"wantToPlayIDs"`
	PreviouslyOwnedIDs []int           `json:"previouslyOwnedIDs"`
	ForTradeIDs        []int           `json:"forTradeIDs"`
	WantIDs            []int           `json:"wantIDs"`
	WantToBuyIDs       []int           `json:"wantToBuyIDs"`
	PreOrderedIDs      []int           `json:"preOrderedIDs"`
	WishlistPriorities []WishlistEntry `json:"wishlistPriorities,omitempty"`
	PlayIDs            []int           `json:"playIDs"`
	Plays              *Plays          `json:"plays,omitempty"`
}

// correlation is per-item user data extracted from listings, sorted by
// numeric identifier before any lookups so the stitch step can binary
// search it against the canonical item sequence.
type correlation struct {
	id    int
	stats UserItemStats
}

// Aggregator orchestrates listing, user and play queries against the
// upstream, unions their identifiers into one bulk fetch, and stitches
// per-item data back onto the canonical records.
type Aggregator struct {
	client *Client
	logger zerolog.Logger
}

// NewAggregator creates an Aggregator on top of client.
func NewAggregator(client *Client, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		client: client,
		logger: logger.With().Str("component", "bgg-aggregator").Logger(),
	}
}

// collectionRequest builds the listing request for one kind. Expansions are
// excluded and the brief form with stats is requested, matching what the
// extraction step consumes.
func collectionRequest(username string, kind listingKind) Request {
	q := url.Values{
		"username":       {username},
		"excludesubtype": {"boardgameexpansion"},
		"brief":          {"1"},
		"stats":          {"1"},
	}
	q.Set(string(kind), "1")
	return Request{Endpoint: "collection", Query: q}
}

// fetchCollection fetches and decodes one listing. A polling give-up yields
// an empty listing rather than an error so one slow listing cannot abort a
// whole aggregation.
func (a *Aggregator) fetchCollection(ctx context.Context, username string, kind listingKind) (*Collection, error) {
	body, err := a.client.Do(ctx, collectionRequest(username, kind))
	if errors.Is(err, ErrTooManyAttempts) {
		return &Collection{}, nil
	}
	if err != nil {
		return nil, err
	}

	var col Collection
	if err := xml.Unmarshal(body, &col); err != nil {
		return nil, fmt.Errorf("failed to decode %s listing: %w", kind, err)
	}
	return &col, nil
}

// CollectionView returns the enriched item records for a user's owned
// collection (the single-listing mode).
func (a *Aggregator) CollectionView(ctx context.Context, username string) ([]Item, error) {
	col, err := a.fetchCollection(ctx, username, listingOwn)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(col.Items))
	for _, ci := range col.Items {
		ids = append(ids, ci.ObjectID)
	}

	items, err := a.client.Things(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		summarizePolls(&items[i])
	}
	return items, nil
}

// profileSources holds the raw upstream responses for a full profile.
type profileSources struct {
	user       *User
	plays      *Plays
	own        *Collection
	wishlist   *Collection
	wantToPlay *Collection
}

// fetchProfileSources issues the five upstream queries concurrently and
// joins before returning; no partial-source aggregation happens.
func (a *Aggregator) fetchProfileSources(ctx context.Context, username string) (*profileSources, error) {
	var (
		src  profileSources
		errs [5]error
		wg   sync.WaitGroup
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		src.user, errs[0] = a.fetchUser(ctx, username)
	}()
	go func() {
		defer wg.Done()
		src.plays, errs[1] = a.fetchPlays(ctx, username)
	}()
	go func() {
		defer wg.Done()
		src.own, errs[2] = a.fetchCollection(ctx, username, listingOwn)
	}()
	go func() {
		defer wg.Done()
		src.wishlist, errs[3] = a.fetchCollection(ctx, username, listingWishlist)
	}()
	go func() {
		defer wg.Done()
		src.wantToPlay, errs[4] = a.fetchCollection(ctx, username, listingWantToPlay)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &src, nil
}

// ProfileView builds the full aggregated profile for a user: all listings,
// plays and user details fetched concurrently, identifiers unioned into a
// single bulk fetch, then per-item user data and poll summaries stitched
// onto the canonical records.
func (a *Aggregator) ProfileView(ctx context.Context, username string) (*ProfileView, error) {
	src, err := a.fetchProfileSources(ctx, username)
	if err != nil {
		return nil, err
	}

	view := &ProfileView{UserDetails: src.user, Plays: src.plays}

	var union []int
	var correlations []correlation

	extract := func(col *Collection, kind listingKind) {
		if col.TotalItems == 0 && len(col.Items) == 0 {
			return
		}
		for _, ci := range col.Items {
			union = append(union, ci.ObjectID)
			switch kind {
			case listingOwn:
				view.CollectionIDs = append(view.CollectionIDs, ci.ObjectID)
			case listingWishlist:
				view.WishlistIDs = append(view.WishlistIDs, ci.ObjectID)
				view.WishlistPriorities = append(view.WishlistPriorities, WishlistEntry{
					ID:       ci.ObjectID,
					Priority: ci.Status.WishlistPriority,
				})
			case listingWantToPlay:
				view.WantToPlayIDs = append(view.WantToPlayIDs, ci.ObjectID)
			}
			// The secondary status flags ride along on whichever listing
			// carried the item.
			if ci.Status.PrevOwned == 1 {
				view.PreviouslyOwnedIDs = append(view.PreviouslyOwnedIDs, ci.ObjectID)
			}
			if ci.Status.ForTrade == 1 {
				view.ForTradeIDs = append(view.ForTradeIDs, ci.ObjectID)
			}
			if ci.Status.Want == 1 {
				view.WantIDs = append(view.WantIDs, ci.ObjectID)
			}
			if ci.Status.WantToBuy == 1 {
				view.WantToBuyIDs = append(view.WantToBuyIDs, ci.ObjectID)
			}
			if ci.Status.PreOrdered == 1 {
				view.PreOrderedIDs = append(view.PreOrderedIDs, ci.ObjectID)
			}
			if rec, ok := extractUserStats(ci, kind); ok {
				correlations = append(correlations, correlation{id: ci.ObjectID, stats: rec})
			}
		}
	}
	extract(src.own, listingOwn)
	extract(src.wishlist, listingWishlist)
	extract(src.wantToPlay, listingWantToPlay)

	// Plays contribute identifiers too; a zero-total plays response
	// contributes nothing.
	if src.plays != nil && src.plays.Total != 0 {
		playIDs := make(map[int]struct{})
		for _, p := range src.plays.Plays {
			playIDs[p.Item.ObjectID] = struct{}{}
		}
		view.PlayIDs = sortedIDs(playIDs)
		union = append(union, view.PlayIDs...)
	}

	// Correlation data is fully collected and sorted exactly once before
	// any binary search runs.
	correlations = dedupeCorrelations(correlations)

	games, err := a.client.Things(ctx, union)
	if err != nil {
		return nil, err
	}

	playIDSet := make(map[int]struct{}, len(view.PlayIDs))
	for _, id := range view.PlayIDs {
		playIDSet[id] = struct{}{}
	}
	thumbnails := make(map[int]string)

	for i := range games {
		game := &games[i]
		summarizePolls(game)
		if rec, ok := lookupCorrelation(correlations, game.ID); ok {
			stats := rec
			game.UserStats = &stats
		}
		if _, ok := playIDSet[game.ID]; ok {
			thumb := game.Thumbnail
			if thumb == "" {
				thumb = "no image available"
			}
			thumbnails[game.ID] = thumb
		}
	}
	view.Games = games

	if view.Plays != nil && len(thumbnails) > 0 {
		view.Plays.ThumbnailURLs = thumbnails
	}

	view.CollectionIDs = sortedUnique(view.CollectionIDs)
	view.WishlistIDs = sortedUnique(view.WishlistIDs)
	view.WantToPlayIDs = sortedUnique(view.WantToPlayIDs)
	view.PreviouslyOwnedIDs = sortedUnique(view.PreviouslyOwnedIDs)
	view.ForTradeIDs = sortedUnique(view.ForTradeIDs)
	view.WantIDs = sortedUnique(view.WantIDs)
	view.WantToBuyIDs = sortedUnique(view.WantToBuyIDs)
	view.PreOrderedIDs = sortedUnique(view.PreOrderedIDs)

	return view, nil
}

// fetchUser fetches a user profile. Give-ups yield a nil user.
func (a *Aggregator) fetchUser(ctx context.Context, username string) (*User, error) {
	body, err := a.client.Do(ctx, Request{
		Endpoint: "user",
		Query: url.Values{
			"name":    {username},
			"buddies": {"1"},
			"guilds":  {"1"},
			"hot":     {"1"},
			"top":     {"1"},
			"domain":  {"boardgame"},
		},
	})
	if errors.Is(err, ErrTooManyAttempts) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user User
	if err := xml.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// fetchPlays fetches a user's logged plays. Give-ups yield nil plays.
func (a *Aggregator) fetchPlays(ctx context.Context, username string) (*Plays, error) {
	body, err := a.client.Do(ctx, Request{
		Endpoint: "plays",
		Query:    url.Values{"username": {username}},
	})
	if errors.Is(err, ErrTooManyAttempts) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var plays Plays
	if err := xml.Unmarshal(body, &plays); err != nil {
		return nil, fmt.Errorf("failed to decode plays: %w", err)
	}
	return &plays, nil
}

// extractUserStats builds a correlation record from a listing entry when it
// carries richer per-item data than a bare identifier.
func extractUserStats(ci CollectionItem, kind listingKind) (UserItemStats, bool) {
	stats := UserItemStats{
		Comment:  ci.Comment,
		NumPlays: ci.NumPlays,
		Owned:    kind == listingOwn && ci.Status.Own == 1,
	}
	if ci.Stats != nil {
		if rating, err := strconv.ParseFloat(ci.Stats.Value, 64); err == nil {
			stats.Rating = rating
		}
	}
	if stats.Rating == 0 && stats.Comment == "" && stats.NumPlays == 0 && !stats.Owned {
		return UserItemStats{}, false
	}
	return stats, true
}

// dedupeCorrelations keeps the first record per identifier and returns the
// result sorted by numeric identifier for binary searching.
func dedupeCorrelations(recs []correlation) []correlation {
	seen := make(map[int]struct{}, len(recs))
	out := recs[:0]
	for _, rec := range recs {
		if _, ok := seen[rec.id]; ok {
			continue
		}
		seen[rec.id] = struct{}{}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b correlation) int { return a.id - b.id })
	return out
}

// lookupCorrelation binary searches recs (sorted by id) for an identifier.
func lookupCorrelation(recs []correlation, id int) (UserItemStats, bool) {
	i, ok := slices.BinarySearchFunc(recs, id, func(rec correlation, target int) int {
		return rec.id - target
	})
	if !ok {
		return UserItemStats{}, false
	}
	return recs[i].stats, true
}

// sortedIDs flattens a set of identifiers into a numerically sorted slice.
func sortedIDs(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// sortedUnique deduplicates and numerically sorts a category identifier list.
func sortedUnique(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return sortedIDs(set)
}
