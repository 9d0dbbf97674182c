package bgg

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// profileUpstream fakes the five upstream sources a profile aggregation
// consumes plus the thing endpoint serving the bulk fetch.
func profileUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "collection":
			switch {
			case q.Get("own") == "1":
				w.Write([]byte(`<items totalitems="2">` +
					`<item objectid="100"><status own="1" fortrade="1"/><numplays>12</numplays><stats><rating value="8.5"/></stats></item>` +
					`<item objectid="200"><status own="1" prevowned="1" wanttobuy="1"/><stats><rating value="N/A"/></stats></item>` +
					`</items>`))
			case q.Get("wishlist") == "1":
				w.Write([]byte(`<items totalitems="1">` +
					`<item objectid="300"><status wishlist="1" wishlistpriority="2" want="1"/></item>` +
					`</items>`))
			case q.Get("wanttoplay") == "1":
				w.Write([]byte(`<items totalitems="1">` +
					`<item objectid="400"><status wanttoplay="1" preordered="1"/></item>` +
					`</items>`))
			default:
				t.Errorf("collection request without a listing flag: %s", r.URL.RawQuery)
				w.WriteHeader(http.StatusBadRequest)
			}
		case "user":
			w.Write([]byte(`<user id="42" name="alice"><yearregistered value="2011"/></user>`))
		case "plays":
			w.Write([]byte(`<plays username="alice" userid="42" total="2" page="1">` +
				`<play id="1" date="2024-01-05" quantity="1"><item name="Gloomhaven" objectid="100"/></play>` +
				`<play id="2" date="2024-02-10" quantity="2"><item name="Obscure" objectid="500"/></play>` +
				`</plays>`))
		case "thing":
			var sb strings.Builder
			sb.WriteString(`<items>`)
			for _, id := range parseIDList(t, q.Get("id")) {
				thumb := fmt.Sprintf("<thumbnail>thumb-%d</thumbnail>", id)
				if id == 500 {
					thumb = ""
				}
				fmt.Fprintf(&sb, `<item type="boardgame" id="%d">%s<name type="primary" value="game-%d"/></item>`, id, thumb, id)
			}
			sb.WriteString(`</items>`)
			w.Write([]byte(sb.String()))
		default:
			t.Errorf("unexpected upstream path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestProfileView(t *testing.T) {
	srv := profileUpstream(t)
	defer srv.Close()

	agg := NewAggregator(testClient(t, srv), zerolog.Nop())
	view, err := agg.ProfileView(context.Background(), "alice")
	require.NoError(t, err)

	require.NotNil(t, view.UserDetails)
	require.Equal(t, "alice", view.UserDetails.Name)

	require.Equal(t, []int{100, 200}, view.CollectionIDs)
	require.Equal(t, []int{300}, view.WishlistIDs)
	require.Equal(t, []int{400}, view.WantToPlayIDs)
	require.Equal(t, []int{200}, view.PreviouslyOwnedIDs)
	require.Equal(t, []int{100}, view.ForTradeIDs)
	require.Equal(t, []int{300}, view.WantIDs)
	require.Equal(t, []int{200}, view.WantToBuyIDs)
	require.Equal(t, []int{400}, view.PreOrderedIDs)
	require.Equal(t, []WishlistEntry{{ID: 300, Priority: 2}}, view.WishlistPriorities)
	require.Equal(t, []int{100, 500}, view.PlayIDs)

	// The union covers every listing plus the play-only item.
	require.Len(t, view.Games, 5)

	byID := make(map[int]*Item, len(view.Games))
	for i := range view.Games {
		byID[view.Games[i].ID] = &view.Games[i]
	}

	require.NotNil(t, byID[100].UserStats)
	require.Equal(t, 8.5, byID[100].UserStats.Rating)
	require.Equal(t, 12, byID[100].UserStats.NumPlays)
	require.True(t, byID[100].UserStats.Owned)

	// Item 200 is owned but unrated; ownership alone still correlates.
	require.NotNil(t, byID[200].UserStats)
	require.True(t, byID[200].UserStats.Owned)
	require.Zero(t, byID[200].UserStats.Rating)

	// A bare want-to-play entry carries nothing worth correlating.
	require.Nil(t, byID[400].UserStats)

	require.NotNil(t, view.Plays)
	require.Equal(t, map[int]string{
		100: "thumb-100",
		500: "no image available",
	}, view.Plays.ThumbnailURLs)
}

func TestProfileViewEmptyListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "collection":
			w.Write([]byte(`<items totalitems="0"></items>`))
		case "user":
			w.Write([]byte(`<user id="7" name="ghost"/>`))
		case "plays":
			w.Write([]byte(`<plays username="ghost" userid="7" total="0" page="1"/>`))
		case "thing":
			t.Error("bulk fetch issued for an empty union")
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	agg := NewAggregator(testClient(t, srv), zerolog.Nop())
	view, err := agg.ProfileView(context.Background(), "ghost")
	require.NoError(t, err)

	require.Empty(t, view.Games)
	require.Equal(t, []int{}, view.CollectionIDs)
	require.Equal(t, []int{}, view.WishlistIDs)
	require.Equal(t, []int{}, view.WantToPlayIDs)
	require.Equal(t, []int{}, view.PreviouslyOwnedIDs)
	require.Equal(t, []int{}, view.ForTradeIDs)
	require.Equal(t, []int{}, view.WantIDs)
	require.Equal(t, []int{}, view.WantToBuyIDs)
	require.Equal(t, []int{}, view.PreOrderedIDs)
	require.Empty(t, view.PlayIDs)
}

func TestCollectionViewStillQueuedYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	agg := NewAggregator(testClient(t, srv), zerolog.Nop())
	items, err := agg.CollectionView(context.Background(), "slowpoke")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestDedupeCorrelations(t *testing.T) {
	recs := []correlation{
		{id: 30, stats: UserItemStats{Rating: 7}},
		{id: 10, stats: UserItemStats{Rating: 9}},
		{id: 30, stats: UserItemStats{Rating: 1}},
		{id: 20, stats: UserItemStats{Rating: 5}},
	}

	out := dedupeCorrelations(recs)
	require.Len(t, out, 3)
	require.Equal(t, 10, out[0].id)
	require.Equal(t, 20, out[1].id)
	require.Equal(t, 30, out[2].id)

	// First record per identifier wins.
	require.Equal(t, 7.0, out[2].stats.Rating)

	stats, ok := lookupCorrelation(out, 20)
	require.True(t, ok)
	require.Equal(t, 5.0, stats.Rating)

	_, ok = lookupCorrelation(out, 99)
	require.False(t, ok)
}

func TestSortedUnique(t *testing.T) {
	require.Equal(t, []int{1, 2, 9}, sortedUnique([]int{9, 2, 1, 2, 9}))
	require.Equal(t, []int{}, sortedUnique(nil))
}
