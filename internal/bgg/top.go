package bgg

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Trending returns the current hot listing with full item details. The hot
// endpoint only yields ranks and identifiers, so a bulk thing fetch fills
// in the records and the hotness rank is stitched back on by identifier.
func (a *Aggregator) Trending(ctx context.Context) ([]Item, error) {
	body, err := a.client.Do(ctx, Request{
		Endpoint: "hot",
		Query:    url.Values{"type": {"boardgame"}},
	})
	if err != nil {
		return nil, err
	}

	var hot HotList
	if err := xml.Unmarshal(body, &hot); err != nil {
		return nil, fmt.Errorf("failed to decode hot listing: %w", err)
	}

	ranks := make(map[int]int, len(hot.Items))
	ids := make([]int, 0, len(hot.Items))
	for _, hi := range hot.Items {
		ranks[hi.ID] = hi.Rank
		ids = append(ids, hi.ID)
	}

	items, err := a.client.Things(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].HotnessRank = ranks[items[i].ID]
		summarizePolls(&items[i])
	}
	return items, nil
}

// TopRanked returns the top-ranked games. There is no API endpoint for the
// overall ranking, so the identifiers are scraped from the public browse
// page and the records fetched through the bulk fetcher.
func (a *Aggregator) TopRanked(ctx context.Context, browseURL string) ([]Item, error) {
	page, err := a.client.GetRaw(ctx, browseURL)
	if err != nil {
		return nil, err
	}

	ids := scrapeBrowseIDs(page)
	if len(ids) == 0 {
		a.logger.Warn().Str("url", browseURL).Msg("browse page yielded no identifiers")
		return nil, nil
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

// scrapeBrowseIDs extracts item identifiers from the browse page's primary
// links, which look like <a class="primary" href="/boardgame/174430/...">.
func scrapeBrowseIDs(page []byte) []int {
	var ids []int
	tokenizer := html.NewTokenizer(bytes.NewReader(page))

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return ids
		}
		if tt != html.StartTagToken {
			continue
		}

		name, hasAttr := tokenizer.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}

		var href string
		primary := false
		for {
			key, val, more := tokenizer.TagAttr()
			switch string(key) {
			case "class":
				primary = string(val) == "primary"
			case "href":
				href = string(val)
			}
			if !more {
				break
			}
		}
		if !primary {
			continue
		}

		if id, ok := parseBoardgameHref(href); ok {
			ids = append(ids, id)
		}
	}
}

// parseBoardgameHref pulls the identifier out of a /boardgame/<id>/<slug>
// path.
func parseBoardgameHref(href string) (int, bool) {
	rest, ok := strings.CutPrefix(href, "/boardgame/")
	if !ok {
		return 0, false
	}
	idPart, _, _ := strings.Cut(rest, "/")
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, false
	}
	return id, true
}
