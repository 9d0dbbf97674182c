package bgg

import (
	"context"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// thingChunkSize is BGG's hard limit on identifiers per thing request.
const thingChunkSize = 20

// Things fetches detailed item records for a set of identifiers. The input
// is deduplicated, split into chunks of at most thingChunkSize, and the
// chunks are fetched concurrently. The merged result preserves chunk
// submission order; within a chunk, provider response order. A chunk that
// fails or decodes to nothing contributes nothing — partial results are
// preferred over failing the whole fetch.
func (c *Client) Things(ctx context.Context, ids []int) ([]Item, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := chunkIDs(ids, thingChunkSize)
	results := make([][]Item, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []int) {
			defer wg.Done()
			items, err := c.fetchThingChunk(ctx, chunk)
			if err != nil {
				c.logger.Warn().
					Err(err).
					Int("chunk", i).
					Int("ids", len(chunk)).
					Msg("thing chunk failed, skipping")
				return
			}
			results[i] = items
		}(i, chunk)
	}
	wg.Wait()

	var merged []Item
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged, nil
}

// fetchThingChunk requests details for at most thingChunkSize identifiers.
func (c *Client) fetchThingChunk(ctx context.Context, ids []int) ([]Item, error) {
	body, err := c.Do(ctx, Request{
		Endpoint: "thing",
		Query: url.Values{
			"id":    {joinIDs(ids)},
			"stats": {"1"},
		},
	})
	if err != nil {
		return nil, err
	}

	var items Items
	if err := xml.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	return items.Items, nil
}

// dedupeIDs removes duplicates preserving first-seen order.
func dedupeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []int, size int) [][]int {
	var chunks [][]int
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// joinIDs renders ids as the comma-separated list the thing endpoint expects.
func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
