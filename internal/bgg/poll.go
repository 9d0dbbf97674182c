package bgg

const (
	pollPlayerCount = "suggested_numplayers"
	pollPlayerAge   = "suggested_playerage"
)

// PlayerCountSummary is the derived best-guess player counts for an item,
// computed from the suggested-player-count poll.
type PlayerCountSummary struct {
	TotalVotes  int      `json:"totalVotes"`
	Best        string   `json:"best,omitempty"`
	Recommended []string `json:"recommended,omitempty"`
}

// PlayerAgeSummary is the derived suggested minimum age for an item,
// computed from the suggested-player-age poll.
type PlayerAgeSummary struct {
	TotalVotes int    `json:"totalVotes"`
	Age        string `json:"age,omitempty"`
}

// summarizePolls attaches poll summaries to an item. A summary is only
// computed when the underlying poll has at least one vote.
func summarizePolls(it *Item) {
	for i := range it.Polls {
		poll := &it.Polls[i]
		if poll.TotalVotes <= 0 {
			continue
		}
		switch poll.Name {
		case pollPlayerCount:
			it.PlayerCountSummary = computePlayerCount(poll)
		case pollPlayerAge:
			it.PlayerAgeSummary = computePlayerAge(poll)
		}
	}
}

// computePlayerCount picks the player count with the most "Best" votes and
// collects every count where positive votes outweigh "Not Recommended".
func computePlayerCount(poll *Poll) *PlayerCountSummary {
	summary := &PlayerCountSummary{TotalVotes: poll.TotalVotes}

	bestVotes := -1
	for _, bucket := range poll.Results {
		var best, recommended, notRecommended int
		for _, opt := range bucket.Options {
			switch opt.Value {
			case "Best":
				best = opt.NumVotes
			case "Recommended":
				recommended = opt.NumVotes
			case "Not Recommended":
				notRecommended = opt.NumVotes
			}
		}
		if best > bestVotes {
			bestVotes = best
			summary.Best = bucket.NumPlayers
		}
		if best+recommended > notRecommended {
			summary.Recommended = append(summary.Recommended, bucket.NumPlayers)
		}
	}

	return summary
}

// computePlayerAge picks the age option with the most votes.
func computePlayerAge(poll *Poll) *PlayerAgeSummary {
	summary := &PlayerAgeSummary{TotalVotes: poll.TotalVotes}

	topVotes := -1
	for _, bucket := range poll.Results {
		for _, opt := range bucket.Options {
			if opt.NumVotes > topVotes {
				topVotes = opt.NumVotes
				summary.Age = opt.Value
			}
		}
	}

	return summary
}
