package arena

import (
	"math"
	"sort"
)

// LeaderboardEntry is one ranked row of a room leaderboard. Radius is
// rounded to two decimals for the wire.
type LeaderboardEntry struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Radius float64 `json:"radius"`
}

// Leaderboard ranks players by radius descending, ties broken by join order,
// truncated to at most n entries. It is a pure function over the given
// mapping and never stores state.
func Leaderboard(players map[string]Player, n int) []LeaderboardEntry {
	ranked := make([]Player, 0, len(players))
	for _, p := range players {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Radius != ranked[j].Radius {
			return ranked[i].Radius > ranked[j].Radius
		}
		return ranked[i].joinOrder < ranked[j].joinOrder
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}

	board := make([]LeaderboardEntry, 0, len(ranked))
	for _, p := range ranked {
		board = append(board, LeaderboardEntry{
			ID:     p.ID,
			Name:   p.Name,
			Radius: math.Round(p.Radius*100) / 100,
		})
	}
	return board
}
