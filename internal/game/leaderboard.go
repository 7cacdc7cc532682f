package game

import (
	"sort"
	"sync"

	"rey-arena/internal/protocol"
)

// Leaderboard ranks players by accumulated time as rey.
//
// Scores come straight from snapshots, so an update is a full overwrite.
// The ranked view is rebuilt lazily on the first read after a change.
type Leaderboard struct {
	mu      sync.RWMutex
	entries map[string]protocol.Standing
	ranked  []protocol.Standing
	dirty   bool
}

// LeaderboardEntry is a ranked row
type LeaderboardEntry struct {
	protocol.Standing
	Rank int `json:"rank"`
}

// NewLeaderboard creates an empty leaderboard
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		entries: make(map[string]protocol.Standing),
	}
}

// UpdateScore sets a player's time as rey
func (lb *Leaderboard) UpdateScore(id, nickname string, timeAsRey float64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries[id] = protocol.Standing{ID: id, Nickname: nickname, TimeAsRey: timeAsRey}
	lb.dirty = true
}

// RemovePlayer removes a player from the leaderboard
func (lb *Leaderboard) RemovePlayer(id string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if _, ok := lb.entries[id]; ok {
		delete(lb.entries, id)
		lb.dirty = true
	}
}

// Sync replaces the whole board with the players in snap.
// Players missing from snap are dropped.
func (lb *Leaderboard) Sync(snap *protocol.Snapshot) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	next := make(map[string]protocol.Standing, len(snap.Players))
	for id, p := range snap.Players {
		next[id] = protocol.Standing{ID: id, Nickname: p.Nickname, TimeAsRey: p.TimeAsRey}
	}
	lb.entries = next
	lb.dirty = true
}

// GetRank returns a player's rank (1-indexed, 1 = top)
// Returns 0 if player not found
func (lb *Leaderboard) GetRank(id string) int {
	ranked := lb.view()
	for i, s := range ranked {
		if s.ID == id {
			return i + 1
		}
	}
	return 0
}

// GetTop returns the top n players; n <= 0 returns everyone
func (lb *Leaderboard) GetTop(n int) []LeaderboardEntry {
	ranked := lb.view()
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	out := make([]LeaderboardEntry, n)
	for i := 0; i < n; i++ {
		out[i] = LeaderboardEntry{Standing: ranked[i], Rank: i + 1}
	}
	return out
}

// Standings returns every player in rank order
func (lb *Leaderboard) Standings() []protocol.Standing {
	ranked := lb.view()
	out := make([]protocol.Standing, len(ranked))
	copy(out, ranked)
	return out
}

// Length returns the number of players in the leaderboard
func (lb *Leaderboard) Length() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.entries)
}

// Clear removes all players from the leaderboard
func (lb *Leaderboard) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries = make(map[string]protocol.Standing)
	lb.ranked = nil
	lb.dirty = false
}

func (lb *Leaderboard) view() []protocol.Standing {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.dirty {
		// Fresh slice: callers may still hold the previous one.
		ranked := make([]protocol.Standing, 0, len(lb.entries))
		for _, s := range lb.entries {
			ranked = append(ranked, s)
		}
		SortStandings(ranked)
		lb.ranked = ranked
		lb.dirty = false
	}
	return lb.ranked
}

// SortStandings orders rows by time as rey, longest first. Ties break on
// nickname then id so the order is stable across clients.
func SortStandings(rows []protocol.Standing) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TimeAsRey != b.TimeAsRey {
			return a.TimeAsRey > b.TimeAsRey
		}
		if a.Nickname != b.Nickname {
			return a.Nickname < b.Nickname
		}
		return a.ID < b.ID
	})
}
