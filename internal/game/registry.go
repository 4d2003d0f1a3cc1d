package game

import (
	"sort"
	"sync"
)

// recentLimit bounds the recent-results FIFO.
const recentLimit = 5

// Registry mirrors live session summaries in memory so leaderboard reads
// never hit the store. The store stays authoritative; Resync rebuilds the
// registry wholesale from it. The registry is scoped to a single process.
type Registry struct {
	mu      sync.Mutex
	games   map[string]*Summary
	recents []RecentResult
}

func NewRegistry() *Registry {
	return &Registry{games: make(map[string]*Summary)}
}

// Upsert stores the summary for the session, replacing any existing entry.
func (r *Registry) Upsert(sum Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[sum.ID] = &sum
}

// AppendPlayer adds a player to an existing entry, or creates the entry from
// the session when it is not tracked yet.
func (r *Registry) AppendPlayer(session *Session, playerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.games[session.ID]; ok {
		g.Players = append(g.Players, playerName)
		return
	}
	sum := summarize(session)
	r.games[sum.ID] = &sum
}

// SetActive marks the entry active and records the prompt name.
func (r *Registry) SetActive(id, promptName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.games[id]; ok {
		g.Status = summaryStatus(StatusActive)
		g.Prompt = promptName
	}
}

// Remove drops the entry for an ended session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, id)
}

// Replace swaps the full set of summaries. Used by Resync; full replace, not
// merge.
func (r *Registry) Replace(sums []Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = make(map[string]*Summary, len(sums))
	for i := range sums {
		sum := sums[i]
		r.games[sum.ID] = &sum
	}
}

// PushResult prepends a finished game's result, evicting the oldest past the
// bound.
func (r *Registry) PushResult(res RecentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recents = append([]RecentResult{res}, r.recents...)
	if len(r.recents) > recentLimit {
		r.recents = r.recents[:recentLimit]
	}
}

// Snapshot returns copies of the current summaries (sorted by id for stable
// output) and the recent results, most recent first.
func (r *Registry) Snapshot() LeaderboardSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	games := make([]Summary, 0, len(r.games))
	for _, g := range r.games {
		sum := *g
		sum.Players = append([]string(nil), g.Players...)
		games = append(games, sum)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	recents := append([]RecentResult(nil), r.recents...)
	return LeaderboardSnapshot{OngoingGames: games, RecentResults: recents}
}
