package game

import (
	"time"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// promptPlaceholder is shown on leaderboards for sessions that have not
// started yet and therefore have no prompt.
const promptPlaceholder = "Not selected"

// Prompt is a stored drawing prompt, managed by the admin API and the seed
// command.
type Prompt struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	NameEmbedding        []float64 `json:"nameEmbedding,omitempty"`
	DescriptionEmbedding []float64 `json:"descriptionEmbedding,omitempty"`
}

// SessionPrompt is the prompt snapshot attached to a session when it starts.
// The embedding is computed fresh at start time.
type SessionPrompt struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	NameEmbedding []float64 `json:"nameEmbedding,omitempty"`
}

type Submission struct {
	PlayerName string   `json:"playerName"`
	Drawing    string   `json:"drawing"`
	Labels     []string `json:"labels"`
	Score      int      `json:"score"`
}

// Session is one round of play. Status is monotonic: waiting -> active ->
// ended. Once ended the document is never written again.
type Session struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	Players     []string       `json:"players"`
	Prompt      *SessionPrompt `json:"prompt,omitempty"`
	Submissions []Submission   `json:"submissions"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
}

// HasSubmission reports whether playerName already has a submission on the
// session.
func (s *Session) HasSubmission(playerName string) bool {
	for _, sub := range s.Submissions {
		if sub.PlayerName == playerName {
			return true
		}
	}
	return false
}

// Summary is the denormalized registry entry for a live session, kept in
// memory for leaderboard reads without a store round trip.
type Summary struct {
	ID      string   `json:"id"`
	Players []string `json:"players"`
	Status  string   `json:"status"`
	Prompt  string   `json:"prompt"`
}

func summarize(s *Session) Summary {
	sum := Summary{
		ID:      s.ID,
		Players: append([]string(nil), s.Players...),
		Status:  summaryStatus(s.Status),
		Prompt:  promptPlaceholder,
	}
	if s.Prompt != nil && s.Prompt.Name != "" {
		sum.Prompt = s.Prompt.Name
	}
	return sum
}

func summaryStatus(st Status) string {
	switch st {
	case StatusWaiting:
		return "Waiting"
	case StatusActive:
		return "Active"
	default:
		return "Ended"
	}
}

type PlayerResult struct {
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// RecentResult is the leaderboard record of a finished game.
type RecentResult struct {
	ID      string         `json:"id"`
	Prompt  string         `json:"prompt"`
	Players []PlayerResult `json:"players"`
}

// LeaderboardSnapshot is the full-replace payload sent on every
// leaderboardUpdate. Clients swap their entire view for it.
type LeaderboardSnapshot struct {
	OngoingGames  []Summary      `json:"ongoingGames"`
	RecentResults []RecentResult `json:"recentResults"`
}
