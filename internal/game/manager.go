package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/sketchdash/sketchdash/internal/ai"
)

// Broadcaster fans events out to connected clients, either globally or to the
// room of one session.
type Broadcaster interface {
	Broadcast(event string, payload any)
	BroadcastRoom(room, event string, payload any)
}

// FileLoader reads a previously uploaded drawing by its stored filename.
type FileLoader interface {
	Load(filename string) ([]byte, error)
}

// SubmitResult is the ack payload for a drawing submission.
type SubmitResult struct {
	Success bool     `json:"success"`
	Score   int      `json:"score,omitempty"`
	Labels  []string `json:"labels,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func submitFailure(msg string) SubmitResult {
	return SubmitResult{Success: false, Error: msg}
}

// Manager drives the session state machine: join, start, submit, end,
// resync. Handlers calling into it suspend on the store and the AI services,
// so it holds no lock across an operation; every race-sensitive invariant is
// enforced by the store's conditional updates. Every mutation updates the
// registry before broadcasting, then publishes a fresh leaderboard snapshot.
type Manager struct {
	store    Store
	registry *Registry
	scorer   *Scorer
	analyzer ai.Analyzer
	embedder ai.Embedder
	files    FileLoader
	bc       Broadcaster
	log      zerolog.Logger
}

func NewManager(store Store, registry *Registry, scorer *Scorer, analyzer ai.Analyzer, embedder ai.Embedder, files FileLoader, bc Broadcaster, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		registry: registry,
		scorer:   scorer,
		analyzer: analyzer,
		embedder: embedder,
		files:    files,
		bc:       bc,
		log:      log,
	}
}

// Join adds a player to the single waiting session, creating it when none
// exists. joinRoom, when non-nil, is invoked with the session id after the
// write succeeds and before any broadcast, so the caller's connection is in
// the room when playerJoined goes out.
func (m *Manager) Join(ctx context.Context, playerName string, joinRoom func(sessionID string)) (*Session, error) {
	session, err := m.store.FindWaitingSession(ctx)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		session = &Session{
			ID:        uuid.NewString(),
			Status:    StatusWaiting,
			Players:   []string{playerName},
			StartTime: time.Now().UTC(),
		}
		if err := m.store.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("finding waiting session: %w", err)
	default:
		session, err = m.store.AppendPlayer(ctx, session.ID, playerName)
		if err != nil {
			return nil, fmt.Errorf("appending player: %w", err)
		}
	}

	m.registry.AppendPlayer(session, playerName)
	if joinRoom != nil {
		joinRoom(session.ID)
	}

	m.log.Info().Str("player", playerName).Str("sessionId", session.ID).Int("players", len(session.Players)).Msg("player joined")
	payload := map[string]any{
		"playerName":    playerName,
		"players":       session.Players,
		"gameSessionId": session.ID,
	}
	m.bc.Broadcast("playerJoined", payload)
	m.bc.BroadcastRoom(session.ID, "playerJoined", payload)
	m.publishLeaderboard()
	return session, nil
}

// Start transitions the session from waiting to active with the given
// prompt, computing the prompt embedding fresh. A missing session or prompt
// makes the whole operation a logged no-op for everyone but the caller.
func (m *Manager) Start(ctx context.Context, sessionID, promptID string) error {
	session, err := m.store.FindSession(ctx, sessionID)
	if err != nil {
		m.log.Warn().Err(err).Str("sessionId", sessionID).Msg("start: session not found")
		return err
	}
	prompt, err := m.store.FindPrompt(ctx, promptID)
	if err != nil {
		m.log.Warn().Err(err).Str("promptId", promptID).Msg("start: prompt not found")
		return err
	}

	embedding, err := m.embedder.Embed(ctx, prompt.Name)
	if err != nil {
		return fmt.Errorf("embedding prompt name: %w", err)
	}

	fields := SessionFields{Prompt: &SessionPrompt{
		Name:          prompt.Name,
		Description:   prompt.Description,
		NameEmbedding: embedding,
	}}
	_, ok, err := m.store.TransitionIfStatus(ctx, session.ID, StatusWaiting, StatusActive, fields)
	if err != nil {
		return fmt.Errorf("activating session: %w", err)
	}
	if !ok {
		// another caller started or ended it first
		m.log.Info().Str("sessionId", session.ID).Msg("start: session no longer waiting")
		return nil
	}

	m.registry.SetActive(session.ID, prompt.Name)
	m.log.Info().Str("sessionId", session.ID).Str("prompt", prompt.Name).Msg("game started")
	m.bc.Broadcast("gameStarted", map[string]any{
		"promptName":        prompt.Name,
		"promptDescription": prompt.Description,
		"gameSessionId":     session.ID,
	})
	m.publishLeaderboard()
	return nil
}

// Submit analyzes and scores one drawing and appends it to the session. The
// append is conditional on no prior submission by the same player; that
// check-and-set at the store is the only duplicate guard, since the handler
// suspends on analysis and scoring with no lock held. When the final player
// submits, the game ends, guarded against a racing explicit end.
func (m *Manager) Submit(ctx context.Context, sessionID, playerName, filename string) SubmitResult {
	defer m.publishLeaderboard()

	session, err := m.store.FindSession(ctx, sessionID)
	if err != nil || session.Status != StatusActive || session.Prompt == nil || session.Prompt.Name == "" {
		m.log.Warn().Str("sessionId", sessionID).Msg("submit: no active session with prompt")
		return submitFailure("No active game session found or missing prompt data")
	}

	image, err := m.files.Load(filename)
	if err != nil {
		m.log.Error().Err(err).Str("filename", filename).Msg("submit: reading drawing")
		return submitFailure("Drawing file not found")
	}

	analysis, err := m.analyzer.Analyze(ctx, image)
	if err != nil {
		m.log.Error().Err(err).Str("sessionId", sessionID).Msg("submit: analysis failed")
		return submitFailure("Drawing could not be analyzed")
	}
	if !analysis.IsAppropriate {
		m.log.Warn().Str("player", playerName).Str("sessionId", sessionID).Msg("submit: inappropriate content")
		return submitFailure("Drawing contains inappropriate content")
	}

	score, err := m.scorer.Score(ctx, analysis.Labels, session.Prompt.Name, session.Prompt.NameEmbedding)
	if err != nil {
		if !errors.Is(err, ErrMissingEmbedding) {
			m.log.Error().Err(err).Str("sessionId", sessionID).Msg("submit: scoring failed")
			return submitFailure("Server error while processing submission")
		}
		// incomplete prompt document; score stays 0
		m.log.Error().Err(err).Str("sessionId", sessionID).Msg("submit: prompt stored without embedding")
	}

	sub := Submission{
		PlayerName: playerName,
		Drawing:    "/uploads/" + filename,
		Labels:     analysis.Labels,
		Score:      score,
	}
	updated, ok, err := m.store.AppendSubmissionIfAbsent(ctx, sessionID, sub)
	if err != nil {
		m.log.Error().Err(err).Str("sessionId", sessionID).Msg("submit: store update failed")
		return submitFailure("Server error while processing submission")
	}
	if !ok {
		// already submitted, or the session is no longer active
		m.log.Info().Str("player", playerName).Str("sessionId", sessionID).Msg("submit: duplicate or inactive")
		return submitFailure("Failed to submit drawing or player has already submitted")
	}

	m.log.Info().Str("player", playerName).Str("sessionId", sessionID).Int("score", score).Strs("labels", analysis.Labels).Msg("drawing received")

	if len(updated.Submissions) == len(updated.Players) {
		// re-read: a concurrent final submission or an explicit end may have
		// ended the game between the append and here
		current, err := m.store.FindSession(ctx, sessionID)
		if err == nil && current.Status == StatusActive {
			if err := m.End(ctx, sessionID); err != nil {
				m.log.Error().Err(err).Str("sessionId", sessionID).Msg("submit: ending game")
			}
		}
	}

	return SubmitResult{Success: true, Score: score, Labels: analysis.Labels}
}

// End transitions the session from active to ended. The conditional
// transition is the only guard against double-ending when the last
// submission and an explicit endGame race; the loser of the race is a silent
// no-op.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()
	updated, ok, err := m.store.TransitionIfStatus(ctx, sessionID, StatusActive, StatusEnded, SessionFields{EndTime: &now})
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	if !ok {
		m.log.Info().Str("sessionId", sessionID).Msg("game already ended or not found")
		return nil
	}

	results := lo.Map(updated.Submissions, func(sub Submission, _ int) PlayerResult {
		return PlayerResult{PlayerName: sub.PlayerName, Score: sub.Score}
	})

	promptName := promptPlaceholder
	if updated.Prompt != nil {
		promptName = updated.Prompt.Name
	}
	m.registry.Remove(sessionID)
	m.registry.PushResult(RecentResult{ID: sessionID, Prompt: promptName, Players: results})

	m.log.Info().Str("sessionId", sessionID).Int("results", len(results)).Msg("game ended")
	payload := map[string]any{"results": results, "gameSessionId": sessionID}
	m.bc.BroadcastRoom(sessionID, "gameEnded", payload)
	m.bc.Broadcast("adminGameEnded", payload)
	m.publishLeaderboard()
	return nil
}

// Resync rebuilds the registry wholesale from the store and returns the new
// summaries.
func (m *Manager) Resync(ctx context.Context) ([]Summary, error) {
	sessions, err := m.store.FindActiveOrWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	sums := lo.Map(sessions, func(s *Session, _ int) Summary { return summarize(s) })
	m.registry.Replace(sums)
	m.log.Info().Int("sessions", len(sums)).Msg("registry resynced")
	return sums, nil
}

// Leaderboard returns the current full-replace snapshot.
func (m *Manager) Leaderboard() LeaderboardSnapshot {
	return m.registry.Snapshot()
}

func (m *Manager) publishLeaderboard() {
	m.bc.Broadcast("leaderboardUpdate", m.registry.Snapshot())
}
