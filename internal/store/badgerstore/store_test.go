package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchdash/sketchdash/internal/game"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitingSession(id string, players ...string) *game.Session {
	return &game.Session{
		ID:        id,
		Status:    game.StatusWaiting,
		Players:   players,
		StartTime: time.Now().UTC(),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, waitingSession("s1", "alice")))

	found, err := store.FindSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", found.ID)
	assert.Equal(t, []string{"alice"}, found.Players)
	assert.Equal(t, game.StatusWaiting, found.Status)

	_, err = store.FindSession(ctx, "missing")
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestFindWaitingSession(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.FindWaitingSession(ctx)
	assert.ErrorIs(t, err, game.ErrSessionNotFound)

	require.NoError(t, store.CreateSession(ctx, waitingSession("s1", "alice")))
	found, err := store.FindWaitingSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", found.ID)
}

func TestFindActiveOrWaitingSkipsEnded(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, waitingSession("s1", "alice")))
	active := waitingSession("s2", "bob")
	active.Status = game.StatusActive
	require.NoError(t, store.CreateSession(ctx, active))
	ended := waitingSession("s3", "carol")
	ended.Status = game.StatusEnded
	require.NoError(t, store.CreateSession(ctx, ended))

	sessions, err := store.FindActiveOrWaiting(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestAppendPlayer(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, waitingSession("s1", "alice")))

	updated, err := store.AppendPlayer(ctx, "s1", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, updated.Players)

	_, err = store.AppendPlayer(ctx, "missing", "bob")
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestAppendSubmissionIfAbsent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	session := waitingSession("s1", "alice", "bob")
	session.Status = game.StatusActive
	require.NoError(t, store.CreateSession(ctx, session))

	sub := game.Submission{PlayerName: "alice", Drawing: "/uploads/a.png", Labels: []string{"Cat"}, Score: 100}
	updated, ok, err := store.AppendSubmissionIfAbsent(ctx, "s1", sub)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, updated.Submissions, 1)

	// same player again: conditional append must not match
	_, ok, err = store.AppendSubmissionIfAbsent(ctx, "s1", sub)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := store.FindSession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, found.Submissions, 1)

	// a different player is fine
	sub.PlayerName = "bob"
	_, ok, err = store.AppendSubmissionIfAbsent(ctx, "s1", sub)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppendSubmissionRequiresActiveSession(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, waitingSession("s1", "alice")))

	_, ok, err := store.AppendSubmissionIfAbsent(ctx, "s1", game.Submission{PlayerName: "alice"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitionIfStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, waitingSession("s1", "alice")))

	prompt := &game.SessionPrompt{Name: "Cat", Description: "feline", NameEmbedding: []float64{1, 0}}
	updated, ok, err := store.TransitionIfStatus(ctx, "s1", game.StatusWaiting, game.StatusActive, game.SessionFields{Prompt: prompt})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, game.StatusActive, updated.Status)
	require.NotNil(t, updated.Prompt)
	assert.Equal(t, "Cat", updated.Prompt.Name)

	// second caller loses the race: status already moved on
	_, ok, err = store.TransitionIfStatus(ctx, "s1", game.StatusWaiting, game.StatusActive, game.SessionFields{})
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC()
	updated, ok, err = store.TransitionIfStatus(ctx, "s1", game.StatusActive, game.StatusEnded, game.SessionFields{EndTime: &now})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, game.StatusEnded, updated.Status)
	require.NotNil(t, updated.EndTime)

	_, _, err = store.TransitionIfStatus(ctx, "missing", game.StatusActive, game.StatusEnded, game.SessionFields{})
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestUpsertPromptByName(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.UpsertPrompt(ctx, &game.Prompt{Name: "Cat", Description: "feline"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	// upserting the same name (case-insensitively) updates in place
	second, err := store.UpsertPrompt(ctx, &game.Prompt{Name: "cat", Description: "updated"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	found, err := store.FindPrompt(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", found.Description)

	_, err = store.FindPrompt(ctx, "missing")
	assert.ErrorIs(t, err, game.ErrPromptNotFound)
}

func TestListAndRandomPrompt(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.RandomPrompt(ctx)
	assert.ErrorIs(t, err, game.ErrPromptNotFound)

	_, err = store.UpsertPrompt(ctx, &game.Prompt{Name: "Cat"})
	require.NoError(t, err)
	_, err = store.UpsertPrompt(ctx, &game.Prompt{Name: "House"})
	require.NoError(t, err)

	prompts, err := store.ListPrompts(ctx)
	require.NoError(t, err)
	assert.Len(t, prompts, 2)

	prompt, err := store.RandomPrompt(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{"Cat", "House"}, prompt.Name)
}
