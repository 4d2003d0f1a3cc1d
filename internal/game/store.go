package game

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPromptNotFound  = errors.New("prompt not found")
)

// SessionFields carries the fields written alongside a status transition.
type SessionFields struct {
	Prompt  *SessionPrompt
	EndTime *time.Time
}

// Store is the durable session and prompt store. The conditional operations
// (AppendSubmissionIfAbsent, TransitionIfStatus) are the system's only
// concurrency-safety primitive: handlers suspend on external calls mid
// operation, so no in-process lock can protect these invariants. A
// conditional operation reporting no match means another caller won the race;
// that is a normal control-flow result, not an error.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	FindSession(ctx context.Context, id string) (*Session, error)
	// FindWaitingSession returns the single session with status waiting, or
	// ErrSessionNotFound when none exists.
	FindWaitingSession(ctx context.Context) (*Session, error)
	FindActiveOrWaiting(ctx context.Context) ([]*Session, error)
	// AppendPlayer appends playerName to the session's player list and
	// returns the updated session.
	AppendPlayer(ctx context.Context, sessionID, playerName string) (*Session, error)
	// AppendSubmissionIfAbsent appends sub only if the session is active and
	// holds no submission for sub.PlayerName yet. ok reports whether the
	// append took effect.
	AppendSubmissionIfAbsent(ctx context.Context, sessionID string, sub Submission) (updated *Session, ok bool, err error)
	// TransitionIfStatus moves the session from one status to another,
	// applying fields, only if its current status equals from. ok reports
	// whether the transition took effect.
	TransitionIfStatus(ctx context.Context, sessionID string, from, to Status, fields SessionFields) (updated *Session, ok bool, err error)

	UpsertPrompt(ctx context.Context, p *Prompt) (*Prompt, error)
	FindPrompt(ctx context.Context, id string) (*Prompt, error)
	ListPrompts(ctx context.Context) ([]*Prompt, error)
	RandomPrompt(ctx context.Context) (*Prompt, error)
}
