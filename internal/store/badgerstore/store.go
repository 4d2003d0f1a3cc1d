// Package badgerstore persists sessions and prompts in BadgerDB. The
// conditional operations run as read-check-write inside serializable
// transactions, retrying on write conflicts, which gives the check-and-set
// semantics the game manager relies on.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sketchdash/sketchdash/internal/game"
)

const (
	sessionPrefix    = "session:"
	promptPrefix     = "prompt:"
	promptNamePrefix = "promptname:"
)

type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) a Badger database at dir.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	return &Store{db: db, log: log}, nil
}

func New(db *badger.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction touched the same keys.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

func sessionKey(id string) []byte { return []byte(sessionPrefix + id) }
func promptKey(id string) []byte  { return []byte(promptPrefix + id) }
func promptNameKey(name string) []byte {
	return []byte(promptNamePrefix + strings.ToLower(name))
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

func (s *Store) CreateSession(_ context.Context, session *game.Session) error {
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, sessionKey(session.ID), session)
	})
}

func (s *Store) FindSession(_ context.Context, id string) (*game.Session, error) {
	var session game.Session
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, sessionKey(id), &session)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) FindWaitingSession(ctx context.Context) (*game.Session, error) {
	sessions, err := s.findByStatus(game.StatusWaiting)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, game.ErrSessionNotFound
	}
	return sessions[0], nil
}

func (s *Store) FindActiveOrWaiting(_ context.Context) ([]*game.Session, error) {
	return s.findByStatus(game.StatusWaiting, game.StatusActive)
}

func (s *Store) findByStatus(statuses ...game.Status) ([]*game.Session, error) {
	var out []*game.Session
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(sessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session game.Session
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				return err
			}
			for _, st := range statuses {
				if session.Status == st {
					sess := session
					out = append(out, &sess)
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) AppendPlayer(_ context.Context, sessionID, playerName string) (*game.Session, error) {
	var session game.Session
	err := s.update(func(txn *badger.Txn) error {
		session = game.Session{}
		if err := getJSON(txn, sessionKey(sessionID), &session); err != nil {
			return err
		}
		session.Players = append(session.Players, playerName)
		return setJSON(txn, sessionKey(sessionID), &session)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) AppendSubmissionIfAbsent(_ context.Context, sessionID string, sub game.Submission) (*game.Session, bool, error) {
	var (
		session game.Session
		ok      bool
	)
	err := s.update(func(txn *badger.Txn) error {
		ok = false
		session = game.Session{}
		if err := getJSON(txn, sessionKey(sessionID), &session); err != nil {
			return err
		}
		if session.Status != game.StatusActive || session.HasSubmission(sub.PlayerName) {
			return nil
		}
		session.Submissions = append(session.Submissions, sub)
		if err := setJSON(txn, sessionKey(sessionID), &session); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &session, true, nil
}

func (s *Store) TransitionIfStatus(_ context.Context, sessionID string, from, to game.Status, fields game.SessionFields) (*game.Session, bool, error) {
	var (
		session game.Session
		ok      bool
	)
	err := s.update(func(txn *badger.Txn) error {
		ok = false
		session = game.Session{}
		if err := getJSON(txn, sessionKey(sessionID), &session); err != nil {
			return err
		}
		if session.Status != from {
			return nil
		}
		session.Status = to
		if fields.Prompt != nil {
			session.Prompt = fields.Prompt
		}
		if fields.EndTime != nil {
			session.EndTime = fields.EndTime
		}
		if err := setJSON(txn, sessionKey(sessionID), &session); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &session, true, nil
}

// UpsertPrompt stores the prompt, keyed by a case-insensitive name index so
// reseeding the same prompt updates it in place.
func (s *Store) UpsertPrompt(_ context.Context, p *game.Prompt) (*game.Prompt, error) {
	stored := *p
	err := s.update(func(txn *badger.Txn) error {
		item, err := txn.Get(promptNameKey(p.Name))
		switch {
		case err == nil:
			err = item.Value(func(val []byte) error {
				stored.ID = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			stored.ID = uuid.NewString()
			if err := txn.Set(promptNameKey(p.Name), []byte(stored.ID)); err != nil {
				return err
			}
		default:
			return err
		}
		return setJSON(txn, promptKey(stored.ID), &stored)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Store) FindPrompt(_ context.Context, id string) (*game.Prompt, error) {
	var prompt game.Prompt
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, promptKey(id), &prompt)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, game.ErrPromptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prompt, nil
}

func (s *Store) ListPrompts(_ context.Context) ([]*game.Prompt, error) {
	var out []*game.Prompt
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(promptPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var prompt game.Prompt
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &prompt)
			})
			if err != nil {
				return err
			}
			p := prompt
			out = append(out, &p)
		}
		return nil
	})
	return out, err
}

func (s *Store) RandomPrompt(ctx context.Context) (*game.Prompt, error) {
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, game.ErrPromptNotFound
	}
	return prompts[rand.Intn(len(prompts))], nil
}
