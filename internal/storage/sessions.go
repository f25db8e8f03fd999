package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// Sessions persists the review history, newest session first.
type Sessions struct {
	kv  KV
	log *zap.Logger
}

func NewSessions(kv KV, log *zap.Logger) *Sessions {
	return &Sessions{kv: kv, log: log}
}

// List returns every stored session, newest first.
func (s *Sessions) List(ctx context.Context) ([]domain.Session, error) {
	return loadDocument[[]domain.Session](ctx, s.kv, s.log, KeySessions)
}

// Get looks a session up by id.
func (s *Sessions) Get(ctx context.Context, id string) (domain.Session, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	for _, sess := range sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return domain.Session{}, errors.Wrapf(ErrSessionNotFound, "id %s", id)
}

// Prepend stores a new session at the front of the history.
func (s *Sessions) Prepend(ctx context.Context, sess domain.Session) error {
	sessions, err := s.List(ctx)
	if err != nil {
		return err
	}
	sessions = append([]domain.Session{sess}, sessions...)
	return saveDocument(ctx, s.kv, KeySessions, sessions)
}

// Update replaces the stored session with the same id. Sessions that were
// deleted in the meantime are not recreated.
func (s *Sessions) Update(ctx context.Context, sess domain.Session) error {
	sessions, err := s.List(ctx)
	if err != nil {
		return err
	}
	for i := range sessions {
		if sessions[i].ID == sess.ID {
			sessions[i] = sess
			return saveDocument(ctx, s.kv, KeySessions, sessions)
		}
	}
	return nil
}

// Delete removes one session from the history.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	sessions, err := s.List(ctx)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, sess := range sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	return saveDocument(ctx, s.kv, KeySessions, kept)
}
