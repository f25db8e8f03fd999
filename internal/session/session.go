// Package session implements review sessions: pure state transitions over
// domain.Session values and the Engine that drives them against a live deck.
package session

import (
	"slices"
	"time"

	"github.com/conorfennell/leitner/internal/domain"
)

// New builds an active session over the given card ids, in order.
func New(id, deckName string, ids []int, now time.Time) domain.Session {
	return Touch(domain.Session{
		ID:              id,
		DeckName:        deckName,
		OriginalDeckIDs: slices.Clone(ids),
		CardsQueue:      slices.Clone(ids),
		TotalCards:      len(ids),
		StartTime:       now,
	}, now)
}

// Touch stamps the session and recomputes its status from the cursor.
func Touch(s domain.Session, now time.Time) domain.Session {
	s.LastUpdate = now
	if s.CurrentIndex >= s.TotalCards {
		s.Status = domain.StatusCompleted
	} else {
		s.Status = domain.StatusActive
	}
	return s
}

// Answer counts one answer and moves the cursor past the current card.
func Answer(s domain.Session, correct bool, now time.Time) domain.Session {
	if correct {
		s.Stats.Correct++
	} else {
		s.Stats.Wrong++
	}
	if s.CurrentIndex < s.TotalCards {
		s.CurrentIndex++
	}
	return Touch(s, now)
}

// Skip moves the cursor past a queue entry without counting it as answered.
func Skip(s domain.Session, now time.Time) domain.Session {
	if s.CurrentIndex < s.TotalCards {
		s.CurrentIndex++
	}
	return Touch(s, now)
}

// NewRound restarts the session over ids, keeping its answer statistics.
func NewRound(s domain.Session, ids []int, now time.Time) domain.Session {
	s.CardsQueue = slices.Clone(ids)
	s.TotalCards = len(ids)
	s.CurrentIndex = 0
	return Touch(s, now)
}

// RemoveCard drops every occurrence of id from the queue. A cursor left past
// the end wraps to the start.
func RemoveCard(s domain.Session, id int, now time.Time) domain.Session {
	s.CardsQueue = slices.DeleteFunc(slices.Clone(s.CardsQueue), func(v int) bool { return v == id })
	s.TotalCards = len(s.CardsQueue)
	if s.CurrentIndex >= s.TotalCards {
		s.CurrentIndex = 0
	}
	return Touch(s, now)
}

// CurrentID returns the queue entry under the cursor.
func CurrentID(s domain.Session) (int, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= s.TotalCards || s.CurrentIndex >= len(s.CardsQueue) {
		return 0, false
	}
	return s.CardsQueue[s.CurrentIndex], true
}
