package domain

import "time"

// SessionStatus is derived from the session cursor; it is never set independently.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// SessionStats counts answers given during a session.
type SessionStats struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// Session is one review run over an ordered subset of a deck.
type Session struct {
	ID              string        `json:"id"`
	DeckName        string        `json:"deckName"`
	OriginalDeckIDs []int         `json:"originalDeckIds"`
	CardsQueue      []int         `json:"cardsQueue"`
	TotalCards      int           `json:"totalCards"`
	CurrentIndex    int           `json:"currentIndex"`
	Stats           SessionStats  `json:"stats"`
	StartTime       time.Time     `json:"startTime"`
	LastUpdate      time.Time     `json:"lastUpdate"`
	Status          SessionStatus `json:"status"`
}

// Finished reports whether the cursor has moved past the end of the queue.
func (s Session) Finished() bool {
	return s.CurrentIndex >= s.TotalCards
}

// Remaining returns the number of queue entries not yet reached.
func (s Session) Remaining() int {
	if r := s.TotalCards - s.CurrentIndex; r > 0 {
		return r
	}
	return 0
}
