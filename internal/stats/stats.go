// Package stats derives history and progress figures from persisted sessions
// and deck state.
package stats

import (
	"math"
	"time"

	"github.com/conorfennell/leitner/internal/deck"
	"github.com/conorfennell/leitner/internal/domain"
)

// History aggregates answers over completed sessions.
type History struct {
	TotalReviewed     int `json:"totalReviewed"`
	SuccessRate       int `json:"successRate"`
	CompletedSessions int `json:"completedSessions"`
}

// Aggregate sums answers of completed sessions. TotalReviewed counts answers,
// not queued cards, since a resumed round answers the queue again. SuccessRate
// is a rounded percentage, zero when nothing was reviewed.
func Aggregate(sessions []domain.Session) History {
	var h History
	correct := 0
	for _, s := range sessions {
		if !s.Finished() {
			continue
		}
		h.CompletedSessions++
		correct += s.Stats.Correct
		h.TotalReviewed += s.Stats.Correct + s.Stats.Wrong
	}
	if h.TotalReviewed > 0 {
		h.SuccessRate = int(math.Round(float64(correct) / float64(h.TotalReviewed) * 100))
	}
	return h
}

type DifficultyCounts struct {
	Easy   int `json:"easy"`
	Normal int `json:"normal"`
	Hard   int `json:"hard"`
}

// Difficulties counts cards per self-assessed difficulty. Unset and unknown
// values count as normal.
func Difficulties(cards []domain.Card) DifficultyCounts {
	var counts DifficultyCounts
	for _, c := range cards {
		switch c.Difficulty {
		case domain.DifficultyEasy:
			counts.Easy++
		case domain.DifficultyHard:
			counts.Hard++
		default:
			counts.Normal++
		}
	}
	return counts
}

// Entry is one row of the session history listing.
type Entry struct {
	ID         string               `json:"id"`
	DeckName   string               `json:"deckName"`
	Domain     string               `json:"domain"`
	StartTime  time.Time            `json:"startTime"`
	LastUpdate time.Time            `json:"lastUpdate"`
	Status     domain.SessionStatus `json:"status"`
	Correct    int                  `json:"correct"`
	Wrong      int                  `json:"wrong"`
	Total      int                  `json:"total"`
	Remaining  int                  `json:"remaining"`
	Cycles     int                  `json:"cycles"`
}

// Entries builds history rows in session order, attaching each deck's cycle count.
func Entries(sessions []domain.Session, cycles map[string]domain.DeckStats) []Entry {
	entries := make([]Entry, 0, len(sessions))
	for _, s := range sessions {
		status := domain.StatusActive
		if s.Finished() {
			status = domain.StatusCompleted
		}
		entries = append(entries, Entry{
			ID:         s.ID,
			DeckName:   s.DeckName,
			Domain:     deck.Domain(s.DeckName),
			StartTime:  s.StartTime,
			LastUpdate: s.LastUpdate,
			Status:     status,
			Correct:    s.Stats.Correct,
			Wrong:      s.Stats.Wrong,
			Total:      s.TotalCards,
			Remaining:  s.Remaining(),
			Cycles:     cycles[s.DeckName].Cycles,
		})
	}
	return entries
}
