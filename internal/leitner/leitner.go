package leitner

import (
	"time"

	"github.com/conorfennell/leitner/internal/domain"
)

// intervals maps a box to its review interval in days.
var intervals = map[int]int{
	1: 1,
	2: 3,
	3: 7,
	4: 14,
	5: 30,
}

// IntervalDays returns the review interval for box. Unknown boxes use one day.
func IntervalDays(box int) int {
	if days, ok := intervals[box]; ok {
		return days
	}
	return 1
}

// Outcome is the result of applying an answer to a card's box.
type Outcome struct {
	Box            int
	CycleCompleted bool
}

// Transition applies the Leitner rule. A correct answer promotes the card one
// box; a correct answer in the last box sends it back to box 1 and completes a
// cycle; a wrong answer always sends it back to box 1.
func Transition(box int, correct bool) Outcome {
	box = domain.ClampBox(box)
	if !correct {
		return Outcome{Box: domain.MinBox}
	}
	if box < domain.MaxBox {
		return Outcome{Box: box + 1}
	}
	return Outcome{Box: domain.MinBox, CycleCompleted: true}
}

// reviewLayouts are the timestamp forms accepted for a card's last review.
var reviewLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseReviewTime parses a stored last-review timestamp.
func ParseReviewTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range reviewLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DueAt returns when a card reviewed at last becomes due again in box.
func DueAt(box int, last time.Time) time.Time {
	return last.AddDate(0, 0, IntervalDays(box))
}

// ReviewInfo summarizes the review status of one box.
type ReviewInfo struct {
	Due       bool       `json:"due"`
	DueCount  int        `json:"dueCount"`
	NextDueAt *time.Time `json:"nextDueAt,omitempty"`
}

// NextReviewInfo reports how many cards in box are due at now. When none are,
// it reports the earliest future due time, or nil for an empty box.
// Cards never reviewed, or with an unreadable timestamp, are due immediately.
func NextReviewInfo(box int, cards []domain.Card, now time.Time) ReviewInfo {
	var (
		dueCount int
		earliest time.Time
		found    bool
	)
	for _, card := range cards {
		last, ok := ParseReviewTime(card.LastReview)
		if !ok {
			dueCount++
			continue
		}
		next := DueAt(box, last)
		if !next.After(now) {
			dueCount++
			continue
		}
		if !found || next.Before(earliest) {
			earliest = next
			found = true
		}
	}

	if dueCount > 0 {
		return ReviewInfo{Due: true, DueCount: dueCount}
	}
	if found {
		return ReviewInfo{NextDueAt: &earliest}
	}
	return ReviewInfo{}
}
