package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conorfennell/leitner/internal/domain"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	ids := []int{4, 2, 9}
	s := New("s1", "geo_capitals.csv", ids, t0)

	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, []int{4, 2, 9}, s.CardsQueue)
	assert.Equal(t, []int{4, 2, 9}, s.OriginalDeckIDs)
	assert.Equal(t, 3, s.TotalCards)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, domain.StatusActive, s.Status)
	assert.Equal(t, t0, s.StartTime)
	assert.Equal(t, t0, s.LastUpdate)

	ids[0] = 100
	assert.Equal(t, 4, s.CardsQueue[0], "queue does not alias the input")
}

func TestAnswerCompletesSession(t *testing.T) {
	s := New("s1", "d.csv", []int{0, 1, 2}, t0)
	s = Answer(s, true, t0)
	s = Answer(s, false, t0)
	assert.Equal(t, domain.StatusActive, s.Status)

	later := t0.Add(time.Minute)
	s = Answer(s, true, later)
	assert.Equal(t, 3, s.CurrentIndex)
	assert.Equal(t, 3, s.TotalCards)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, domain.SessionStats{Correct: 2, Wrong: 1}, s.Stats)
	assert.Equal(t, later, s.LastUpdate)

	s = Answer(s, true, later)
	assert.Equal(t, 3, s.CurrentIndex, "cursor never passes the end")
}

func TestEmptySessionIsCompleted(t *testing.T) {
	s := New("s1", "d.csv", nil, t0)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	_, ok := CurrentID(s)
	assert.False(t, ok)
}

func TestNewRoundKeepsStats(t *testing.T) {
	s := New("s1", "d.csv", []int{0}, t0)
	s = Answer(s, true, t0)
	assert.True(t, s.Finished())

	s = NewRound(s, []int{0, 1, 2, 3}, t0)
	assert.Equal(t, 0, s.CurrentIndex)
	assert.Equal(t, 4, s.TotalCards)
	assert.Equal(t, domain.StatusActive, s.Status)
	assert.Equal(t, 1, s.Stats.Correct)
	assert.Equal(t, []int{0}, s.OriginalDeckIDs)
}

func TestRemoveCard(t *testing.T) {
	testCases := []struct {
		name      string
		queue     []int
		index     int
		remove    int
		wantQueue []int
		wantIndex int
		wantState domain.SessionStatus
	}{
		{
			name: "middle card keeps cursor", queue: []int{0, 1, 2}, index: 1, remove: 1,
			wantQueue: []int{0, 2}, wantIndex: 1, wantState: domain.StatusActive,
		},
		{
			name: "last card wraps cursor", queue: []int{0, 1, 2}, index: 2, remove: 2,
			wantQueue: []int{0, 1}, wantIndex: 0, wantState: domain.StatusActive,
		},
		{
			name: "duplicates are all removed", queue: []int{5, 3, 5}, index: 0, remove: 5,
			wantQueue: []int{3}, wantIndex: 0, wantState: domain.StatusActive,
		},
		{
			name: "only card empties session", queue: []int{7}, index: 0, remove: 7,
			wantQueue: []int{}, wantIndex: 0, wantState: domain.StatusCompleted,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New("s", "d.csv", tc.queue, t0)
			s.CurrentIndex = tc.index
			got := RemoveCard(s, tc.remove, t0)

			assert.Equal(t, tc.wantQueue, got.CardsQueue)
			assert.Equal(t, len(tc.wantQueue), got.TotalCards)
			assert.Equal(t, tc.wantIndex, got.CurrentIndex)
			assert.Equal(t, tc.wantState, got.Status)
			assert.Equal(t, tc.queue, s.CardsQueue, "input session is not mutated")
		})
	}
}

func TestSkipAndCurrentID(t *testing.T) {
	s := New("s", "d.csv", []int{8, 9}, t0)
	id, ok := CurrentID(s)
	assert.True(t, ok)
	assert.Equal(t, 8, id)

	s = Skip(s, t0)
	id, _ = CurrentID(s)
	assert.Equal(t, 9, id)
	assert.Equal(t, 0, s.Stats.Correct+s.Stats.Wrong)

	s = Skip(s, t0)
	_, ok = CurrentID(s)
	assert.False(t, ok)
	assert.Equal(t, domain.StatusCompleted, s.Status)
}
