package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/leitner/internal/domain"
)

func TestAggregate(t *testing.T) {
	testCases := []struct {
		name     string
		sessions []domain.Session
		want     History
	}{
		{name: "no sessions", want: History{}},
		{
			name: "active sessions are ignored",
			sessions: []domain.Session{
				{TotalCards: 3, CurrentIndex: 1, Stats: domain.SessionStats{Correct: 1}},
			},
			want: History{},
		},
		{
			name: "rate is rounded",
			sessions: []domain.Session{
				{TotalCards: 3, CurrentIndex: 3, Stats: domain.SessionStats{Correct: 2, Wrong: 1}},
				{TotalCards: 2, CurrentIndex: 1, Stats: domain.SessionStats{Correct: 1}},
			},
			want: History{TotalReviewed: 3, SuccessRate: 67, CompletedSessions: 1},
		},
		{
			name: "answers count rather than queue length",
			sessions: []domain.Session{
				{TotalCards: 2, CurrentIndex: 2, Stats: domain.SessionStats{Correct: 3, Wrong: 1}},
			},
			want: History{TotalReviewed: 4, SuccessRate: 75, CompletedSessions: 1},
		},
		{
			name: "completed without answers",
			sessions: []domain.Session{
				{TotalCards: 0, CurrentIndex: 0},
			},
			want: History{CompletedSessions: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Aggregate(tc.sessions))
		})
	}
}

func TestDifficulties(t *testing.T) {
	cards := []domain.Card{
		{Difficulty: domain.DifficultyEasy},
		{Difficulty: domain.DifficultyHard},
		{Difficulty: domain.DifficultyHard},
		{Difficulty: ""},
		{Difficulty: "bogus"},
		{Difficulty: domain.DifficultyNormal},
	}
	assert.Equal(t, DifficultyCounts{Easy: 1, Normal: 3, Hard: 2}, Difficulties(cards))
}

func TestEntries(t *testing.T) {
	sessions := []domain.Session{
		{ID: "b", DeckName: "geo_capitals.csv", TotalCards: 4, CurrentIndex: 1, Stats: domain.SessionStats{Correct: 1}},
		{ID: "a", DeckName: "maths.csv", TotalCards: 2, CurrentIndex: 2, Stats: domain.SessionStats{Wrong: 2}},
	}
	cycles := map[string]domain.DeckStats{"geo_capitals.csv": {Cycles: 2}}

	entries := Entries(sessions, cycles)
	require.Len(t, entries, 2)

	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "Geo", entries[0].Domain)
	assert.Equal(t, domain.StatusActive, entries[0].Status)
	assert.Equal(t, 3, entries[0].Remaining)
	assert.Equal(t, 2, entries[0].Cycles)

	assert.Equal(t, "Misc", entries[1].Domain)
	assert.Equal(t, domain.StatusCompleted, entries[1].Status)
	assert.Equal(t, 0, entries[1].Remaining)
	assert.Equal(t, 0, entries[1].Cycles)
}
