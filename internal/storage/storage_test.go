package storage

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "leitner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testDeck() *domain.Deck {
	return &domain.Deck{
		Filename: "geo_capitals.csv",
		Cards: []domain.Card{
			{ID: 0, Question: "France", Answer: "Paris", Box: 1},
			{ID: 1, Question: "Spain", Answer: "Madrid", Box: 2},
			{ID: 2, Question: "Italy", Answer: "Rome", Box: 3, LastReview: "2024-01-01"},
		},
	}
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, ok, err := db.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Put(ctx, "k", "v1"))
	require.NoError(t, db.Put(ctx, "k", "v2"))
	v, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, db.Delete(ctx, "k", "never-existed"))
	_, ok, err = db.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVErrorsAreWrapped(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	db := New(conn)
	ctx := context.Background()
	boom := errors.New("disk on fire")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv WHERE key = ?")).
		WithArgs(KeySessions).
		WillReturnError(boom)
	_, _, err = db.Get(ctx, KeySessions)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "failed to read key "+KeySessions)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv")).
		WithArgs(KeyDeckStats, `{}`, sqlmock.AnyArg()).
		WillReturnError(boom)
	err = db.Put(ctx, KeyDeckStats, `{}`)
	assert.True(t, errors.Is(err, boom))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv WHERE key = ?")).
		WithArgs(KeySessions).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv WHERE key = ?")).
		WithArgs(KeyCardState).
		WillReturnError(boom)
	err = ClearAll(ctx, db)
	assert.True(t, errors.Is(err, boom))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardStates(t *testing.T) {
	ctx := context.Background()

	t.Run("update then apply", func(t *testing.T) {
		store := NewCardStates(openTestDB(t), zap.NewNop())
		require.NoError(t, store.Update(ctx, "geo_capitals.csv", 1, 4, "2025-01-01T00:00:00.000Z", domain.DifficultyHard))

		deck, err := store.Apply(ctx, "geo_capitals.csv", testDeck())
		require.NoError(t, err)
		assert.Equal(t, 4, deck.Cards[1].Box)
		assert.Equal(t, "2025-01-01T00:00:00.000Z", deck.Cards[1].LastReview)
		assert.Equal(t, domain.DifficultyHard, deck.Cards[1].Difficulty)
		assert.Equal(t, 1, deck.Cards[0].Box, "cards without a record are untouched")
	})

	t.Run("state is scoped by filename", func(t *testing.T) {
		store := NewCardStates(openTestDB(t), zap.NewNop())
		require.NoError(t, store.Update(ctx, "a.csv", 0, 3, "", ""))

		st, err := store.State(ctx, "b.csv")
		require.NoError(t, err)
		assert.Empty(t, st)

		st, err = store.State(ctx, "a.csv")
		require.NoError(t, err)
		assert.Equal(t, map[int]domain.CardState{0: {Box: 3}}, st)
	})

	t.Run("legacy and partial records", func(t *testing.T) {
		db := openTestDB(t)
		require.NoError(t, db.Put(ctx, KeyCardState,
			`{"geo_capitals.csv":{"0":4,"1":{"lastReview":"2024-05-05"},"2":{"box":0,"difficulty":"easy"},"x":3}}`))
		store := NewCardStates(db, zap.NewNop())

		deck, err := store.Apply(ctx, "geo_capitals.csv", testDeck())
		require.NoError(t, err)
		assert.Equal(t, 4, deck.Cards[0].Box)
		assert.Equal(t, 2, deck.Cards[1].Box)
		assert.Equal(t, "2024-05-05", deck.Cards[1].LastReview)
		assert.Equal(t, 3, deck.Cards[2].Box, "a zero box is not applied")
		assert.Equal(t, "2024-01-01", deck.Cards[2].LastReview)
		assert.Equal(t, domain.DifficultyEasy, deck.Cards[2].Difficulty)
	})

	t.Run("out of range stored box is clamped", func(t *testing.T) {
		db := openTestDB(t)
		require.NoError(t, db.Put(ctx, KeyCardState, `{"geo_capitals.csv":{"1":{"box":200}}}`))
		deck, err := NewCardStates(db, zap.NewNop()).Apply(ctx, "geo_capitals.csv", testDeck())
		require.NoError(t, err)
		assert.Equal(t, 1, deck.Cards[1].Box)
	})

	t.Run("corrupted document reads as empty", func(t *testing.T) {
		db := openTestDB(t)
		require.NoError(t, db.Put(ctx, KeyCardState, `{not json`))
		store := NewCardStates(db, zap.NewNop())

		st, err := store.State(ctx, "geo_capitals.csv")
		require.NoError(t, err)
		assert.Empty(t, st)

		require.NoError(t, store.Update(ctx, "geo_capitals.csv", 0, 2, "", ""))
		st, err = store.State(ctx, "geo_capitals.csv")
		require.NoError(t, err)
		assert.Equal(t, 2, st[0].Box)
	})

	t.Run("reset is idempotent", func(t *testing.T) {
		store := NewCardStates(openTestDB(t), zap.NewNop())
		deck := testDeck()
		deck.Cards[2].Difficulty = domain.DifficultyHard
		require.NoError(t, store.Update(ctx, deck.Filename, 2, 3, "2024-01-01", domain.DifficultyHard))

		require.NoError(t, store.Reset(ctx, deck.Filename, deck))
		first, err := store.State(ctx, deck.Filename)
		require.NoError(t, err)
		require.NoError(t, store.Reset(ctx, deck.Filename, deck))
		second, err := store.State(ctx, deck.Filename)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, second, 3)
		for id, st := range second {
			assert.Equal(t, domain.CardState{Box: 1}, st, "card %d", id)
		}
		for _, c := range deck.Cards {
			assert.Equal(t, 1, c.Box)
			assert.Empty(t, c.LastReview)
			assert.Empty(t, c.Difficulty)
		}
	})
}

func TestDeckStats(t *testing.T) {
	ctx := context.Background()
	store := NewDeckStats(openTestDB(t), zap.NewNop())

	st, err := store.Get(ctx, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Cycles)

	n, err := store.Increment(ctx, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.Increment(ctx, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.DeckStats{"a.csv": {Cycles: 2}}, all)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	store := NewSessions(openTestDB(t), zap.NewNop())

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.Prepend(ctx, domain.Session{ID: "s1", DeckName: "a.csv", TotalCards: 2}))
	require.NoError(t, store.Prepend(ctx, domain.Session{ID: "s2", DeckName: "a.csv", TotalCards: 3}))

	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID, "newest first")

	require.NoError(t, store.Update(ctx, domain.Session{ID: "s1", DeckName: "a.csv", TotalCards: 2, CurrentIndex: 1}))
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentIndex)

	require.NoError(t, store.Update(ctx, domain.Session{ID: "ghost"}))
	_, err = store.Get(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	require.NoError(t, store.Delete(ctx, "s2"))
	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewSources(db, zap.NewNop())
	defaults := domain.SourceConfig{Owner: "leitexper1", Repo: "decks", Branch: "main", Path: "docs/"}

	cfg, err := store.Load(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, cfg)

	saved, err := store.Save(ctx, domain.SourceConfig{Owner: " me ", Repo: "cards"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceConfig{Owner: "me", Repo: "cards", Branch: "main"}, saved)

	cfg, err = store.Load(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, saved, cfg)

	require.NoError(t, db.Put(ctx, KeyConfig, `{"owner":"partial"}`))
	cfg, err = store.Load(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, "partial", cfg.Owner)
	assert.Equal(t, "decks", cfg.Repo)
}

func TestClearAllKeepsSourceConfig(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.Put(ctx, KeySessions, `[]`))
	require.NoError(t, db.Put(ctx, KeyCardState, `{}`))
	require.NoError(t, db.Put(ctx, KeyDeckStats, `{}`))
	require.NoError(t, db.Put(ctx, KeyConfig, `{"owner":"me"}`))

	require.NoError(t, ClearAll(ctx, db))

	for _, key := range []string{KeySessions, KeyCardState, KeyDeckStats} {
		_, ok, err := db.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
	_, ok, err := db.Get(ctx, KeyConfig)
	require.NoError(t, err)
	assert.True(t, ok)
}
