package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/domain"
)

// DeckStats persists the per-deck mastery cycle counters.
type DeckStats struct {
	kv  KV
	log *zap.Logger
}

func NewDeckStats(kv KV, log *zap.Logger) *DeckStats {
	return &DeckStats{kv: kv, log: log}
}

// All returns the counters of every deck.
func (s *DeckStats) All(ctx context.Context) (map[string]domain.DeckStats, error) {
	all, err := loadDocument[map[string]domain.DeckStats](ctx, s.kv, s.log, KeyDeckStats)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string]domain.DeckStats{}
	}
	return all, nil
}

// Get returns the counters of one deck, zero if none were recorded.
func (s *DeckStats) Get(ctx context.Context, filename string) (domain.DeckStats, error) {
	all, err := s.All(ctx)
	if err != nil {
		return domain.DeckStats{}, err
	}
	return all[filename], nil
}

// Increment adds one completed cycle to the deck and returns the new count.
func (s *DeckStats) Increment(ctx context.Context, filename string) (int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	st := all[filename]
	st.Cycles++
	all[filename] = st
	if err := saveDocument(ctx, s.kv, KeyDeckStats, all); err != nil {
		return 0, err
	}
	return st.Cycles, nil
}
