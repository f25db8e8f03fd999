package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/domain"
)

// cardStates is the persisted document: filename -> card id -> record.
// A record is either a legacy bare box number or a structured object.
type cardStates map[string]map[string]json.RawMessage

// record is a decoded card state; nil fields were absent from storage.
type record struct {
	Box        *int               `json:"box"`
	LastReview *string            `json:"lastReview"`
	Difficulty *domain.Difficulty `json:"difficulty"`
}

func decodeRecord(raw json.RawMessage) (record, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return record{}, false
	}
	if raw[0] != '{' {
		var box float64
		if err := json.Unmarshal(raw, &box); err != nil {
			return record{}, false
		}
		b := int(box)
		return record{Box: &b}, true
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, false
	}
	return rec, true
}

// CardStates persists per-card review state scoped by deck filename.
type CardStates struct {
	kv  KV
	log *zap.Logger
}

func NewCardStates(kv KV, log *zap.Logger) *CardStates {
	return &CardStates{kv: kv, log: log}
}

func (s *CardStates) load(ctx context.Context) (cardStates, error) {
	all, err := loadDocument[cardStates](ctx, s.kv, s.log, KeyCardState)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = cardStates{}
	}
	return all, nil
}

func (s *CardStates) records(ctx context.Context, filename string) (map[int]record, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]record, len(all[filename]))
	for key, raw := range all[filename] {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if rec, ok := decodeRecord(raw); ok {
			out[id] = rec
		}
	}
	return out, nil
}

// State returns the stored state of every card of a deck. Unknown decks and
// undecodable records are simply absent from the result.
func (s *CardStates) State(ctx context.Context, filename string) (map[int]domain.CardState, error) {
	recs, err := s.records(ctx, filename)
	if err != nil {
		return nil, err
	}
	out := make(map[int]domain.CardState, len(recs))
	for id, rec := range recs {
		var st domain.CardState
		if rec.Box != nil {
			st.Box = *rec.Box
		}
		if rec.LastReview != nil {
			st.LastReview = *rec.LastReview
		}
		if rec.Difficulty != nil {
			st.Difficulty = *rec.Difficulty
		}
		out[id] = st
	}
	return out, nil
}

// Apply overwrites box, last review and difficulty of each card that has a
// stored record, touching only the fields present in storage. It mutates and
// returns deck.
func (s *CardStates) Apply(ctx context.Context, filename string, deck *domain.Deck) (*domain.Deck, error) {
	recs, err := s.records(ctx, filename)
	if err != nil {
		return deck, err
	}
	for i := range deck.Cards {
		rec, ok := recs[deck.Cards[i].ID]
		if !ok {
			continue
		}
		if rec.Box != nil && *rec.Box != 0 {
			deck.Cards[i].Box = domain.ClampBox(*rec.Box)
		}
		if rec.LastReview != nil {
			deck.Cards[i].LastReview = *rec.LastReview
		}
		if rec.Difficulty != nil {
			deck.Cards[i].Difficulty = *rec.Difficulty
		}
	}
	return deck, nil
}

// Update upserts the state of one card.
func (s *CardStates) Update(ctx context.Context, filename string, cardID, box int, lastReview string, difficulty domain.Difficulty) error {
	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := setRecord(all, filename, cardID, domain.CardState{Box: box, LastReview: lastReview, Difficulty: difficulty}); err != nil {
		return err
	}
	return saveDocument(ctx, s.kv, KeyCardState, all)
}

// Reset puts every card of deck back into box 1 with no review history, both
// in memory and in storage.
func (s *CardStates) Reset(ctx context.Context, filename string, deck *domain.Deck) error {
	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	fresh := domain.CardState{Box: domain.MinBox}
	for i := range deck.Cards {
		c := &deck.Cards[i]
		c.Box = fresh.Box
		c.LastReview = fresh.LastReview
		c.Difficulty = fresh.Difficulty
		if err := setRecord(all, filename, c.ID, fresh); err != nil {
			return err
		}
	}
	return saveDocument(ctx, s.kv, KeyCardState, all)
}

func setRecord(all cardStates, filename string, cardID int, st domain.CardState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if all[filename] == nil {
		all[filename] = map[string]json.RawMessage{}
	}
	all[filename][strconv.Itoa(cardID)] = raw
	return nil
}
