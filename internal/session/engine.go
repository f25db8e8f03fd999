package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/conorfennell/leitner/internal/clock"
	"github.com/conorfennell/leitner/internal/deck"
	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/leitner"
	"github.com/conorfennell/leitner/internal/parser"
	"github.com/conorfennell/leitner/internal/stats"
	"github.com/conorfennell/leitner/internal/storage"
)

// ReviewLayout is the timestamp format written to a card's last review.
const ReviewLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrNoDeck            = errors.New("no deck loaded")
	ErrNoActiveSession   = errors.New("no active session")
	ErrSessionCompleted  = errors.New("session already completed")
	ErrNoCurrentCard     = errors.New("no card under the cursor")
	ErrEmptySelection    = errors.New("no cards selected for review")
	ErrCardNotFound      = errors.New("card not found")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrDeckNotLoaded     = errors.New("session deck not loaded")
	ErrSessionNotFound   = storage.ErrSessionNotFound
)

// DeckRequiredError reports that a session can only continue once its deck
// is loaded. It matches ErrDeckNotLoaded.
type DeckRequiredError struct {
	DeckName string
}

func (e *DeckRequiredError) Error() string {
	return fmt.Sprintf("load deck %q to continue this session", e.DeckName)
}

func (e *DeckRequiredError) Is(target error) bool {
	return target == ErrDeckNotLoaded
}

// AppState is everything the engine holds in memory between calls.
type AppState struct {
	Deck     *domain.Deck
	Session  *domain.Session
	Resuming bool
}

type Summary struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Step is what the learner sees next: a card to review, the end-of-session
// summary, or an empty session.
type Step struct {
	Card     *domain.Card `json:"card,omitempty"`
	Position int          `json:"position,omitempty"`
	Total    int          `json:"total"`
	Done     bool         `json:"done"`
	Empty    bool         `json:"empty"`
	Summary  *Summary     `json:"summary,omitempty"`
}

type AnswerResult struct {
	CardID         int  `json:"cardId"`
	OldBox         int  `json:"oldBox"`
	NewBox         int  `json:"newBox"`
	CycleCompleted bool `json:"cycleCompleted"`
	Cycles         int  `json:"cycles,omitempty"`
	Next           Step `json:"next"`
}

type LoadResult struct {
	Deck     *domain.Deck `json:"deck"`
	Warnings []string     `json:"warnings,omitempty"`
	Step     *Step        `json:"step,omitempty"`
}

// CardEdit replaces the non-nil fields of a card.
type CardEdit struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
	QImage   *string `json:"qImage"`
	AImage   *string `json:"aImage"`
}

type BoxSummary struct {
	Box    int                `json:"box"`
	Count  int                `json:"count"`
	Review leitner.ReviewInfo `json:"review"`
}

// Report is the history listing together with its aggregates.
type Report struct {
	History stats.History `json:"history"`
	Entries []stats.Entry `json:"entries"`
}

// Engine drives review sessions over one loaded deck. It is not safe for
// concurrent use.
type Engine struct {
	kv       storage.KV
	cards    *storage.CardStates
	cycles   *storage.DeckStats
	sessions *storage.Sessions
	clock    clock.Clock
	newID    func() string
	log      *zap.Logger

	state AppState
}

type Option func(*Engine)

// WithIDGenerator overrides how session ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(kv storage.KV, clk clock.Clock, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		kv:       kv,
		cards:    storage.NewCardStates(kv, log),
		cycles:   storage.NewDeckStats(kv, log),
		sessions: storage.NewSessions(kv, log),
		clock:    clk,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns a snapshot of the in-memory state.
func (e *Engine) State() AppState {
	st := e.state
	if st.Session != nil {
		s := *st.Session
		st.Session = &s
	}
	return st
}

// LoadDeck parses text as the deck filename, applies stored card state and
// makes it the current deck. A session waiting for this deck is continued.
func (e *Engine) LoadDeck(ctx context.Context, filename, text string) (LoadResult, error) {
	d := &domain.Deck{Filename: filename, Cards: parser.Parse(text)}
	if _, err := e.cards.Apply(ctx, filename, d); err != nil {
		return LoadResult{}, err
	}

	warnings := deck.ValidateImages(filename, d.Cards)
	for _, w := range warnings {
		e.log.Warn("image path mismatch", zap.String("deck", filename), zap.String("warning", w))
	}
	if len(d.Cards) == 0 {
		e.log.Warn("deck has no cards", zap.String("deck", filename))
	}

	e.state.Deck = d
	res := LoadResult{Deck: d, Warnings: warnings}

	s := e.state.Session
	switch {
	case s == nil:
	case s.DeckName == filename && e.state.Resuming:
		e.state.Resuming = false
		step, err := e.continueSession(ctx)
		if err != nil {
			return res, err
		}
		res.Step = &step
	case s.DeckName != filename && !e.state.Resuming:
		e.state.Session = nil
	}

	e.log.Info("deck loaded", zap.String("deck", filename), zap.Int("cards", len(d.Cards)))
	return res, nil
}

// Start opens a new session over cards, in the given order.
func (e *Engine) Start(ctx context.Context, filename string, cards []domain.Card) (domain.Session, error) {
	if len(cards) == 0 {
		return domain.Session{}, ErrEmptySelection
	}
	ids := make([]int, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}

	s := New(e.newID(), filename, ids, e.clock.Now())
	if err := e.sessions.Prepend(ctx, s); err != nil {
		return domain.Session{}, err
	}
	e.state.Session = &s
	e.state.Resuming = false

	e.log.Info("session started", zap.String("session", s.ID), zap.String("deck", filename), zap.Int("cards", len(ids)))
	return s, nil
}

// StartBox reviews every card of box in deck order.
func (e *Engine) StartBox(ctx context.Context, box int) (domain.Session, error) {
	d, err := e.loadedDeck()
	if err != nil {
		return domain.Session{}, err
	}
	return e.Start(ctx, d.Filename, d.InBox(box))
}

// StartFromCard reviews the box of the given card, starting with that card.
func (e *Engine) StartFromCard(ctx context.Context, id int) (domain.Session, error) {
	d, err := e.loadedDeck()
	if err != nil {
		return domain.Session{}, err
	}
	card, ok := d.Find(id)
	if !ok {
		return domain.Session{}, errors.Wrapf(ErrCardNotFound, "card %d", id)
	}
	return e.Start(ctx, d.Filename, deck.PinFirst(d.InBox(card.Box), id))
}

func (e *Engine) loadedDeck() (*domain.Deck, error) {
	if e.state.Deck == nil {
		return nil, ErrNoDeck
	}
	return e.state.Deck, nil
}

// activeSession returns the current session once its deck is loaded.
func (e *Engine) activeSession() (*domain.Session, *domain.Deck, error) {
	s := e.state.Session
	if s == nil {
		return nil, nil, ErrNoActiveSession
	}
	d := e.state.Deck
	if d == nil || d.Filename != s.DeckName {
		return nil, nil, &DeckRequiredError{DeckName: s.DeckName}
	}
	return s, d, nil
}

// Advance moves to the next card still present in the deck. Queue entries
// for deleted cards are skipped. Past the end the session is persisted and
// its summary returned.
func (e *Engine) Advance(ctx context.Context) (Step, error) {
	s, d, err := e.activeSession()
	if err != nil {
		return Step{}, err
	}

	skipped := 0
	for {
		id, ok := CurrentID(*s)
		if !ok {
			break
		}
		if card, found := d.Find(id); found {
			if skipped > 0 {
				if err := e.sessions.Update(ctx, *s); err != nil {
					return Step{}, err
				}
			}
			c := *card
			return Step{Card: &c, Position: s.CurrentIndex + 1, Total: s.TotalCards}, nil
		}
		e.log.Debug("skipping card missing from deck", zap.String("session", s.ID), zap.Int("card", id))
		*s = Skip(*s, e.clock.Now())
		skipped++
	}

	*s = Touch(*s, e.clock.Now())
	if err := e.sessions.Update(ctx, *s); err != nil {
		return Step{}, err
	}
	return Step{
		Total:   s.TotalCards,
		Done:    true,
		Empty:   s.TotalCards == 0,
		Summary: &Summary{Correct: s.Stats.Correct, Total: s.TotalCards},
	}, nil
}

// RecordAnswer applies the box transition to the current card, persists it
// and the session, then advances.
func (e *Engine) RecordAnswer(ctx context.Context, correct bool, difficulty domain.Difficulty) (AnswerResult, error) {
	s, d, err := e.activeSession()
	if err != nil {
		return AnswerResult{}, err
	}
	if s.Finished() {
		return AnswerResult{}, ErrSessionCompleted
	}
	if difficulty == "" {
		difficulty = domain.DifficultyNormal
	}
	if !difficulty.Valid() {
		return AnswerResult{}, errors.Wrapf(ErrInvalidDifficulty, "%q", difficulty)
	}

	now := e.clock.Now()
	id, _ := CurrentID(*s)
	res := AnswerResult{CardID: id}

	if card, ok := d.Find(id); ok {
		out := leitner.Transition(card.Box, correct)
		res.OldBox = domain.ClampBox(card.Box)
		res.NewBox = out.Box

		reviewed := now.UTC().Format(ReviewLayout)
		if err := e.cards.Update(ctx, d.Filename, card.ID, out.Box, reviewed, difficulty); err != nil {
			return AnswerResult{}, err
		}
		card.Box = out.Box
		card.LastReview = reviewed
		card.Difficulty = difficulty

		// The cycle only counts once the card write has landed.
		if out.CycleCompleted {
			n, err := e.cycles.Increment(ctx, d.Filename)
			if err != nil {
				return AnswerResult{}, err
			}
			res.CycleCompleted = true
			res.Cycles = n
			e.log.Info("mastery cycle completed", zap.String("deck", d.Filename), zap.Int("cycles", n))
		}
	}

	*s = Answer(*s, correct, now)
	if err := e.sessions.Update(ctx, *s); err != nil {
		return AnswerResult{}, err
	}

	next, err := e.Advance(ctx)
	if err != nil {
		return AnswerResult{}, err
	}
	res.Next = next
	return res, nil
}

// Resume makes a stored session current. If its deck is not the loaded one
// the session stays pending and a *DeckRequiredError is returned; loading
// that deck continues it.
func (e *Engine) Resume(ctx context.Context, id string) (Step, error) {
	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		return Step{}, err
	}
	e.state.Session = &s
	e.state.Resuming = true

	if e.state.Deck == nil || e.state.Deck.Filename != s.DeckName {
		e.log.Info("session waiting for deck", zap.String("session", id), zap.String("deck", s.DeckName))
		return Step{}, &DeckRequiredError{DeckName: s.DeckName}
	}
	e.state.Resuming = false
	return e.continueSession(ctx)
}

// continueSession starts a new round when the current session is finished,
// then advances.
func (e *Engine) continueSession(ctx context.Context) (Step, error) {
	s, d, err := e.activeSession()
	if err != nil {
		return Step{}, err
	}
	if s.Finished() {
		*s = NewRound(*s, d.IDs(), e.clock.Now())
		if err := e.sessions.Update(ctx, *s); err != nil {
			return Step{}, err
		}
		e.log.Info("new round", zap.String("session", s.ID), zap.Int("cards", s.TotalCards))
	}
	return e.Advance(ctx)
}

// DeleteCard removes the current card from the deck and the session queue.
// The CSV source is not rewritten.
func (e *Engine) DeleteCard(ctx context.Context) (Step, error) {
	s, d, err := e.activeSession()
	if err != nil {
		return Step{}, err
	}
	id, ok := CurrentID(*s)
	if !ok {
		return Step{}, ErrNoCurrentCard
	}

	d.Remove(id)
	*s = RemoveCard(*s, id, e.clock.Now())
	if err := e.sessions.Update(ctx, *s); err != nil {
		return Step{}, err
	}
	e.log.Info("card deleted", zap.String("deck", d.Filename), zap.Int("card", id))

	if s.TotalCards == 0 {
		return Step{Empty: true}, nil
	}
	return e.Advance(ctx)
}

// EditCard changes the text or images of a card in the loaded deck.
func (e *Engine) EditCard(_ context.Context, id int, edit CardEdit) (domain.Card, error) {
	d, err := e.loadedDeck()
	if err != nil {
		return domain.Card{}, err
	}
	card, ok := d.Find(id)
	if !ok {
		return domain.Card{}, errors.Wrapf(ErrCardNotFound, "card %d", id)
	}
	if edit.Question != nil {
		card.Question = *edit.Question
	}
	if edit.Answer != nil {
		card.Answer = *edit.Answer
	}
	if edit.QImage != nil {
		card.QImage = *edit.QImage
	}
	if edit.AImage != nil {
		card.AImage = *edit.AImage
	}
	return *card, nil
}

// ResetDeck puts every card of the loaded deck back into box 1.
func (e *Engine) ResetDeck(ctx context.Context) error {
	d, err := e.loadedDeck()
	if err != nil {
		return err
	}
	if err := e.cards.Reset(ctx, d.Filename, d); err != nil {
		return err
	}
	e.log.Info("deck reset", zap.String("deck", d.Filename))
	return nil
}

func (e *Engine) Sessions(ctx context.Context) ([]domain.Session, error) {
	return e.sessions.List(ctx)
}

// DeleteSession removes a stored session, dropping it from memory if current.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	if err := e.sessions.Delete(ctx, id); err != nil {
		return err
	}
	if e.state.Session != nil && e.state.Session.ID == id {
		e.state.Session = nil
		e.state.Resuming = false
	}
	return nil
}

// ClearAll erases sessions, card state and cycle counters. The loaded deck
// is dropped since its boxes came from the erased state.
func (e *Engine) ClearAll(ctx context.Context) error {
	if err := storage.ClearAll(ctx, e.kv); err != nil {
		return err
	}
	e.state = AppState{}
	e.log.Info("history cleared")
	return nil
}

// History lists stored sessions with their aggregates.
func (e *Engine) History(ctx context.Context) (Report, error) {
	list, err := e.sessions.List(ctx)
	if err != nil {
		return Report{}, err
	}
	cycles, err := e.cycles.All(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{History: stats.Aggregate(list), Entries: stats.Entries(list, cycles)}, nil
}

// Boxes summarizes every box of the loaded deck at the engine's current time.
func (e *Engine) Boxes() ([]BoxSummary, error) {
	d, err := e.loadedDeck()
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	out := make([]BoxSummary, 0, domain.MaxBox)
	for box := domain.MinBox; box <= domain.MaxBox; box++ {
		cards := d.InBox(box)
		out = append(out, BoxSummary{
			Box:    box,
			Count:  len(cards),
			Review: leitner.NextReviewInfo(box, cards, now),
		})
	}
	return out, nil
}

// Current returns the card under the session cursor.
func (e *Engine) Current() (domain.Card, bool) {
	s, d, err := e.activeSession()
	if err != nil {
		return domain.Card{}, false
	}
	id, ok := CurrentID(*s)
	if !ok {
		return domain.Card{}, false
	}
	card, ok := d.Find(id)
	if !ok {
		return domain.Card{}, false
	}
	return *card, true
}
