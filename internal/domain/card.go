package domain

// Box bounds for the Leitner method.
const (
	MinBox = 1
	MaxBox = 5
)

// Difficulty is the learner's self-assessed difficulty for a card.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties or unset.
func (d Difficulty) Valid() bool {
	switch d {
	case "", DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Card represents a single flashcard parsed from one CSV data row.
type Card struct {
	ID         int        `json:"id"`
	Question   string     `json:"question"`
	QImage     string     `json:"qImage"`
	Answer     string     `json:"answer"`
	AImage     string     `json:"aImage"`
	Box        int        `json:"box"`
	LastReview string     `json:"lastReview"`
	Difficulty Difficulty `json:"difficulty"`
}

// CardState is the persisted review state of a card, keyed by deck filename and card id.
type CardState struct {
	Box        int        `json:"box"`
	LastReview string     `json:"lastReview"`
	Difficulty Difficulty `json:"difficulty"`
}

// DeckStats counts completed 5 -> 1 mastery laps for a deck.
type DeckStats struct {
	Cycles int `json:"cycles"`
}

// ClampBox returns box when it lies in [MinBox, MaxBox] and MinBox otherwise.
func ClampBox(box int) int {
	if box < MinBox || box > MaxBox {
		return MinBox
	}
	return box
}

// Deck is an ordered set of cards identified by the file it was loaded from.
type Deck struct {
	Filename string `json:"filename"`
	Cards    []Card `json:"cards"`
}

// Find returns a pointer into the deck for the card with the given id.
func (d *Deck) Find(id int) (*Card, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Cards {
		if d.Cards[i].ID == id {
			return &d.Cards[i], true
		}
	}
	return nil, false
}

// Remove deletes the card with the given id. It reports whether a card was removed.
func (d *Deck) Remove(id int) bool {
	for i := range d.Cards {
		if d.Cards[i].ID == id {
			d.Cards = append(d.Cards[:i], d.Cards[i+1:]...)
			return true
		}
	}
	return false
}

// IDs returns the card ids in deck order.
func (d *Deck) IDs() []int {
	ids := make([]int, 0, len(d.Cards))
	for _, c := range d.Cards {
		ids = append(ids, c.ID)
	}
	return ids
}

// InBox returns copies of the cards currently in box, in deck order.
func (d *Deck) InBox(box int) []Card {
	var cards []Card
	for _, c := range d.Cards {
		if c.Box == box {
			cards = append(cards, c)
		}
	}
	return cards
}

// SourceConfig holds the coordinates of a remote repository hosting deck files and images.
type SourceConfig struct {
	Owner  string `json:"owner" koanf:"owner"`
	Repo   string `json:"repo" koanf:"repo"`
	Branch string `json:"branch" koanf:"branch" validate:"required"`
	Path   string `json:"path" koanf:"path"`
}
