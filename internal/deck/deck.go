// Package deck holds read-side helpers over a loaded deck: grouping by box,
// display domain, image path conventions.
package deck

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/conorfennell/leitner/internal/domain"
)

// DefaultDomain is used for decks whose filename carries no domain prefix.
const DefaultDomain = "Misc"

const (
	questionImages = "images_questions"
	answerImages   = "images_reponses"
)

// ImageKind tells which side of a card an image belongs to.
type ImageKind int

const (
	QuestionImage ImageKind = iota
	AnswerImage
)

func (k ImageKind) String() string {
	if k == AnswerImage {
		return "answer"
	}
	return "question"
}

func (k ImageKind) folder() string {
	if k == AnswerImage {
		return answerImages
	}
	return questionImages
}

// baseName strips the directory and .csv extension from a deck filename.
func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		name = name[:len(name)-len(".csv")]
	}
	return name
}

// Domain derives a display domain from a deck filename: the capitalized part
// before the first underscore, e.g. "history_rome.csv" -> "History".
func Domain(filename string) string {
	if filename == "" {
		return DefaultDomain
	}
	prefix, _, found := strings.Cut(baseName(filename), "_")
	if !found || prefix == "" {
		return DefaultDomain
	}
	r, size := utf8.DecodeRuneInString(prefix)
	return string(unicode.ToUpper(r)) + prefix[size:]
}

// Group is the set of cards sharing a box.
type Group struct {
	Box   int           `json:"box"`
	Cards []domain.Card `json:"cards"`
}

// Overview groups cards by box in ascending box order, omitting empty boxes.
func Overview(cards []domain.Card) []Group {
	var groups []Group
	for box := domain.MinBox; box <= domain.MaxBox; box++ {
		var inBox []domain.Card
		for _, c := range cards {
			if c.Box == box {
				inBox = append(inBox, c)
			}
		}
		if len(inBox) > 0 {
			groups = append(groups, Group{Box: box, Cards: inBox})
		}
	}
	return groups
}

// PinFirst returns cards with the card identified by id moved to the front.
func PinFirst(cards []domain.Card, id int) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	for _, c := range cards {
		if c.ID == id {
			out = append(out, c)
		}
	}
	for _, c := range cards {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http") || strings.HasPrefix(p, "data:")
}

func cleanImagePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if strings.HasPrefix(p, "./") {
		return p[2:]
	}
	return strings.TrimPrefix(p, "/")
}

// ValidateImages checks that local image paths live in a folder named after
// the deck or its domain prefix. The result is advisory and never blocks loading.
func ValidateImages(filename string, cards []domain.Card) []string {
	base := baseName(filename)
	prefix, _, _ := strings.Cut(base, "_")
	lowerBase := strings.ToLower(base)
	lowerPrefix := strings.ToLower(prefix)

	var warnings []string
	check := func(line int, p string, kind ImageKind) {
		if p == "" || isRemote(p) {
			return
		}
		parts := strings.Split(cleanImagePath(p), "/")
		rooted := parts[0] == questionImages || parts[0] == answerImages

		var sub string
		switch {
		case rooted && len(parts) >= 3:
			sub = parts[1]
		case !rooted && len(parts) >= 2:
			sub = parts[0]
		}
		if sub == "" {
			return
		}
		lowerSub := strings.ToLower(sub)
		if !strings.HasPrefix(lowerBase, lowerSub) && !strings.HasPrefix(lowerSub, lowerPrefix) {
			warnings = append(warnings, fmt.Sprintf(
				"line %d (%s): folder %q does not match deck %q (expected %q... or %q)",
				line, kind, sub, base, prefix, base,
			))
		}
	}

	for i, c := range cards {
		check(i+1, c.QImage, QuestionImage)
		check(i+1, c.AImage, AnswerImage)
	}
	return warnings
}

// ImageURL resolves a card image reference. Absolute and data URLs are
// returned unchanged. Relative paths are placed under the side's image folder
// and, unless local is set, addressed in the configured source repository.
func ImageURL(p string, kind ImageKind, src domain.SourceConfig, local bool) string {
	if p == "" {
		return ""
	}
	if isRemote(p) {
		return p
	}

	clean := cleanImagePath(p)
	if !strings.HasPrefix(clean, questionImages+"/") && !strings.HasPrefix(clean, answerImages+"/") {
		clean = kind.folder() + "/" + clean
	}
	segments := strings.Split(clean, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	encoded := strings.Join(segments, "/")
	if local {
		return encoded
	}

	base := strings.TrimSuffix(src.Path, "/")
	switch {
	case strings.HasSuffix(base, "/csv"):
		base = strings.TrimSuffix(base, "/csv")
	case base == "csv":
		base = ""
	}
	if base != "" {
		base += "/"
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s%s", src.Owner, src.Repo, src.Branch, base, encoded)
}
