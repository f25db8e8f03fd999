package parser

import (
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/conorfennell/leitner/internal/domain"
)

const (
	// EmptyQuestion replaces a question with neither text nor image.
	EmptyQuestion = "(empty question)"
	// EmptyAnswer replaces an answer with neither text nor image.
	EmptyAnswer = "(empty answer)"

	maxFields    = 100
	sampleLines  = 10
	answerJoiner = ", "
)

// candidateSeparators is the detection order; see DetectSeparator.
var candidateSeparators = []byte{';', ','}

var lineBreak = regexp.MustCompile(`\r\n|\n|\r`)

// ParseFile reads a deck file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseReader(file)
}

// ParseReader reads all of r and extracts all cards.
func ParseReader(r io.Reader) ([]domain.Card, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(data)), nil
}

// Parse turns delimited text into cards. It never fails: malformed rows are
// repaired with defaults. The first non-blank line is a header and is skipped.
// A leading byte-order mark is ignored.
func Parse(text string) []domain.Card {
	lines := splitLines(strings.TrimPrefix(text, "\ufeff"))
	if len(lines) == 0 {
		return nil
	}

	sample := lines
	if len(sample) > sampleLines {
		sample = sample[:sampleLines]
	}
	sep := DetectSeparator(sample)

	cards := make([]domain.Card, 0, len(lines)-1)
	for i, line := range lines[1:] {
		card := cardFromFields(tokenize(line, sep))
		card.ID = i
		cards = append(cards, card)
	}
	return cards
}

// splitLines splits on any line ending and drops blank lines.
func splitLines(text string) []string {
	var lines []string
	for _, line := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// DetectSeparator picks the separator that splits the most sample lines into
// more than one field. Candidates are tried in the order ';' then ','; a later
// candidate replaces an earlier one only with a strictly higher count, so ';'
// wins ties.
func DetectSeparator(sample []string) byte {
	best := candidateSeparators[0]
	bestScore := -1
	for _, sep := range candidateSeparators {
		score := 0
		for _, line := range sample {
			if strings.Count(line, string(sep)) > 0 {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sep, score
		}
	}
	return best
}

// tokenize splits one line into trimmed fields. A field is either a quoted
// string, where "" stands for a literal quote, or a bare run up to the next
// separator. Text between a closing quote and the next separator is kept.
func tokenize(line string, sep byte) []string {
	var fields []string
	i := 0
	for len(fields) < maxFields {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}

		var b strings.Builder
		if i < len(line) && line[i] == '"' {
			i++
			for i < len(line) {
				if line[i] == '"' {
					if i+1 < len(line) && line[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(line[i])
				i++
			}
		}
		end := strings.IndexByte(line[i:], sep)
		if end < 0 {
			end = len(line) - i
		}
		b.WriteString(line[i : i+end])
		i += end
		fields = append(fields, strings.TrimSpace(b.String()))

		if i >= len(line) {
			break
		}
		i++ // separator
	}
	return fields
}

func field(fields []string, i int) string {
	if i >= 0 && i < len(fields) {
		return fields[i]
	}
	return ""
}

func cardFromFields(fields []string) domain.Card {
	card := domain.Card{
		Question: field(fields, 0),
		QImage:   field(fields, 1),
	}

	if n := len(fields); n >= 6 {
		// Fixed trailing columns; everything between the question image and the
		// answer image is an answer that was split on an unescaped separator.
		card.LastReview = fields[n-1]
		card.Box = ParseBox(fields[n-2])
		card.AImage = fields[n-3]
		card.Answer = strings.Join(fields[2:n-3], answerJoiner)
	} else {
		card.Answer = field(fields, 2)
		card.AImage = field(fields, 3)
		card.Box = ParseBox(field(fields, 4))
		card.LastReview = field(fields, 5)
	}

	if card.Question == "" && card.QImage == "" {
		card.Question = EmptyQuestion
	}
	if card.Answer == "" && card.AImage == "" {
		card.Answer = EmptyAnswer
	}
	return card
}

// ParseBox reads the leading integer of s (optional sign, then digits) and
// returns it when it is a valid box. Anything else yields box 1.
func ParseBox(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return domain.MinBox
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return domain.MinBox
	}
	return domain.ClampBox(n)
}
