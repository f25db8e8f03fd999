package parser

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/conorfennell/leitner/internal/domain"
)

// Header is the canonical column layout of a deck file.
var Header = []string{
	"question_content",
	"question_content_image",
	"answer_content",
	"answer_content_image",
	"box_number",
	"last_reviewed",
}

var (
	ErrEmptyFile     = errors.New("empty csv file")
	ErrInvalidHeader = errors.New("invalid csv header")
)

const dateLayout = "2006-01-02"

// Import is the strict counterpart of Parse used when importing a deck for
// editing. Quoted fields may span lines, the header must match Header, and
// rows whose cells are all blank are dropped. Missing box numbers default to
// 1 and missing review dates to the day of now.
func Import(text string, now time.Time) ([]domain.Card, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	sample := lineBreak.Split(text, -1)
	if len(sample) > sampleLines {
		sample = sample[:sampleLines]
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = rune(DetectSeparator(sample))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = strings.TrimSpace(cell)
	}
	if strings.Join(header, ",") != strings.Join(Header, ",") {
		return nil, errors.Wrapf(ErrInvalidHeader, "got %q", strings.Join(header, string(r.Comma)))
	}

	var cards []domain.Card
	for _, row := range rows[1:] {
		values := make([]string, len(Header))
		blank := true
		for i := range values {
			if i < len(row) {
				values[i] = row[i]
			}
			if strings.TrimSpace(values[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		lastReview := values[5]
		if lastReview == "" {
			lastReview = now.Format(dateLayout)
		}
		cards = append(cards, domain.Card{
			ID:         len(cards),
			Question:   values[0],
			QImage:     values[1],
			Answer:     values[2],
			AImage:     values[3],
			Box:        ParseBox(values[4]),
			LastReview: lastReview,
		})
	}
	return cards, nil
}

// Export writes cards as a ';' separated deck file with a header row. Review
// timestamps are reduced to their date; cards never reviewed get the day of now.
// Line breaks inside fields become spaces so that every card stays on one line
// and Parse reads back the same card ids.
func Export(w io.Writer, cards []domain.Card, now time.Time) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, c := range cards {
		lastReview := now.Format(dateLayout)
		if c.LastReview != "" {
			lastReview, _, _ = strings.Cut(c.LastReview, "T")
		}
		record := []string{
			oneLine(c.Question),
			oneLine(c.QImage),
			oneLine(c.Answer),
			oneLine(c.AImage),
			strconv.Itoa(domain.ClampBox(c.Box)),
			lastReview,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write card %d", c.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func oneLine(s string) string {
	return lineBreak.ReplaceAllString(s, " ")
}
