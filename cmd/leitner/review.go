package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/session"
)

type action int

const (
	actionAnswer action = iota
	actionDelete
	actionQuit
)

type reply struct {
	action     action
	correct    bool
	difficulty domain.Difficulty
}

// parseReply reads "y", "n", "d" or "q", optionally followed by a difficulty
// letter, e.g. "y e" or "n hard".
func parseReply(line string) (reply, bool) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 || len(fields) > 2 {
		return reply{}, false
	}

	var r reply
	switch fields[0] {
	case "y", "yes":
		r.correct = true
	case "n", "no":
	case "d", "delete":
		return reply{action: actionDelete}, len(fields) == 1
	case "q", "quit":
		return reply{action: actionQuit}, len(fields) == 1
	default:
		return reply{}, false
	}

	if len(fields) == 2 {
		switch fields[1] {
		case "e", "easy":
			r.difficulty = domain.DifficultyEasy
		case "n", "normal":
			r.difficulty = domain.DifficultyNormal
		case "h", "hard":
			r.difficulty = domain.DifficultyHard
		default:
			return reply{}, false
		}
	}
	return r, true
}

// runReview drives a session from step until it ends, the learner quits or
// input runs out. Progress is stored after every answer.
func runReview(ctx context.Context, engine *session.Engine, step session.Step, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		switch {
		case step.Empty:
			_, _ = fmt.Fprintln(out, "no cards left in this session")
			return nil
		case step.Done:
			_, _ = fmt.Fprintf(out, "session complete: %d/%d correct\n", step.Summary.Correct, step.Summary.Total)
			return nil
		}

		card := step.Card
		_, _ = fmt.Fprintf(out, "\n[%d/%d] box %d\nQ: %s\n", step.Position, step.Total, card.Box, card.Question)
		if card.QImage != "" {
			_, _ = fmt.Fprintf(out, "   (image %s)\n", card.QImage)
		}
		_, _ = fmt.Fprint(out, "press enter to show the answer")
		if !scanner.Scan() {
			return scanner.Err()
		}
		_, _ = fmt.Fprintf(out, "A: %s\n", card.Answer)
		if card.AImage != "" {
			_, _ = fmt.Fprintf(out, "   (image %s)\n", card.AImage)
		}

		var r reply
		for {
			_, _ = fmt.Fprint(out, "correct? y/n [e/n/h], d delete, q quit: ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			var ok bool
			if r, ok = parseReply(scanner.Text()); ok {
				break
			}
		}

		var err error
		switch r.action {
		case actionQuit:
			_, _ = fmt.Fprintln(out, "session saved")
			return nil
		case actionDelete:
			step, err = engine.DeleteCard(ctx)
		default:
			var res session.AnswerResult
			res, err = engine.RecordAnswer(ctx, r.correct, r.difficulty)
			if err == nil {
				_, _ = fmt.Fprintf(out, "box %d -> %d\n", res.OldBox, res.NewBox)
				if res.CycleCompleted {
					_, _ = fmt.Fprintf(out, "mastery cycle completed (%d so far)\n", res.Cycles)
				}
				step = res.Next
			}
		}
		if err != nil {
			return err
		}
	}
}
