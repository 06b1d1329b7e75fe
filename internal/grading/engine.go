package grading

import (
	"context"
	"errors"
	"math"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	ID           string
	CorrectIndex int
	Weight       float64
}

// Outcome is the result of grading a single response.
type Outcome struct {
	Correct bool
	Earned  float64
	Max     float64
}

// Grader grades one answer index against one question.
type Grader interface {
	Grade(ctx context.Context, q Q, answerIndex int) (Outcome, error)
}

type choiceGrader struct{}

// NewChoiceGrader grades single-choice questions by option index, awarding
// the full weight or nothing.
func NewChoiceGrader() Grader { return choiceGrader{} }

func (choiceGrader) Grade(_ context.Context, q Q, answerIndex int) (Outcome, error) {
	max := q.Weight
	if max <= 0 {
		max = 1
	}
	if answerIndex < 0 {
		return Outcome{Max: max}, errors.New("answer index must be non-negative")
	}
	out := Outcome{Max: max}
	if answerIndex == q.CorrectIndex {
		out.Correct = true
		out.Earned = max
	}
	return out, nil
}

// Percent grades every question with an answer and returns the weighted
// percentage, rounded and clamped to [0,100], alongside per-question
// outcomes. Unanswered questions count against the denominator.
func Percent(ctx context.Context, g Grader, qs []Q, answers map[string]int) (float64, map[string]Outcome, error) {
	outcomes := make(map[string]Outcome, len(qs))
	var earned, total float64
	for _, q := range qs {
		w := q.Weight
		if w <= 0 {
			w = 1
		}
		total += w
		idx, ok := answers[q.ID]
		if !ok {
			continue
		}
		out, err := g.Grade(ctx, q, idx)
		if err != nil {
			continue // ungradable response scores zero
		}
		outcomes[q.ID] = out
		earned += out.Earned
	}
	if total == 0 {
		return 0, outcomes, nil
	}
	pct := math.Round(100 * earned / total)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, outcomes, nil
}
