package analysis

import (
	"math"
)

const (
	ThresholdBlunder    = 200
	ThresholdMistake    = 90
	ThresholdInaccuracy = 40
	ThresholdExcellent  = 5

	accuracyScale = 300.0
)

// Classification is the verdict for one played move.
type Classification struct {
	Loss  int
	Label Label
}

// Classify compares the evaluation before a move with the evaluation after it,
// from the mover's side. It reports false when either evaluation is missing;
// calling it again once both exist is safe.
//
// Loss is not clamped: a move the engine now likes better than its own
// earlier estimate yields a negative loss.
func Classify(before, after Record, played Move) (Classification, bool) {
	if !before.Eval.Present() || !after.Eval.Present() {
		return Classification{}, false
	}

	mult := 1.0
	if played.Color == Black {
		mult = -1
	}
	loss := int(math.Round(before.Eval.CP()*mult - after.Eval.CP()*mult))

	return Classification{Loss: loss, Label: label(loss, played.UCI, before.BestMove)}, true
}

func label(loss int, playedUCI, bestBefore string) Label {
	switch {
	case loss >= ThresholdBlunder:
		return LabelBlunder
	case loss >= ThresholdMistake:
		return LabelMistake
	case loss >= ThresholdInaccuracy:
		return LabelInaccuracy
	case bestBefore != "" && playedUCI == bestBefore:
		return LabelBest
	case loss <= ThresholdExcellent:
		return LabelExcellent
	default:
		return LabelGood
	}
}

// classifyInto stores the verdict for after.Played on after, or clears it
// when the data is not there yet.
func classifyInto(before Record, after *Record) bool {
	if after.Played == nil {
		return false
	}
	c, ok := Classify(before, *after, *after.Played)
	if !ok {
		after.Loss = nil
		after.Label = LabelNone
		return false
	}
	loss := c.Loss
	after.Loss = &loss
	after.Label = c.Label
	return true
}

// Accuracy maps a centipawn loss to a 0..100 score.
func Accuracy(loss int) float64 {
	l := math.Max(0, float64(loss))
	acc := 100 * math.Exp(-l/accuracyScale)
	return math.Max(0, math.Min(100, acc))
}

// SideAccuracy is the mean accuracy of one side's classified moves.
type SideAccuracy struct {
	Average float64
	Moves   int
}

func (a SideAccuracy) Known() bool { return a.Moves > 0 }

// GameAccuracy averages accuracy per side over classified moves only.
func GameAccuracy(records []Record) (white, black SideAccuracy) {
	var whiteSum, blackSum float64
	for _, r := range records {
		if r.Played == nil || !r.Classified() {
			continue
		}
		acc := Accuracy(*r.Loss)
		switch r.Played.Color {
		case White:
			whiteSum += acc
			white.Moves++
		case Black:
			blackSum += acc
			black.Moves++
		}
	}
	if white.Moves > 0 {
		white.Average = whiteSum / float64(white.Moves)
	}
	if black.Moves > 0 {
		black.Average = blackSum / float64(black.Moves)
	}
	return white, black
}
