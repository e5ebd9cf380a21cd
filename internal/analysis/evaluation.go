package analysis

import (
	"fmt"
	"math"
	"strings"
)

type EvalKind uint8

const (
	EvalNone EvalKind = iota
	EvalCentipawns
	EvalMate
)

const (
	// MateScore is the centipawn-equivalent magnitude of a forced mate.
	MateScore = 10000

	plotMateScore = 1500
	plotMaxCP     = 1000
)

// Evaluation is always stored from White's point of view.
type Evaluation struct {
	Kind  EvalKind
	Pawns float64 // EvalCentipawns, in pawn units
	Mate  int     // EvalMate, moves to mate; positive when White mates
	// MatedSide is set for a "mate 0" report, where the side to move is
	// already checkmated and Mate carries no sign.
	MatedSide Color
}

func Centipawns(pawns float64) Evaluation {
	return Evaluation{Kind: EvalCentipawns, Pawns: pawns}
}

func MateIn(n int) Evaluation {
	return Evaluation{Kind: EvalMate, Mate: n}
}

// Checkmated is the evaluation of a position where side has been mated.
func Checkmated(side Color) Evaluation {
	return Evaluation{Kind: EvalMate, MatedSide: side}
}

func (e Evaluation) Present() bool { return e.Kind != EvalNone }

// CP normalizes the evaluation to White-POV centipawns. Mates map to ±MateScore.
func (e Evaluation) CP() float64 {
	switch e.Kind {
	case EvalCentipawns:
		return e.Pawns * 100
	case EvalMate:
		if e.whiteMates() {
			return MateScore
		}
		return -MateScore
	default:
		return 0
	}
}

func (e Evaluation) whiteMates() bool {
	if e.Mate != 0 {
		return e.Mate > 0
	}
	return e.MatedSide == Black
}

// PlotValue is a chart-friendly White-POV centipawn value.
func (e Evaluation) PlotValue() (float64, bool) {
	switch e.Kind {
	case EvalCentipawns:
		return math.Max(-plotMaxCP, math.Min(plotMaxCP, e.Pawns*100)), true
	case EvalMate:
		if e.whiteMates() {
			return plotMateScore, true
		}
		return -plotMateScore, true
	default:
		return 0, false
	}
}

func (e Evaluation) String() string {
	switch e.Kind {
	case EvalCentipawns:
		return fmt.Sprintf("%+.2f", e.Pawns)
	case EvalMate:
		if e.Mate == 0 {
			return "#"
		}
		return fmt.Sprintf("M%d", e.Mate)
	default:
		return "N/A"
	}
}

// fromEngine converts a side-to-move relative engine score into a White-POV
// evaluation. Centipawn values are stored in pawn units.
func fromEngine(mate bool, value int, toMove Color) Evaluation {
	sign := 1
	if toMove == Black {
		sign = -1
	}
	if mate {
		if value == 0 {
			return Checkmated(toMove)
		}
		return MateIn(sign * value)
	}
	return Centipawns(float64(sign*value) / 100)
}

// sideToMove reads the active color field of a FEN. Anything unexpected is
// treated as White, which is also what "startpos" means.
func sideToMove(fen string) Color {
	fields := strings.Fields(fen)
	if len(fields) >= 2 && fields[1] == "b" {
		return Black
	}
	return White
}
