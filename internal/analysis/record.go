package analysis

// Color identifies the side that made a move.
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return ""
	}
}

// Label is the qualitative verdict on a played move.
type Label string

const (
	LabelNone       Label = ""
	LabelBlunder    Label = "Blunder"
	LabelMistake    Label = "Mistake"
	LabelInaccuracy Label = "Inaccuracy"
	LabelBest       Label = "Best"
	LabelExcellent  Label = "Excellent"
	LabelGood       Label = "Good"
)

// Move is the move that led into a record's position.
type Move struct {
	UCI   string
	SAN   string
	Color Color
}

// Record holds everything known about one ply. Ply 0 is the initial
// position and has no Played move.
type Record struct {
	FEN    string
	Played *Move

	Eval      Evaluation
	BestMove  string
	Principal []string
	Depth     int
	Pass1Done bool
	Pass2Done bool

	// Loss and Label describe Played. They stay unset until both this record
	// and the previous one have an evaluation.
	Loss  *int
	Label Label
}

// NewRecord returns an unanalyzed record for a position.
func NewRecord(fen string, played *Move) Record {
	r := Record{FEN: fen}
	if played != nil {
		mv := *played
		r.Played = &mv
	}
	return r
}

func (r Record) Classified() bool { return r.Label != LabelNone && r.Loss != nil }

func (r Record) clone() Record {
	out := r
	if r.Played != nil {
		mv := *r.Played
		out.Played = &mv
	}
	if r.Principal != nil {
		out.Principal = append([]string(nil), r.Principal...)
	}
	if r.Loss != nil {
		v := *r.Loss
		out.Loss = &v
	}
	return out
}
