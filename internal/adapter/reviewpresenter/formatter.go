package reviewpresenter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/cheese-review/pkg/reviewdto"
)

// Catalog keys used by the report.
const (
	msgHeader          = "report.header"
	msgAccuracy        = "report.accuracy"
	msgAccuracyUnknown = "report.accuracy_unknown"
	msgPending         = "report.pending"
)

// Texts renders keyed templates; *msgcat.Catalog satisfies it.
type Texts interface {
	Render(key string, data any) (string, error)
}

// Formatter renders review DTOs into plain text blocks.
type Formatter struct {
	texts Texts
}

func NewFormatter(texts Texts) *Formatter {
	return &Formatter{texts: texts}
}

func (f *Formatter) text(key string, data any, fallback string) string {
	if f == nil || f.texts == nil {
		return fallback
	}
	out, err := f.texts.Render(key, data)
	if err != nil {
		return fallback
	}
	return out
}

// Report is the full game listing: header, accuracy, then one line per ply.
func (f *Formatter) Report(records []reviewdto.Record, acc reviewdto.Accuracy, result string) string {
	plies := 0
	if len(records) > 0 {
		plies = len(records) - 1
	}

	var sb strings.Builder
	sb.WriteString(f.text(msgHeader, map[string]any{"Plies": plies}, fmt.Sprintf("Game review (%d plies)", plies)))
	if result != "" {
		sb.WriteString(" ")
		sb.WriteString(result)
	}
	sb.WriteString("\n")

	white, black := f.accuracy(acc.White), f.accuracy(acc.Black)
	sb.WriteString(f.text(msgAccuracy, map[string]any{"White": white, "Black": black},
		fmt.Sprintf("Accuracy  White %s  Black %s", white, black)))
	sb.WriteString("\n")

	for i, r := range records {
		if r.Played == nil {
			continue
		}
		alt := ""
		if i > 0 && len(records[i-1].PrincipalSAN) > 0 {
			alt = records[i-1].PrincipalSAN[0]
		}
		sb.WriteString(f.Line(r, alt))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Line renders one played move. alt is the engine's preferred move in the
// previous position, shown for moves that were not the best.
func (f *Formatter) Line(r reviewdto.Record, alt string) string {
	if r.Played == nil {
		return ""
	}
	moveNo := moveNumber(r)
	num := fmt.Sprintf("%d.", moveNo)
	if r.Played.Color == "black" {
		num = fmt.Sprintf("%d...", moveNo)
	}

	label := r.Label
	if label == "" {
		label = f.text(msgPending, nil, "pending")
	}
	line := fmt.Sprintf("%-6s %-8s %7s  %s", num, r.Played.SAN, r.Eval.Text, label)
	if r.Loss != nil {
		line += fmt.Sprintf(" (%d)", *r.Loss)
	}
	switch r.Label {
	case "", "Best", "Excellent":
	default:
		if alt != "" && alt != r.Played.SAN {
			line += "  best " + alt
		}
	}
	return strings.TrimRight(line, " ")
}

// moveNumber reads the full-move counter of the position after the move,
// which has already advanced when Black was the mover.
func moveNumber(r reviewdto.Record) int {
	fields := strings.Fields(r.FEN)
	if len(fields) == 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			if r.Played.Color == "black" && n > 1 {
				n--
			}
			return n
		}
	}
	return (r.Index + 1) / 2
}

func (f *Formatter) accuracy(a reviewdto.SideAccuracy) string {
	if a.Average == nil {
		return f.text(msgAccuracyUnknown, nil, "-")
	}
	return fmt.Sprintf("%.1f", *a.Average)
}
