package analysis

import (
	"fmt"
)

// Catalog keys for progress texts.
const (
	MsgEngineUnavailable = "progress.engine_unavailable"
	MsgDeepComplete      = "progress.deep_complete"
	MsgQuickComplete     = "progress.quick_complete"
	MsgAnalyzing         = "progress.analyzing"
	MsgQuick             = "progress.quick"
)

// Renderer renders a keyed text template.
type Renderer interface {
	Render(key string, data any) (string, error)
}

// ProgressReporter turns a Progress snapshot into a status line.
type ProgressReporter struct {
	texts Renderer
}

func NewProgressReporter(texts Renderer) *ProgressReporter {
	return &ProgressReporter{texts: texts}
}

// Summary returns "" when there are no moves to report on.
func (r *ProgressReporter) Summary(p Progress) string {
	if p.Plies == 0 {
		return ""
	}
	key, data := progressMessage(p)
	if r.texts != nil {
		if out, err := r.texts.Render(key, data); err == nil {
			return out
		}
	}
	return fallbackText(key, data)
}

type progressData struct {
	Total  int
	Pass1  int
	Pass2  int
	Pass   int
	Index  int
	Depth  int
	Queued int
}

func progressMessage(p Progress) (string, progressData) {
	d := progressData{Total: p.Plies, Pass1: p.Pass1, Pass2: p.Pass2, Queued: p.Queued}
	switch {
	case p.Unavailable:
		return MsgEngineUnavailable, d
	case p.Pass2 >= p.Plies:
		return MsgDeepComplete, d
	case p.Pass1 >= p.Plies:
		return MsgQuickComplete, d
	case p.State == StateBusy && p.Current != nil:
		d.Pass = p.Current.Pass()
		d.Index = p.Current.RecordIndex
		d.Depth = p.Current.Depth
		return MsgAnalyzing, d
	default:
		return MsgQuick, d
	}
}

func fallbackText(key string, d progressData) string {
	switch key {
	case MsgEngineUnavailable:
		return "Engine unavailable"
	case MsgDeepComplete:
		return "Deep analysis complete"
	case MsgQuickComplete:
		return fmt.Sprintf("Quick analysis complete, deep: %d/%d", d.Pass2, d.Total)
	case MsgAnalyzing:
		return fmt.Sprintf("Analyzing (P%d): %d/%d...", d.Pass, d.Index, d.Total)
	default:
		return fmt.Sprintf("Quick analysis: %d/%d", d.Pass1, d.Total)
	}
}
