package reviewpresenter

import (
	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/review"
	"github.com/park285/cheese-review/pkg/reviewdto"
)

func ToDTORecord(index int, r analysis.Record) reviewdto.Record {
	out := reviewdto.Record{
		Index:     index,
		FEN:       r.FEN,
		Eval:      ToDTOEvaluation(r.Eval),
		BestMove:  r.BestMove,
		Principal: append([]string(nil), r.Principal...),
		Depth:     r.Depth,
		Pass1Done: r.Pass1Done,
		Pass2Done: r.Pass2Done,
		Label:     string(r.Label),
	}
	if r.Played != nil {
		out.Played = &reviewdto.Move{
			UCI:   r.Played.UCI,
			SAN:   r.Played.SAN,
			Color: r.Played.Color.String(),
		}
	}
	if len(r.Principal) > 0 {
		out.PrincipalSAN = review.SANLine(r.FEN, r.Principal)
	}
	if r.Loss != nil {
		loss := *r.Loss
		out.Loss = &loss
	}
	return out
}

func ToDTORecords(list []analysis.Record) []reviewdto.Record {
	out := make([]reviewdto.Record, 0, len(list))
	for i, r := range list {
		out = append(out, ToDTORecord(i, r))
	}
	return out
}

func ToDTOEvaluation(e analysis.Evaluation) reviewdto.Evaluation {
	out := reviewdto.Evaluation{Kind: "none", Text: e.String()}
	switch e.Kind {
	case analysis.EvalCentipawns:
		pawns := e.Pawns
		out.Kind = "cp"
		out.Pawns = &pawns
	case analysis.EvalMate:
		mate := e.Mate
		out.Kind = "mate"
		out.Mate = &mate
	}
	if v, ok := e.PlotValue(); ok {
		out.Plot = &v
	}
	return out
}

func ToDTOEvent(u review.Update) reviewdto.RecordEvent {
	return reviewdto.RecordEvent{
		ReviewID: u.ReviewID,
		Index:    u.Index,
		Record:   ToDTORecord(u.Index, u.Record),
	}
}

func ToDTOProgress(summary string, p analysis.Progress) reviewdto.Progress {
	out := reviewdto.Progress{
		Summary:     summary,
		State:       p.State.String(),
		Unavailable: p.Unavailable,
		Plies:       p.Plies,
		Pass1:       p.Pass1,
		Pass2:       p.Pass2,
		Queued:      p.Queued,
	}
	if p.Current != nil {
		idx := p.Current.RecordIndex
		out.Current = &idx
	}
	return out
}

func ToDTOAccuracy(white, black analysis.SideAccuracy) reviewdto.Accuracy {
	return reviewdto.Accuracy{White: toDTOSide(white), Black: toDTOSide(black)}
}

func toDTOSide(a analysis.SideAccuracy) reviewdto.SideAccuracy {
	out := reviewdto.SideAccuracy{Moves: a.Moves}
	if a.Known() {
		avg := a.Average
		out.Average = &avg
	}
	return out
}
