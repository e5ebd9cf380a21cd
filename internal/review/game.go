package review

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-review/internal/analysis"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrEmptyGame       = errors.New("empty game")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidGame     = errors.New("invalid game")
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// line is the game history behind the record table: one position per ply.
type line struct {
	positions []*nchess.Position
	records   []analysis.Record
	result    string
}

func lineFromPGN(pgn string) (line, error) {
	if strings.TrimSpace(pgn) == "" {
		return line{}, ErrEmptyGame
	}
	opt, err := nchess.PGN(strings.NewReader(pgn))
	if err != nil {
		return line{}, fmt.Errorf("%w: %w", ErrInvalidGame, err)
	}
	game := nchess.NewGame(opt)

	positions := game.Positions()
	moves := game.Moves()
	if len(positions) != len(moves)+1 {
		return line{}, fmt.Errorf("%w: %d positions for %d moves", ErrInvalidGame, len(positions), len(moves))
	}

	l := line{
		positions: positions,
		records:   make([]analysis.Record, 0, len(positions)),
	}
	if game.Outcome() != nchess.NoOutcome {
		l.result = string(game.Outcome())
	}
	l.records = append(l.records, analysis.NewRecord(positions[0].String(), nil))
	for i, mv := range moves {
		before := positions[i]
		played := describeMove(before, mv)
		l.records = append(l.records, analysis.NewRecord(positions[i+1].String(), &played))
	}
	return l, nil
}

func lineFromFEN(fen string) (line, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		fen = StartFEN
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return line{}, fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	game := nchess.NewGame(opt)
	pos := game.Position()
	return line{
		positions: []*nchess.Position{pos},
		records:   []analysis.Record{analysis.NewRecord(pos.String(), nil)},
	}, nil
}

// applyMove plays moveText (UCI, or SAN as a fallback) from pos.
func applyMove(pos *nchess.Position, moveText string) (*nchess.Position, analysis.Move, error) {
	moveText = strings.TrimSpace(moveText)
	if moveText == "" {
		return nil, analysis.Move{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}

	opt, err := nchess.FEN(pos.String())
	if err != nil {
		return nil, analysis.Move{}, fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	game := nchess.NewGame(opt)
	before := game.Position()

	mv, err := nchess.UCINotation{}.Decode(before, strings.ToLower(moveText))
	if err != nil {
		mv, err = nchess.AlgebraicNotation{}.Decode(before, moveText)
		if err != nil {
			return nil, analysis.Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, moveText)
		}
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, analysis.Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, moveText)
	}
	return game.Position(), describeMove(before, mv), nil
}

func describeMove(before *nchess.Position, mv *nchess.Move) analysis.Move {
	color := analysis.White
	if before.Turn() == nchess.Black {
		color = analysis.Black
	}
	return analysis.Move{
		UCI:   strings.ToLower(nchess.UCINotation{}.Encode(before, mv)),
		SAN:   nchess.AlgebraicNotation{}.Encode(before, mv),
		Color: color,
	}
}

// SANLine converts a UCI principal variation into SAN starting from fen.
// Conversion stops at the first move that does not apply.
func SANLine(fen string, uciMoves []string) []string {
	if len(uciMoves) == 0 {
		return nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil
	}
	game := nchess.NewGame(opt)
	out := make([]string, 0, len(uciMoves))
	for _, text := range uciMoves {
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, text)
		if err != nil {
			break
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			break
		}
		out = append(out, san)
	}
	return out
}
