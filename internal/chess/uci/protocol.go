package uci

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedLine  = errors.New("malformed uci line")
	ErrUnknownMessage = errors.New("unknown uci message")
)

// NoMove is what engines print as the best move of a position without legal moves.
const NoMove = "(none)"

// Message is one inbound line from the engine, decoded.
type Message interface {
	message()
}

type UCIOK struct{}

type ReadyOK struct{}

// Score is reported from the point of view of the side to move.
type Score struct {
	Mate  bool
	Value int // centipawns, or moves to mate when Mate is set
}

// Info is an intermediate search report. Every field is optional.
type Info struct {
	Depth     int
	Score     *Score
	Principal []string
}

// BestMove terminates a search.
type BestMove struct {
	Move   string
	Ponder string
}

func (UCIOK) message()    {}
func (ReadyOK) message()  {}
func (Info) message()     {}
func (BestMove) message() {}

// ParseLine decodes a single engine output line. Lines the pipeline does not
// care about (id, option, copyprotection, ...) yield ErrUnknownMessage.
func ParseLine(line string) (Message, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, ErrUnknownMessage
	}
	switch parts[0] {
	case "uciok":
		return UCIOK{}, nil
	case "readyok":
		return ReadyOK{}, nil
	case "info":
		return parseInfo(parts[1:])
	case "bestmove":
		return parseBestMove(parts[1:])
	default:
		return nil, ErrUnknownMessage
	}
}

func parseInfo(parts []string) (Info, error) {
	var info Info
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "string":
			// free text until end of line
			return info, nil
		case "depth":
			if i+1 >= len(parts) {
				return Info{}, fmt.Errorf("%w: depth without value", ErrMalformedLine)
			}
			v, err := strconv.Atoi(parts[i+1])
			if err != nil {
				return Info{}, fmt.Errorf("%w: depth %q", ErrMalformedLine, parts[i+1])
			}
			info.Depth = v
			i++
		case "score":
			if i+2 >= len(parts) {
				return Info{}, fmt.Errorf("%w: truncated score", ErrMalformedLine)
			}
			v, err := strconv.Atoi(parts[i+2])
			if err != nil {
				return Info{}, fmt.Errorf("%w: score value %q", ErrMalformedLine, parts[i+2])
			}
			switch parts[i+1] {
			case "cp":
				info.Score = &Score{Value: v}
			case "mate":
				info.Score = &Score{Mate: true, Value: v}
			default:
				return Info{}, fmt.Errorf("%w: score kind %q", ErrMalformedLine, parts[i+1])
			}
			i += 2
		case "pv":
			moves := parts[i+1:]
			if len(moves) == 0 {
				return Info{}, fmt.Errorf("%w: empty pv", ErrMalformedLine)
			}
			for _, mv := range moves {
				if !IsMove(mv) {
					return Info{}, fmt.Errorf("%w: pv move %q", ErrMalformedLine, mv)
				}
			}
			info.Principal = append([]string(nil), moves...)
			return info, nil
		}
	}
	return info, nil
}

func parseBestMove(parts []string) (BestMove, error) {
	if len(parts) == 0 {
		return BestMove{}, fmt.Errorf("%w: bestmove without move", ErrMalformedLine)
	}
	bm := BestMove{Move: parts[0]}
	if bm.Move != NoMove && !IsMove(bm.Move) {
		return BestMove{}, fmt.Errorf("%w: bestmove %q", ErrMalformedLine, bm.Move)
	}
	if len(parts) >= 3 && parts[1] == "ponder" && IsMove(parts[2]) {
		bm.Ponder = parts[2]
	}
	return bm, nil
}

// IsMove reports whether s looks like a coordinate move (e2e4, e7e8q).
func IsMove(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if !isFile(s[0]) || !isRank(s[1]) || !isFile(s[2]) || !isRank(s[3]) {
		return false
	}
	if len(s) == 5 {
		switch s[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return false
		}
	}
	return true
}

func isFile(b byte) bool { return b >= 'a' && b <= 'h' }
func isRank(b byte) bool { return b >= '1' && b <= '8' }

// Outbound commands.

func PositionCommand(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return "position startpos"
	}
	return "position fen " + fen
}

func GoDepthCommand(depth int) string {
	return "go depth " + strconv.Itoa(depth)
}

func HashCommand(mb int) string {
	return fmt.Sprintf("setoption name Hash value %d", mb)
}
