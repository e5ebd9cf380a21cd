package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// fakeEngine answers the handshake and replies to "go depth" with scripted
// lines pushed straight onto its output channel.
type fakeEngine struct {
	mu      sync.Mutex
	sent    []string
	lines   chan string
	closed  bool
	fen     string
	overlap int

	// script returns the lines for a search; a nil script answers
	// "bestmove e2e4".
	script func(fen string, depth int) []string
	// holdFEN withholds the bestmove for that position until release.
	holdFEN string
	held    []string
	holding chan struct{}
}

func newFakeEngine(script func(fen string, depth int) []string) *fakeEngine {
	return &fakeEngine{
		lines:   make(chan string, 1024),
		script:  script,
		holding: make(chan struct{}, 1),
	}
}

func (f *fakeEngine) launcher() Launcher {
	return func(context.Context) (Worker, error) { return f, nil }
}

func (f *fakeEngine) Send(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fake engine closed")
	}
	f.sent = append(f.sent, cmd)

	switch {
	case cmd == "uci":
		f.lines <- "id name Fake"
		f.lines <- "uciok"
	case cmd == "isready":
		f.lines <- "readyok"
	case cmd == "position startpos":
		f.fen = ""
	case strings.HasPrefix(cmd, "position fen "):
		f.fen = strings.TrimPrefix(cmd, "position fen ")
	case strings.HasPrefix(cmd, "go depth "):
		// a search is still producing output if anything is unread
		if len(f.lines) > 0 {
			f.overlap++
		}
		depth := 0
		for _, c := range strings.TrimPrefix(cmd, "go depth ") {
			depth = depth*10 + int(c-'0')
		}
		out := []string{"bestmove e2e4"}
		if f.script != nil {
			out = f.script(f.fen, depth)
		}
		if f.holdFEN != "" && f.fen == f.holdFEN {
			f.held = out[len(out)-1:]
			out = out[:len(out)-1]
			select {
			case f.holding <- struct{}{}:
			default:
			}
		}
		for _, l := range out {
			f.lines <- l
		}
	}
	return nil
}

func (f *fakeEngine) Lines() <-chan string { return f.lines }

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// release delivers the withheld bestmove.
func (f *fakeEngine) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.held {
		f.lines <- l
	}
	f.held = nil
	f.holdFEN = ""
}

// crash closes the output stream as if the process died.
func (f *fakeEngine) crash() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	close(f.lines)
}

func (f *fakeEngine) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeEngine) searches() []string {
	var out []string
	for _, c := range f.commands() {
		if strings.HasPrefix(c, "go depth ") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeEngine) overlaps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}
