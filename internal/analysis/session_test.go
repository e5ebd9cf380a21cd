package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	fenStart = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	fenE4    = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	fenE4E5  = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"
	fenE4D5  = "rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"
	fenMated = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
)

func openingRecords() []Record {
	return []Record{
		NewRecord(fenStart, nil),
		NewRecord(fenE4, &Move{UCI: "e2e4", SAN: "e4", Color: White}),
		NewRecord(fenE4E5, &Move{UCI: "e7e5", SAN: "e5", Color: Black}),
	}
}

func openingScript(fen string, depth int) []string {
	switch fen {
	case fenStart:
		return []string{"info depth 12 score cp 30 pv e2e4 e7e5", "bestmove e2e4 ponder e7e5"}
	case fenE4:
		return []string{
			"info depth 5 score cp -10 pv e7e5",
			"info depth 12 score cp -25 pv e7e5 g1f3",
			"bestmove e7e5 ponder g1f3",
		}
	case fenE4E5:
		return []string{"info depth 12 score cp 35 pv g1f3 b8c6", "bestmove g1f3"}
	default:
		return []string{"info depth 1 score cp 0", "bestmove a2a3"}
	}
}

type updates struct {
	mu  sync.Mutex
	got []int
}

func (u *updates) record(i int) {
	u.mu.Lock()
	u.got = append(u.got, i)
	u.mu.Unlock()
}

func (u *updates) list() []int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int(nil), u.got...)
}

func runSession(t *testing.T, s *Session, launch Launcher) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, launch) }()
	var once sync.Once
	var err error
	stop = func() error {
		once.Do(func() {
			cancel()
			err = <-done
		})
		return err
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 2*time.Millisecond)
}

func idle(s *Session) func() bool {
	return func() bool {
		p := s.Progress()
		return p.State == StateReady && p.Current == nil && p.Queued == 0
	}
}

func TestSessionCommitsInFIFOOrder(t *testing.T) {
	store := NewStore(openingRecords()...)
	eng := newFakeEngine(openingScript)
	s := NewSession(store, Options{})
	var u updates
	s.OnRecordUpdated(u.record)

	runSession(t, s, eng.launcher())
	assert.Equal(t, 3, s.EnqueueFullGame())
	waitFor(t, func() bool { return len(u.list()) == 3 })

	assert.Equal(t, []int{0, 1, 2}, u.list())
	assert.Equal(t, []string{"go depth 12", "go depth 12", "go depth 12"}, eng.searches())
	assert.Zero(t, eng.overlaps())

	cmds := eng.commands()
	require.GreaterOrEqual(t, len(cmds), 7)
	assert.Equal(t, []string{"uci", "setoption name Hash value 64", "isready"}, cmds[:3])
	assert.Equal(t, []string{"stop", "ucinewgame", "position fen " + fenStart, "go depth 12"}, cmds[3:7])

	r1, ok := store.Get(1)
	require.True(t, ok)
	// black to move, engine says -25 for black
	assert.Equal(t, Centipawns(0.25), r1.Eval)
	assert.Equal(t, "e7e5", r1.BestMove)
	assert.Equal(t, []string{"e7e5", "g1f3"}, r1.Principal)
	assert.Equal(t, 12, r1.Depth)
	assert.True(t, r1.Pass1Done)
	assert.False(t, r1.Pass2Done)
	require.NotNil(t, r1.Loss)
	assert.Equal(t, 5, *r1.Loss)
	assert.Equal(t, LabelBest, r1.Label)

	r2, _ := store.Get(2)
	require.NotNil(t, r2.Loss)
	assert.Equal(t, 10, *r2.Loss)
	assert.Equal(t, LabelBest, r2.Label)

	r0, _ := store.Get(0)
	assert.Nil(t, r0.Loss)
	assert.Equal(t, LabelNone, r0.Label)
}

func TestSessionDeepPassWaitsForPassOne(t *testing.T) {
	store := NewStore(openingRecords()...)
	eng := newFakeEngine(openingScript)
	s := NewSession(store, Options{DeepPass: true})

	runSession(t, s, eng.launcher())
	s.EnqueueFullGame()
	waitFor(t, func() bool { return s.Progress().Pass2 == 2 })
	waitFor(t, idle(s))

	assert.Equal(t, []string{
		"go depth 12", "go depth 12", "go depth 12",
		"go depth 16", "go depth 16", "go depth 16",
	}, eng.searches())
	assert.Zero(t, eng.overlaps())
	for _, r := range store.Snapshot() {
		assert.True(t, r.Pass1Done)
		assert.True(t, r.Pass2Done)
	}
}

func TestSessionDiscardsJobForTruncatedIndex(t *testing.T) {
	store := NewStore(openingRecords()...)
	eng := newFakeEngine(openingScript)
	eng.holdFEN = fenE4E5
	s := NewSession(store, Options{})
	var u updates
	s.OnRecordUpdated(u.record)

	runSession(t, s, eng.launcher())
	s.EnqueueFullGame()

	select {
	case <-eng.holding:
	case <-time.After(3 * time.Second):
		t.Fatal("search for the last ply never started")
	}
	store.Truncate(2)
	s.DiscardFrom(2)
	eng.release()

	waitFor(t, idle(s))
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, []int{0, 1}, u.list())
}

func TestSessionWritesIntoReplacementRecord(t *testing.T) {
	store := NewStore(openingRecords()...)
	eng := newFakeEngine(openingScript)
	eng.holdFEN = fenE4E5
	s := NewSession(store, Options{})
	var u updates
	s.OnRecordUpdated(u.record)

	runSession(t, s, eng.launcher())
	s.EnqueueFullGame()
	<-eng.holding

	store.Truncate(2)
	idx := store.Append(NewRecord(fenE4D5, &Move{UCI: "d7d5", SAN: "d5", Color: Black}))
	require.Equal(t, 2, idx)
	eng.release()

	waitFor(t, func() bool { return len(u.list()) == 3 })
	r2, _ := store.Get(2)
	assert.Equal(t, fenE4D5, r2.FEN)
	assert.True(t, r2.Pass1Done)
	assert.Equal(t, "g1f3", r2.BestMove)

	// the follow-up job re-analyzes the new position
	require.NoError(t, s.EnqueueSinglePosition(2))
	waitFor(t, func() bool { return len(u.list()) == 4 })
	r2, _ = store.Get(2)
	assert.Equal(t, "a2a3", r2.BestMove)
	assert.True(t, r2.Pass2Done)
}

func TestSessionDropsMalformedLines(t *testing.T) {
	store := NewStore(NewRecord(fenStart, nil))
	eng := newFakeEngine(func(string, int) []string {
		return []string{
			"info depth 12 score cp 50 pv e2e4",
			"info depth 13 score cp abc",
			"info depth 14 pv e2e4 zz",
			"info string hello",
			"bestmove e2e4",
		}
	})
	s := NewSession(store, Options{})
	var u updates
	s.OnRecordUpdated(u.record)

	runSession(t, s, eng.launcher())
	require.NoError(t, s.EnqueueSinglePosition(0))
	waitFor(t, func() bool { return len(u.list()) == 1 })

	r, _ := store.Get(0)
	assert.Equal(t, Centipawns(0.5), r.Eval)
	assert.Equal(t, 12, r.Depth)
	assert.Equal(t, []string{"e2e4"}, r.Principal)
}

func TestSessionPrincipalFallsBackToBestMove(t *testing.T) {
	store := NewStore(NewRecord(fenStart, nil), NewRecord(fenMated, &Move{UCI: "d8h4", SAN: "Qh4#", Color: Black}))
	eng := newFakeEngine(func(fen string, _ int) []string {
		if fen == fenMated {
			return []string{"info depth 0 score mate 0", "bestmove (none)"}
		}
		return []string{"info depth 1 score cp 20", "bestmove d2d4"}
	})
	s := NewSession(store, Options{Pass1Depth: 4})
	var u updates
	s.OnRecordUpdated(u.record)

	runSession(t, s, eng.launcher())
	s.EnqueueFullGame()
	waitFor(t, func() bool { return len(u.list()) == 2 })

	r0, _ := store.Get(0)
	assert.Equal(t, "d2d4", r0.BestMove)
	assert.Equal(t, []string{"d2d4"}, r0.Principal)
	assert.Equal(t, 1, r0.Depth)

	r1, _ := store.Get(1)
	assert.Empty(t, r1.BestMove)
	assert.Empty(t, r1.Principal)
	assert.Equal(t, 4, r1.Depth)
	assert.Equal(t, float64(-MateScore), r1.Eval.CP())
	require.NotNil(t, r1.Loss)
	assert.Negative(t, *r1.Loss)
	assert.Equal(t, LabelExcellent, r1.Label)
}

func TestSessionIgnoresOutputWithoutJob(t *testing.T) {
	store := NewStore(NewRecord(fenStart, nil))
	eng := newFakeEngine(nil)
	s := NewSession(store, Options{})
	var u updates
	s.OnRecordUpdated(u.record)

	runSession(t, s, eng.launcher())
	waitFor(t, func() bool { return s.State() == StateReady })

	eng.lines <- "info depth 3 score cp 999 pv a2a3"
	eng.lines <- "bestmove a2a3"
	waitFor(t, func() bool { return len(eng.lines) == 0 })
	require.NoError(t, s.EnqueueSinglePosition(0))
	waitFor(t, func() bool { return len(u.list()) == 1 })
	waitFor(t, idle(s))

	r, _ := store.Get(0)
	assert.Equal(t, "e2e4", r.BestMove)
	assert.False(t, r.Eval.Present())
	assert.Equal(t, []int{0}, u.list())
}

func TestSessionLaunchFailure(t *testing.T) {
	store := NewStore(openingRecords()...)
	s := NewSession(store, Options{})

	err := s.Run(context.Background(), func(context.Context) (Worker, error) {
		return nil, errors.New("no such file")
	})
	require.ErrorIs(t, err, ErrEngineUnavailable)

	assert.Equal(t, 3, s.EnqueueFullGame())
	p := s.Progress()
	assert.Equal(t, StateStarting, p.State)
	assert.True(t, p.Unavailable)
	assert.Equal(t, 3, p.Queued)
	assert.Nil(t, p.Current)
	assert.Equal(t, "Engine unavailable", NewProgressReporter(nil).Summary(p))

	require.ErrorIs(t, s.Run(context.Background(), nil), errAlreadyStarted)
}

func TestSessionEngineExit(t *testing.T) {
	store := NewStore(openingRecords()...)
	eng := newFakeEngine(openingScript)
	s := NewSession(store, Options{})

	stop := runSession(t, s, eng.launcher())
	waitFor(t, func() bool { return s.State() == StateReady })
	eng.crash()
	waitFor(t, func() bool { return s.Progress().Unavailable })

	require.ErrorIs(t, stop(), ErrEngineUnavailable)
	assert.Equal(t, StateStarting, s.State())
}

func TestSessionEnqueueDeduplicates(t *testing.T) {
	store := NewStore(openingRecords()...)
	s := NewSession(store, Options{})

	assert.Equal(t, 3, s.EnqueueFullGame())
	assert.Equal(t, 0, s.EnqueueFullGame())
	require.NoError(t, s.EnqueueSinglePosition(1))
	assert.Equal(t, 3, s.Progress().Queued)

	require.ErrorIs(t, s.EnqueueSinglePosition(3), ErrIndexOutOfRange)
	require.ErrorIs(t, s.EnqueueSinglePosition(-1), ErrIndexOutOfRange)

	assert.Equal(t, 2, s.DiscardFrom(1))
	assert.Equal(t, 1, s.Progress().Queued)

	s.Reset()
	assert.Zero(t, s.Progress().Queued)
}

func TestSessionDeepPassIgnoresConcurrentAppend(t *testing.T) {
	const plies = 40
	for round := 0; round < 500; round++ {
		records := make([]Record, 0, plies)
		for i := 0; i < plies; i++ {
			r := NewRecord(fenStart, nil)
			r.Pass1Done = true
			records = append(records, r)
		}
		store := NewStore(records...)
		s := NewSession(store, Options{DeepPass: true})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Append(NewRecord(fenE4, &Move{UCI: "e2e4", SAN: "e4", Color: White}))
		}()
		s.mu.Lock()
		s.deepPending = true
		s.triggerDeepPassLocked()
		jobs := s.queue.Jobs()
		s.mu.Unlock()
		wg.Wait()

		for _, j := range jobs {
			r, ok := store.Get(j.RecordIndex)
			require.True(t, ok)
			require.Truef(t, r.Pass1Done, "round %d: %s queued before its first pass", round, j)
		}
		if len(jobs) == 0 {
			// the append won; the deep pass stays armed for later
			s.mu.Lock()
			assert.True(t, s.deepPending)
			s.mu.Unlock()
		}
	}
}

func TestSessionCancelRequeuesInFlightJob(t *testing.T) {
	store := NewStore(openingRecords()...)
	eng := newFakeEngine(openingScript)
	eng.holdFEN = fenE4E5
	s := NewSession(store, Options{})

	stop := runSession(t, s, eng.launcher())
	s.EnqueueFullGame()
	select {
	case <-eng.holding:
	case <-time.After(3 * time.Second):
		t.Fatal("search for the last ply never started")
	}
	require.NoError(t, stop())

	p := s.Progress()
	assert.Equal(t, StateUninitialized, p.State)
	assert.Nil(t, p.Current)
	assert.Equal(t, 1, p.Queued)
	assert.Equal(t, "Quick analysis: 1/2", NewProgressReporter(nil).Summary(p))

	// a new engine picks up where the old one stopped
	fresh := newFakeEngine(openingScript)
	runSession(t, s, fresh.launcher())
	waitFor(t, func() bool { return s.Progress().Pass1 == 2 })
	waitFor(t, idle(s))
	assert.Equal(t, []string{"go depth 12"}, fresh.searches())
	r2, _ := store.Get(2)
	assert.Equal(t, "g1f3", r2.BestMove)
}
