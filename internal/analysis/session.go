package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/chess/uci"
	"github.com/park285/cheese-review/internal/obslog"
)

var (
	ErrEngineUnavailable = errors.New("analysis engine unavailable")
	ErrIndexOutOfRange   = errors.New("record index out of range")
	errAlreadyStarted    = errors.New("analysis session already started")
)

const (
	DefaultHashMB     = 64
	DefaultPass1Depth = 12
	DefaultPass2Depth = 16
)

type State uint8

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	default:
		return "uninitialized"
	}
}

// Worker is a running UCI engine. Lines must be closed when the engine exits.
type Worker interface {
	Send(command string) error
	Lines() <-chan string
	Close() error
}

type Launcher func(ctx context.Context) (Worker, error)

type Options struct {
	HashMB     int
	Pass1Depth int
	Pass2Depth int
	// DeepPass queues pass-2 jobs once a full-game pass 1 has finished.
	DeepPass bool
	Logger   *zap.Logger
}

type provisional struct {
	score     *uci.Score
	principal []string
	depth     int
}

// Session drives a single engine over a queue of jobs, one at a time, and
// commits each result into the store.
type Session struct {
	store  *Store
	opts   Options
	logger *zap.Logger
	kick   chan struct{}

	mu          sync.Mutex
	state       State
	unavailable bool
	queue       JobQueue
	current     *Job
	prov        provisional
	deepPending bool
	hooks       []func(index int)
}

func NewSession(store *Store, opts Options) *Session {
	if opts.HashMB <= 0 {
		opts.HashMB = DefaultHashMB
	}
	if opts.Pass1Depth <= 0 {
		opts.Pass1Depth = DefaultPass1Depth
	}
	if opts.Pass2Depth <= 0 {
		opts.Pass2Depth = DefaultPass2Depth
	}
	logger := opts.Logger
	if logger == nil {
		logger = obslog.L()
	}
	return &Session{
		store:  store,
		opts:   opts,
		logger: logger.Named("analysis"),
		kick:   make(chan struct{}, 1),
	}
}

// OnRecordUpdated registers fn to be called after each commit with the index
// that changed. Callbacks run on the session goroutine, in commit order, and
// must re-check that the index still means what they expect.
func (s *Session) OnRecordUpdated(fn func(index int)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Run launches the engine and processes its output until ctx is done or the
// engine goes away. After cancellation Run may be called again and the job
// that was in flight runs first. A launch failure leaves the session in
// StateStarting with the unavailable flag set; enqueued jobs are kept but
// never run.
func (s *Session) Run(ctx context.Context, launch Launcher) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return errAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	w, err := launch(ctx)
	if err != nil {
		s.markUnavailable()
		s.logger.Error("engine_launch_failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			s.logger.Debug("engine_close", zap.Error(err))
		}
	}()

	if err := w.Send("uci"); err != nil {
		s.markUnavailable()
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	lines := w.Lines()
	for {
		select {
		case <-ctx.Done():
			_ = w.Send("stop")
			s.stopped()
			return nil
		case line, ok := <-lines:
			if !ok {
				s.markUnavailable()
				s.logger.Error("engine_exited")
				return ErrEngineUnavailable
			}
			if err := s.handleLine(w, line); err != nil {
				s.markUnavailable()
				s.logger.Error("engine_send_failed", zap.Error(err))
				return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
			}
		case <-s.kick:
			if err := s.pump(w); err != nil {
				s.markUnavailable()
				s.logger.Error("engine_send_failed", zap.Error(err))
				return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
			}
		}
	}
}

func (s *Session) handleLine(w Worker, line string) error {
	msg, err := uci.ParseLine(line)
	if err != nil {
		if errors.Is(err, uci.ErrMalformedLine) {
			s.logger.Debug("uci_malformed_line", zap.String("line", line), zap.Error(err))
		}
		return nil
	}

	switch m := msg.(type) {
	case uci.UCIOK:
		if err := w.Send(uci.HashCommand(s.opts.HashMB)); err != nil {
			return err
		}
		return w.Send("isready")
	case uci.ReadyOK:
		s.mu.Lock()
		if s.state == StateStarting && !s.unavailable {
			s.state = StateReady
			s.logger.Info("engine_ready", zap.Int("hash_mb", s.opts.HashMB))
		}
		s.mu.Unlock()
		return s.pump(w)
	case uci.Info:
		s.observe(m)
	case uci.BestMove:
		return s.finish(w, m)
	}
	return nil
}

// observe overwrites the provisional result of the current job field by field.
func (s *Session) observe(info uci.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	if info.Score != nil {
		sc := *info.Score
		s.prov.score = &sc
	}
	if len(info.Principal) > 0 {
		s.prov.principal = info.Principal
	}
	if info.Depth > 0 {
		s.prov.depth = info.Depth
	}
}

func (s *Session) finish(w Worker, best uci.BestMove) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	job := *s.current
	prov := s.prov
	s.current = nil
	s.prov = provisional{}
	s.state = StateReady
	s.mu.Unlock()

	touched := s.commit(job, prov, best)
	s.notify(touched)
	return s.pump(w)
}

// commit writes a finished job into whatever record sits at its index and
// classifies around it. It returns the indices that changed.
func (s *Session) commit(job Job, prov provisional, best uci.BestMove) []int {
	idx := job.RecordIndex
	toMove := sideToMove(job.FEN)

	ok := s.store.Update(idx, func(r *Record) {
		if prov.score != nil {
			r.Eval = fromEngine(prov.score.Mate, prov.score.Value, toMove)
		}
		r.BestMove = ""
		if best.Move != uci.NoMove {
			r.BestMove = best.Move
		}
		switch {
		case len(prov.principal) > 0:
			r.Principal = append([]string(nil), prov.principal...)
		case r.BestMove != "":
			r.Principal = []string{r.BestMove}
		default:
			r.Principal = nil
		}
		r.Depth = prov.depth
		if r.Depth == 0 {
			r.Depth = job.Depth
		}
		if job.FirstPass {
			r.Pass1Done = true
		} else {
			r.Pass2Done = true
		}
	})
	if !ok {
		s.logger.Debug("job_discarded", zap.Int("index", idx), zap.Int("pass", job.Pass()))
		return nil
	}

	s.logger.Debug("job_committed",
		zap.Int("index", idx),
		zap.Int("pass", job.Pass()),
		zap.String("best", best.Move),
	)

	touched := []int{idx}
	s.store.pair(idx, func(before Record, after *Record) {
		classifyInto(before, after)
	})
	var next bool
	s.store.pair(idx+1, func(before Record, after *Record) {
		if after.Eval.Present() {
			next = classifyInto(before, after)
		}
	})
	if next {
		touched = append(touched, idx+1)
	}
	return touched
}

func (s *Session) notify(indices []int) {
	if len(indices) == 0 {
		return
	}
	s.mu.Lock()
	hooks := append([]func(int){}, s.hooks...)
	s.mu.Unlock()
	for _, i := range indices {
		for _, fn := range hooks {
			fn(i)
		}
	}
}

// pump dispatches the next queued job if the engine is idle.
func (s *Session) pump(w Worker) error {
	s.mu.Lock()
	if s.state != StateReady || s.current != nil {
		s.mu.Unlock()
		return nil
	}
	s.triggerDeepPassLocked()
	job, ok := s.queue.Dequeue()
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.current = &job
	s.prov = provisional{}
	s.state = StateBusy
	s.mu.Unlock()

	s.logger.Debug("job_dispatched", zap.Int("index", job.RecordIndex), zap.Int("depth", job.Depth), zap.Int("pass", job.Pass()))
	for _, cmd := range []string{"stop", "ucinewgame", uci.PositionCommand(job.FEN), uci.GoDepthCommand(job.Depth)} {
		if err := w.Send(cmd); err != nil {
			return fmt.Errorf("dispatch %s: %w", job, err)
		}
	}
	return nil
}

func (s *Session) triggerDeepPassLocked() {
	if !s.deepPending {
		return
	}
	// one snapshot for both the check and the jobs
	records := s.store.Snapshot()
	if !allPass1Done(records) {
		return
	}
	s.deepPending = false
	n := 0
	for i, r := range records {
		if r.Pass2Done {
			continue
		}
		if s.enqueueLocked(Job{RecordIndex: i, FEN: r.FEN, Depth: s.opts.Pass2Depth}) {
			n++
		}
	}
	s.logger.Info("deep_pass_queued", zap.Int("jobs", n))
}

func (s *Session) enqueueLocked(j Job) bool {
	if s.queue.Contains(j.Key()) {
		return false
	}
	if s.current != nil && *s.current == j {
		return false
	}
	s.queue.Enqueue(j)
	return true
}

func (s *Session) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// stopped puts the in-flight job back at the head of the queue and returns
// the session to StateUninitialized so Run can be called again.
func (s *Session) stopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.queue.Contains(s.current.Key()) {
		s.queue.PushFront(*s.current)
	}
	s.current = nil
	s.prov = provisional{}
	s.state = StateUninitialized
}

func (s *Session) markUnavailable() {
	s.mu.Lock()
	s.unavailable = true
	s.state = StateStarting
	s.current = nil
	s.prov = provisional{}
	s.mu.Unlock()
}

// EnqueueFullGame queues a pass-1 job for every record that lacks one and
// arms the deep pass. It returns the number of jobs added.
func (s *Session) EnqueueFullGame() int {
	records := s.store.Snapshot()

	s.mu.Lock()
	n := 0
	for i, r := range records {
		if r.Pass1Done {
			continue
		}
		if s.enqueueLocked(Job{RecordIndex: i, FEN: r.FEN, Depth: s.opts.Pass1Depth, FirstPass: true}) {
			n++
		}
	}
	if s.opts.DeepPass {
		s.deepPending = true
	}
	s.mu.Unlock()

	s.wake()
	return n
}

// EnqueueSinglePosition queues one job for record i: pass 1 if it has none
// yet, a deep job otherwise.
func (s *Session) EnqueueSinglePosition(i int) error {
	r, ok := s.store.Get(i)
	if !ok {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	job := Job{RecordIndex: i, FEN: r.FEN, Depth: s.opts.Pass1Depth, FirstPass: true}
	if r.Pass1Done {
		job.Depth = s.opts.Pass2Depth
		job.FirstPass = false
	}

	s.mu.Lock()
	s.enqueueLocked(job)
	s.mu.Unlock()

	s.wake()
	return nil
}

// DiscardFrom drops queued jobs for index and beyond. The job in flight, if
// any, is left to finish.
func (s *Session) DiscardFrom(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.DropFrom(index)
}

// Reset clears the queue and disarms the deep pass.
func (s *Session) Reset() {
	s.mu.Lock()
	s.queue.Clear()
	s.deepPending = false
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress is a point-in-time view of the pipeline.
type Progress struct {
	State       State
	Unavailable bool
	Current     *Job
	Queued      int
	Plies       int
	Pass1       int
	Pass2       int
}

func (s *Session) Progress() Progress {
	c := s.store.counts()
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Progress{
		State:       s.state,
		Unavailable: s.unavailable,
		Queued:      s.queue.Len(),
		Plies:       c.plies,
		Pass1:       c.pass1,
		Pass2:       c.pass2,
	}
	if s.current != nil {
		j := *s.current
		p.Current = &j
	}
	return p
}
