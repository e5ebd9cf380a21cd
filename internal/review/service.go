package review

import (
	"context"
	"fmt"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/obslog"
)

type Options struct {
	ID       string
	Analysis analysis.Options
	Texts    analysis.Renderer
	Logger   *zap.Logger
}

// Update is delivered after the engine commits a record.
type Update struct {
	ReviewID string
	Index    int
	Record   analysis.Record
}

// Service is one review board: a game history, its record table and the
// engine session analysing it.
type Service struct {
	id       string
	store    *analysis.Store
	session  *analysis.Session
	reporter *analysis.ProgressReporter
	logger   *zap.Logger

	mu        sync.Mutex
	positions []*nchess.Position
	result    string

	hookMu sync.RWMutex
	hooks  []func(Update)
}

func New(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = obslog.L()
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With(zap.String("review_id", id))

	aopts := opts.Analysis
	if aopts.Logger == nil {
		aopts.Logger = logger
	}

	s := &Service{
		id:       id,
		store:    analysis.NewStore(),
		reporter: analysis.NewProgressReporter(opts.Texts),
		logger:   logger,
	}
	s.session = analysis.NewSession(s.store, aopts)
	s.session.OnRecordUpdated(s.recordUpdated)

	if err := s.LoadFEN(StartFEN); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ID() string { return s.id }

// Run drives the engine until ctx is done. See analysis.Session.Run.
func (s *Service) Run(ctx context.Context, launch analysis.Launcher) error {
	return s.session.Run(ctx, launch)
}

// OnRecordUpdated registers fn for commit notifications. The record carried
// by an Update is a snapshot taken right after the commit; callers should
// still confirm the index is relevant to them.
func (s *Service) OnRecordUpdated(fn func(Update)) {
	if fn == nil {
		return
	}
	s.hookMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hookMu.Unlock()
}

func (s *Service) recordUpdated(index int) {
	rec, ok := s.store.Get(index)
	if !ok {
		return
	}
	s.hookMu.RLock()
	hooks := append([]func(Update){}, s.hooks...)
	s.hookMu.RUnlock()

	u := Update{ReviewID: s.id, Index: index, Record: rec}
	for _, fn := range hooks {
		fn(u)
	}
}

// LoadPGN replaces the history with the main line of a PGN game.
func (s *Service) LoadPGN(pgn string) error {
	l, err := lineFromPGN(pgn)
	if err != nil {
		return err
	}
	s.replace(l)
	s.logger.Info("review_loaded", zap.String("source", "pgn"), zap.Int("plies", len(l.records)-1))
	return nil
}

// LoadFEN starts an empty history at fen.
func (s *Service) LoadFEN(fen string) error {
	l, err := lineFromFEN(fen)
	if err != nil {
		return err
	}
	s.replace(l)
	return nil
}

func (s *Service) Reset() {
	if err := s.LoadFEN(StartFEN); err != nil {
		s.logger.Error("review_reset_failed", zap.Error(err))
	}
}

func (s *Service) replace(l line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Reset()
	s.store.Reset(l.records)
	s.positions = l.positions
	s.result = l.result
}

// PlayMove plays move from ply fromPly. Later plies are discarded and the
// new position is queued for analysis. It returns the new record's index.
func (s *Service) PlayMove(fromPly int, move string) (int, error) {
	s.mu.Lock()
	if fromPly < 0 || fromPly >= len(s.positions) {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", analysis.ErrIndexOutOfRange, fromPly)
	}
	next, played, err := applyMove(s.positions[fromPly], move)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	keep := fromPly + 1
	s.store.Truncate(keep)
	dropped := s.session.DiscardFrom(keep)
	s.positions = append(s.positions[:keep:keep], next)
	s.result = ""
	idx := s.store.Append(analysis.NewRecord(next.String(), &played))
	s.mu.Unlock()

	s.logger.Debug("review_move_played",
		zap.Int("from_ply", fromPly),
		zap.String("uci", played.UCI),
		zap.Int("dropped_jobs", dropped),
	)

	if prev, ok := s.store.Get(fromPly); ok && !prev.Pass1Done {
		s.enqueue(fromPly)
	}
	s.enqueue(idx)
	return idx, nil
}

// 동시 편집으로 사라진 인덱스는 건너뜀
func (s *Service) enqueue(index int) {
	if err := s.session.EnqueueSinglePosition(index); err != nil {
		s.logger.Debug("review_enqueue_skipped", zap.Int("index", index), zap.Error(err))
	}
}

// AnalyzeGame queues the full-game passes and returns the number of pass-1
// jobs added.
func (s *Service) AnalyzeGame() int { return s.session.EnqueueFullGame() }

func (s *Service) AnalyzePosition(i int) error { return s.session.EnqueueSinglePosition(i) }

func (s *Service) Record(i int) (analysis.Record, error) {
	r, ok := s.store.Get(i)
	if !ok {
		return analysis.Record{}, fmt.Errorf("%w: %d", analysis.ErrIndexOutOfRange, i)
	}
	return r, nil
}

func (s *Service) Records() []analysis.Record { return s.store.Snapshot() }

// Result is the PGN result of a loaded game that was finished, or "".
func (s *Service) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Service) ProgressSnapshot() analysis.Progress { return s.session.Progress() }

func (s *Service) Progress() string { return s.reporter.Summary(s.session.Progress()) }

func (s *Service) Accuracy() (white, black analysis.SideAccuracy) {
	return analysis.GameAccuracy(s.store.Snapshot())
}

// Done reports whether every ply has finished the passes the session runs.
func (s *Service) Done(deep bool) bool {
	p := s.session.Progress()
	if p.Current != nil || p.Queued > 0 {
		return false
	}
	for _, r := range s.store.Snapshot() {
		if !r.Pass1Done || (deep && !r.Pass2Done) {
			return false
		}
	}
	return true
}
