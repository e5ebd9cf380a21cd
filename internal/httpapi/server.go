package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/adapter/reviewpresenter"
	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/obslog"
	"github.com/park285/cheese-review/internal/review"
	"github.com/park285/cheese-review/pkg/reviewdto"
)

const (
	pathPrefix   = "/review/"
	maxBodyBytes = 1 << 20
)

// Server exposes one review.Service over JSON.
type Server struct {
	svc    *review.Service
	logger *zap.Logger
	srv    *fasthttp.Server
}

func NewServer(svc *review.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = obslog.L()
	}
	s := &Server{svc: svc, logger: logger.Named("http")}
	s.srv = &fasthttp.Server{
		Handler:            s.Handle,
		Name:               "chess-review",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: maxBodyBytes,
	}
	return s
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()
	s.logger.Info("http_listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.srv.Shutdown(); err != nil {
			return err
		}
		return <-errCh
	}
}

// Handle routes a request.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	if path == "/healthz" {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
		return
	}
	if !strings.HasPrefix(path, pathPrefix) {
		s.fail(ctx, fasthttp.StatusNotFound, reviewdto.CodeNotFound, "no such endpoint")
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, pathPrefix), "/"), "/")

	switch {
	case method == fasthttp.MethodPost && len(parts) == 1 && parts[0] == "pgn":
		s.load(ctx)
	case method == fasthttp.MethodPost && len(parts) == 1 && parts[0] == "moves":
		s.playMove(ctx)
	case method == fasthttp.MethodPost && len(parts) == 1 && parts[0] == "reset":
		s.svc.Reset()
		s.writeJSON(ctx, fasthttp.StatusOK, reviewpresenter.ToDTORecords(s.svc.Records()))
	case method == fasthttp.MethodPost && len(parts) == 1 && parts[0] == "analyze":
		s.writeJSON(ctx, fasthttp.StatusAccepted, reviewdto.AnalyzeResponse{Queued: s.svc.AnalyzeGame()})
	case method == fasthttp.MethodPost && len(parts) == 3 && parts[0] == "positions" && parts[2] == "analyze":
		s.analyzePosition(ctx, parts[1])
	case method == fasthttp.MethodGet && len(parts) == 1 && parts[0] == "records":
		s.writeJSON(ctx, fasthttp.StatusOK, reviewpresenter.ToDTORecords(s.svc.Records()))
	case method == fasthttp.MethodGet && len(parts) == 2 && parts[0] == "records":
		s.record(ctx, parts[1])
	case method == fasthttp.MethodGet && len(parts) == 1 && parts[0] == "progress":
		s.writeJSON(ctx, fasthttp.StatusOK, reviewpresenter.ToDTOProgress(s.svc.Progress(), s.svc.ProgressSnapshot()))
	case method == fasthttp.MethodGet && len(parts) == 1 && parts[0] == "accuracy":
		s.writeJSON(ctx, fasthttp.StatusOK, reviewpresenter.ToDTOAccuracy(s.svc.Accuracy()))
	default:
		s.fail(ctx, fasthttp.StatusNotFound, reviewdto.CodeNotFound, "no such endpoint")
	}
}

func (s *Server) load(ctx *fasthttp.RequestCtx) {
	var req reviewdto.LoadRequest
	if !s.decode(ctx, &req) {
		return
	}
	var err error
	switch {
	case strings.TrimSpace(req.PGN) != "":
		err = s.svc.LoadPGN(req.PGN)
	case strings.TrimSpace(req.FEN) != "":
		err = s.svc.LoadFEN(req.FEN)
	default:
		err = review.ErrEmptyGame
	}
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, reviewpresenter.ToDTORecords(s.svc.Records()))
}

func (s *Server) playMove(ctx *fasthttp.RequestCtx) {
	var req reviewdto.PlayMoveRequest
	if !s.decode(ctx, &req) {
		return
	}
	idx, err := s.svc.PlayMove(req.FromPly, req.Move)
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	resp := reviewdto.PlayMoveResponse{Index: idx}
	if rec, err := s.svc.Record(idx); err == nil {
		resp.Record = reviewpresenter.ToDTORecord(idx, rec)
	}
	s.writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) analyzePosition(ctx *fasthttp.RequestCtx, raw string) {
	idx, ok := s.index(ctx, raw)
	if !ok {
		return
	}
	if err := s.svc.AnalyzePosition(idx); err != nil {
		s.failErr(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusAccepted, reviewdto.AnalyzeResponse{Queued: 1})
}

func (s *Server) record(ctx *fasthttp.RequestCtx, raw string) {
	idx, ok := s.index(ctx, raw)
	if !ok {
		return
	}
	rec, err := s.svc.Record(idx)
	if err != nil {
		s.failErr(ctx, err)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, reviewpresenter.ToDTORecord(idx, rec))
}

func (s *Server) index(ctx *fasthttp.RequestCtx, raw string) (int, bool) {
	idx, err := strconv.Atoi(raw)
	if err != nil {
		s.fail(ctx, fasthttp.StatusBadRequest, reviewdto.CodeBadRequest, "index must be an integer")
		return 0, false
	}
	return idx, true
}

func (s *Server) decode(ctx *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		s.fail(ctx, fasthttp.StatusBadRequest, reviewdto.CodeBadRequest, "invalid json body")
		return false
	}
	return true
}

func (s *Server) failErr(ctx *fasthttp.RequestCtx, err error) {
	status, code := fasthttp.StatusInternalServerError, reviewdto.CodeInternal
	switch {
	case errors.Is(err, review.ErrIllegalMove):
		status, code = fasthttp.StatusUnprocessableEntity, reviewdto.CodeIllegalMove
	case errors.Is(err, review.ErrInvalidPosition):
		status, code = fasthttp.StatusUnprocessableEntity, reviewdto.CodeInvalidPosition
	case errors.Is(err, review.ErrInvalidGame):
		status, code = fasthttp.StatusUnprocessableEntity, reviewdto.CodeInvalidGame
	case errors.Is(err, review.ErrEmptyGame):
		status, code = fasthttp.StatusBadRequest, reviewdto.CodeEmptyGame
	case errors.Is(err, analysis.ErrIndexOutOfRange):
		status, code = fasthttp.StatusNotFound, reviewdto.CodeIndexOutOfRange
	default:
		s.logger.Error("http_handler_error", zap.ByteString("path", ctx.Path()), zap.Error(err))
	}
	s.fail(ctx, status, code, err.Error())
}

func (s *Server) fail(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	s.writeJSON(ctx, status, reviewdto.DomainError{Code: code, Message: msg})
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("http_encode_failed", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
