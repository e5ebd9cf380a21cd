package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-review/pkg/reviewdto"
)

// Client talks to a running review server.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the dialer, e.g. for an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) LoadPGN(ctx context.Context, pgn string) ([]reviewdto.Record, error) {
	var out []reviewdto.Record
	err := c.doJSON(ctx, fasthttp.MethodPost, "/review/pgn", reviewdto.LoadRequest{PGN: pgn}, &out, false)
	return out, err
}

func (c *Client) PlayMove(ctx context.Context, fromPly int, move string) (*reviewdto.PlayMoveResponse, error) {
	var out reviewdto.PlayMoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/review/moves", reviewdto.PlayMoveRequest{FromPly: fromPly, Move: move}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Analyze(ctx context.Context) (int, error) {
	var out reviewdto.AnalyzeResponse
	err := c.doJSON(ctx, fasthttp.MethodPost, "/review/analyze", nil, &out, false)
	return out.Queued, err
}

func (c *Client) AnalyzePosition(ctx context.Context, index int) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/review/positions/"+strconv.Itoa(index)+"/analyze", nil, nil, false)
}

func (c *Client) Records(ctx context.Context) ([]reviewdto.Record, error) {
	var out []reviewdto.Record
	err := c.doJSON(ctx, fasthttp.MethodGet, "/review/records", nil, &out, true)
	return out, err
}

func (c *Client) Record(ctx context.Context, index int) (*reviewdto.Record, error) {
	var out reviewdto.Record
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/review/records/"+strconv.Itoa(index), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Progress(ctx context.Context) (*reviewdto.Progress, error) {
	var out reviewdto.Progress
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/review/progress", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Accuracy(ctx context.Context) (*reviewdto.Accuracy, error) {
	var out reviewdto.Accuracy
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/review/accuracy", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON sends one request. Only idempotent calls pass retry.
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = decodeError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}

		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeError(status int, body []byte) error {
	var de reviewdto.DomainError
	if err := json.Unmarshal(body, &de); err == nil && de.Code != "" {
		de.Retryable = shouldRetryStatus(status)
		return de
	}
	return fmt.Errorf("review api error: status=%d body=%s", status, truncate(string(body), 512))
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
