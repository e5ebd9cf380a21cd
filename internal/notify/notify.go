package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/obslog"
	"github.com/park285/cheese-review/pkg/reviewdto"
)

const (
	DefaultPrefix = "review"
	queueSize     = 256
)

// Channel is the pub/sub channel carrying record events for one review.
func Channel(prefix, reviewID string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + strings.TrimSpace(reviewID) + ":records"
}

// Publisher forwards record events to Redis from a single goroutine so that
// subscribers see them in commit order. Enqueue never blocks; events beyond
// the buffer are dropped.
type Publisher struct {
	rdb    *redis.Client
	prefix string
	events chan reviewdto.RecordEvent
	logger *zap.Logger
}

func NewPublisher(rdb *redis.Client, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = obslog.L()
	}
	return &Publisher{
		rdb:    rdb,
		prefix: prefix,
		events: make(chan reviewdto.RecordEvent, queueSize),
		logger: logger.Named("notify"),
	}
}

// Connect는 redis:// URL 파싱 후 Ping으로 연결 확인.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for notifications")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (p *Publisher) Enqueue(ev reviewdto.RecordEvent) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("notify_dropped", zap.String("review_id", ev.ReviewID), zap.Int("index", ev.Index))
	}
}

func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.events:
			if err := p.Publish(ctx, ev); err != nil {
				p.logger.Warn("notify_publish_failed", zap.Int("index", ev.Index), zap.Error(err))
			}
		}
	}
}

func (p *Publisher) Publish(ctx context.Context, ev reviewdto.RecordEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.rdb.Publish(ctx, Channel(p.prefix, ev.ReviewID), raw).Err()
}

// Subscribe returns decoded events for reviewID until ctx is done.
func Subscribe(ctx context.Context, rdb *redis.Client, prefix, reviewID string) (<-chan reviewdto.RecordEvent, error) {
	sub := rdb.Subscribe(ctx, Channel(prefix, reviewID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan reviewdto.RecordEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev reviewdto.RecordEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
