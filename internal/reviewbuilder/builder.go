package reviewbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/adapter/reviewpresenter"
	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/chess/uci"
	"github.com/park285/cheese-review/internal/config"
	"github.com/park285/cheese-review/internal/msgcat"
	"github.com/park285/cheese-review/internal/notify"
	"github.com/park285/cheese-review/internal/review"
)

type Deps struct {
	Service   *review.Service
	Texts     *msgcat.Catalog
	Launcher  analysis.Launcher
	Publisher *notify.Publisher // nil without REDIS_URL
	Redis     *redis.Client
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	texts, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	svc, err := review.New(review.Options{
		Analysis: analysis.Options{
			HashMB:     cfg.EngineHashMB,
			Pass1Depth: cfg.Pass1Depth,
			Pass2Depth: cfg.Pass2Depth,
			DeepPass:   cfg.DeepPass,
		},
		Texts:  texts,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init review: %w", err)
	}

	deps := &Deps{
		Service:  svc,
		Texts:    texts,
		Launcher: EngineLauncher(cfg.StockfishPath, logger),
	}

	// Redis is optional; without it updates are only visible through polling.
	if strings.TrimSpace(cfg.RedisURL) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err := notify.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init notifications: %w", err)
		}
		deps.Redis = rdb
		deps.Publisher = notify.NewPublisher(rdb, cfg.ChannelPrefix, logger)
		svc.OnRecordUpdated(func(u review.Update) {
			deps.Publisher.Enqueue(reviewpresenter.ToDTOEvent(u))
		})
	}

	return deps, nil
}

// EngineLauncher starts the UCI binary at path.
func EngineLauncher(path string, logger *zap.Logger) analysis.Launcher {
	return func(ctx context.Context) (analysis.Worker, error) {
		p, err := uci.Start(ctx, path, logger.Named("uci"))
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (d *Deps) Close() error {
	if d == nil || d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}
