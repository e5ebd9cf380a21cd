package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/cheese-review/internal/adapter/reviewpresenter"
	"github.com/park285/cheese-review/internal/analysis"
	appcfg "github.com/park285/cheese-review/internal/config"
	"github.com/park285/cheese-review/internal/httpapi"
	"github.com/park285/cheese-review/internal/obslog"
	"github.com/park285/cheese-review/internal/reviewbuilder"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chess-review",
		Short:         "Engine-backed chess game review",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return obslog.InitFromEnv()
		},
	}
	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newStatusCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a review board over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := appcfg.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return serve(cmd.Context(), cfg, obslog.L())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(parent context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := reviewbuilder.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("review init error: %w", err)
	}
	defer deps.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := deps.Service.Run(gctx, deps.Launcher)
		if errors.Is(err, analysis.ErrEngineUnavailable) {
			// keep serving records and progress without an engine
			logger.Error("engine_unavailable", zap.Error(err))
			return nil
		}
		return err
	})
	if deps.Publisher != nil {
		g.Go(func() error { return deps.Publisher.Run(gctx) })
	}
	g.Go(func() error {
		return httpapi.NewServer(deps.Service, logger).ListenAndServe(gctx, cfg.HTTPAddr)
	})

	logger.Info("review_serving", zap.String("addr", cfg.HTTPAddr), zap.String("review_id", deps.Service.ID()))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		quick    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "analyze <pgn-file>",
		Short: "Analyze a PGN game and print the review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appcfg.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if quick {
				cfg.DeepPass = false
			}
			pgn, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read pgn: %w", err)
			}
			return analyze(cmd.Context(), cfg, string(pgn), interval, obslog.L())
		},
	}
	cmd.Flags().BoolVar(&quick, "quick", false, "skip the deep pass")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "progress poll interval")
	return cmd
}

func analyze(parent context.Context, cfg *appcfg.AppConfig, pgn string, interval time.Duration, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := reviewbuilder.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("review init error: %w", err)
	}
	defer deps.Close()
	svc := deps.Service

	if err := svc.LoadPGN(pgn); err != nil {
		return err
	}

	presenter := reviewpresenter.NewPresenter(
		reviewpresenter.NewFormatter(deps.Texts),
		func(message string) error {
			_, err := fmt.Fprintln(os.Stdout, message)
			return err
		},
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	engineErr := make(chan error, 1)
	go func() { engineErr <- svc.Run(ctx, deps.Launcher) }()
	if deps.Publisher != nil {
		go func() { _ = deps.Publisher.Run(ctx) }()
	}

	svc.AnalyzeGame()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := ""
	for !svc.Done(cfg.DeepPass) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-engineErr:
			if err == nil {
				err = analysis.ErrEngineUnavailable
			}
			return err
		case <-ticker.C:
		}
		if line := svc.Progress(); line != last {
			last = line
			_ = presenter.Progress(line)
		}
	}
	cancel()
	<-engineErr

	white, black := svc.Accuracy()
	return presenter.Report(
		reviewpresenter.ToDTORecords(svc.Records()),
		reviewpresenter.ToDTOAccuracy(white, black),
		svc.Result(),
	)
}

func newStatusCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print progress and the review from a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client := httpapi.NewClient(baseURL, httpapi.WithTimeout(timeout))

			progress, err := client.Progress(ctx)
			if err != nil {
				return err
			}
			records, err := client.Records(ctx)
			if err != nil {
				return err
			}
			acc, err := client.Accuracy(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			presenter := reviewpresenter.NewPresenter(
				reviewpresenter.NewFormatter(nil),
				func(message string) error {
					_, err := fmt.Fprintln(out, message)
					return err
				},
			)
			if err := presenter.Progress(progress.Summary); err != nil {
				return err
			}
			return presenter.Report(records, *acc, "")
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "review server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
