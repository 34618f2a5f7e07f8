package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/automaton-insight/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-insight/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit.Capacity > 0 {
		limiter = middleware.NewRateLimiter(gctx, cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)
	}

	feed := a.feed
	if !cfg.Telemetry.Enabled {
		feed = nil
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: httpserver.NewRouter(httpserver.Deps{
			Insights:    a.svc,
			Slots:       a.slots,
			Bus:         a.bus,
			Telemetry:   feed,
			Limiter:     limiter,
			Checkers:    a.checkers,
			CORSOrigins: cfg.Server.CORSOrigins,
			Logger:      logger.Named("http"),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		// hijacked websocket handlers stop with the group
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if feed != nil {
		g.Go(func() error { return feed.Run(gctx) })
	}

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
