package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clippy-oss/homie/chat-client/internal/cli"
	"github.com/clippy-oss/homie/chat-client/internal/config"
	"github.com/clippy-oss/homie/chat-client/internal/domain"
	"github.com/clippy-oss/homie/chat-client/internal/livesync"
	"github.com/clippy-oss/homie/chat-client/internal/logger"
	"github.com/clippy-oss/homie/chat-client/internal/metrics"
	"github.com/clippy-oss/homie/chat-client/internal/notify"
	"github.com/clippy-oss/homie/chat-client/internal/service"
	"github.com/clippy-oss/homie/chat-client/internal/store/gormstore"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.LogLevel)
	mainLog := logger.Module("main")

	if cfg.UserID == "" {
		log.Fatalf("no user id configured; set -user or CHAT_USER_ID")
	}

	db, err := gormstore.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	st := gormstore.New(db, logger.Module("store"))
	eventBus := domain.NewEventBus()

	var publisher *notify.Publisher
	if cfg.NatsURL != "" {
		publisher, err = notify.NewPublisher(cfg.NatsURL, eventBus, logger.Module("notify"))
		if err != nil {
			log.Fatalf("Failed to connect notification fanout: %v", err)
		}
		mainLog.Info().Str("url", cfg.NatsURL).Msg("notification fanout connected")
	}

	if cfg.MetricsAddress != "" {
		go func() {
			mainLog.Info().Str("address", cfg.MetricsAddress).Msg("metrics endpoint listening")
			if err := metrics.Serve(cfg.MetricsAddress); err != nil {
				mainLog.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	svc := service.NewChatService(st, eventBus, livesync.Config{
		PageSize:           cfg.PageSize,
		ReconcileTolerance: cfg.ReconcileTolerance,
	}, logger.Module("service"))

	handler := cli.NewCommandHandler(svc, st, cfg.UserID, cfg.TypingThrottle, cfg.TypingIdleClear, logger.Module("cli"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	var runErr error
	switch cli.Mode(cfg.Mode) {
	case cli.ModeHeadless:
		runErr = cli.NewHeadlessCLI(handler).Run(ctx)
	default:
		runErr = cli.NewInteractiveCLI(handler).Run(ctx)
	}
	if runErr != nil && runErr != context.Canceled {
		mainLog.Error().Err(runErr).Msg("CLI error")
	}

	// Cleanup: close the window (releases every listener) and the fanout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Shutdown(shutdownCtx)
	if publisher != nil {
		publisher.Close()
	}
	mainLog.Info().Msg("shutdown complete")
}
