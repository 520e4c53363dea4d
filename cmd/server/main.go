package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/reshetovitsme/booru-telegram-feed/internal/di"
	deliveryService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/service"
	pollService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/service"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/logging"
	telegramHandler "github.com/reshetovitsme/booru-telegram-feed/internal/transport/telegram"
	httpServer "github.com/reshetovitsme/booru-telegram-feed/internal/transport/http"
	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"
)

// cacheCleanupInterval is how often expired downloads are dropped
const cacheCleanupInterval = time.Minute

func main() {
	// Setup structured logging with multiple handlers using slog-multi
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	// Use Fanout to send logs to both handlers, masking bot tokens in URLs
	multiHandler := slogmulti.Fanout(textHandler, jsonHandler)
	logger := slog.New(logging.NewTokenMasker(multiHandler))
	slog.SetDefault(logger)

	// Setup dependency injection
	injector, err := di.Setup()
	if err != nil {
		slog.Error("Failed to setup dependency injection", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	// Get services from DI container
	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	b, err := do.Invoke[*bot.Bot](injector)
	if err != nil {
		slog.Error("Failed to create bot", "error", err)
		os.Exit(1)
	}
	handler := do.MustInvoke[*telegramHandler.Handler](injector)
	scheduler := do.MustInvoke[*pollService.Scheduler](injector)
	cache := do.MustInvoke[*deliveryService.Cache](injector)
	httpServer := do.MustInvoke[*httpServer.Server](injector)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := handler.PublishCommands(ctx, b); err != nil {
		slog.Warn("Failed to publish bot commands", "error", err)
	}

	// Start polling Danbooru
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("Failed to schedule refreshes", "error", err)
		os.Exit(1)
	}
	cache.StartCleanupTicker(ctx, cacheCleanupInterval)

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			slog.Error("Failed to start HTTP server", "error", err)
			cancel()
		}
	}()

	// Receive Telegram updates
	go b.Start(ctx)

	slog.Info("Application started", "port", cfg.HTTPPort, "env", cfg.AppEnv.String())
	slog.Info("Press Ctrl+C to stop")

	<-ctx.Done()
	slog.Info("Shutting down...")
}
