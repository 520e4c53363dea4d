package di

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	chatRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/repository"
	chatService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/service"
	deliveryRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/repository"
	deliveryService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/service"
	feedService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/feed/service"
	operatorRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/operator/repository"
	operatorService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/operator/service"
	pollRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/repository"
	pollService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/service"
	postRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/repository"
	settingsService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/service"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	httpServer "github.com/reshetovitsme/booru-telegram-feed/internal/transport/http"
	telegramHandler "github.com/reshetovitsme/booru-telegram-feed/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// shutdownTimeout bounds how long the HTTP server drains on shutdown
const shutdownTimeout = 10 * time.Second

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Chat Repository
	do.Provide(injector, func(i do.Injector) (chatRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := chatRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize chat repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Delivery Repository
	do.Provide(injector, func(i do.Injector) (deliveryRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := deliveryRepo.NewFileStorage(cfg.StoragePath, cfg.DeliveryLogSize)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize delivery repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Operator Repository
	do.Provide(injector, func(i do.Injector) (operatorRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := operatorRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize operator repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Poll Repository
	do.Provide(injector, func(i do.Injector) (pollRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := pollRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize poll repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Danbooru Client
	do.Provide(injector, func(i do.Injector) (postRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return postRepo.NewClient(cfg.DanbooruURL, cfg.DanbooruUsername, cfg.DanbooruAPIKey), nil
	})

	// Register Chat Service
	do.Provide(injector, func(i do.Injector) (*chatService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[chatRepo.Repository](i)
		return chatService.New(cfg, repo), nil
	})

	// Register Operator Service
	do.Provide(injector, func(i do.Injector) (*operatorService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[operatorRepo.Repository](i)
		return operatorService.New(cfg, repo), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		chats := do.MustInvoke[chatRepo.Repository](i)
		deliveries := do.MustInvoke[deliveryRepo.Repository](i)
		return feedService.New(chats, deliveries), nil
	})

	// Register Telegram Sender, the bot is attached once it exists
	do.Provide(injector, func(i do.Injector) (*telegramHandler.Sender, error) {
		return telegramHandler.NewSender(), nil
	})

	// Register Download Cache
	do.Provide(injector, func(i do.Injector) (*deliveryService.Cache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return deliveryService.NewCache(cfg.CacheTTL(), cfg.DownloadCacheSize), nil
	})

	// Register Poster
	do.Provide(injector, func(i do.Injector) (*deliveryService.Poster, error) {
		cfg := do.MustInvoke[*config.Config](i)
		sender := do.MustInvoke[*telegramHandler.Sender](i)
		client := do.MustInvoke[postRepo.Repository](i)
		records := do.MustInvoke[deliveryRepo.Repository](i)
		cache := do.MustInvoke[*deliveryService.Cache](i)
		return deliveryService.NewPoster(cfg.DanbooruURL, sender, client, records, cache), nil
	})

	// Register Poller
	do.Provide(injector, func(i do.Injector) (*pollService.Poller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[postRepo.Repository](i)
		poster := do.MustInvoke[*deliveryService.Poster](i)
		chats := do.MustInvoke[*chatService.Service](i)
		repo := do.MustInvoke[pollRepo.Repository](i)
		return pollService.New(cfg, client, poster, chats, repo), nil
	})

	// Register Scheduler
	do.Provide(injector, func(i do.Injector) (*pollService.Scheduler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		poller := do.MustInvoke[*pollService.Poller](i)
		return pollService.NewScheduler(poller, cfg.RefreshInterval()), nil
	})

	// Register Settings Machine
	do.Provide(injector, func(i do.Injector) (*settingsService.Machine, error) {
		cfg := do.MustInvoke[*config.Config](i)
		chats := do.MustInvoke[*chatService.Service](i)
		client := do.MustInvoke[postRepo.Repository](i)
		poster := do.MustInvoke[*deliveryService.Poster](i)
		sender := do.MustInvoke[*telegramHandler.Sender](i)
		return settingsService.New(chats, client, poster, sender, cfg.ExamplePostID), nil
	})

	// Register Telegram Handler
	do.Provide(injector, func(i do.Injector) (*telegramHandler.Handler, error) {
		return telegramHandler.New(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*chatService.Service](i),
			do.MustInvoke[*operatorService.Service](i),
			do.MustInvoke[*settingsService.Machine](i),
			do.MustInvoke[*pollService.Poller](i),
			do.MustInvoke[*pollService.Scheduler](i),
			do.MustInvoke[postRepo.Repository](i),
			do.MustInvoke[*deliveryService.Poster](i),
			do.MustInvoke[*telegramHandler.Sender](i),
		), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		feeds := do.MustInvoke[*feedService.Service](i)
		server := httpServer.New(cfg, feeds)
		server.SetLogger(slog.Default())
		return server, nil
	})

	// Register Bot (needs to be initialized after handlers are ready)
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		handler := do.MustInvoke[*telegramHandler.Handler](i)

		opts := []bot.Option{
			bot.WithDefaultHandler(handler.HandleUpdate),
			bot.WithServerURL(cfg.TelegramAPIURL),
		}

		b, err := bot.New(cfg.TelegramBotToken, opts...)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}

		// Register bot commands
		handler.RegisterCommands(b)

		// Set bot in sender
		sender := do.MustInvoke[*telegramHandler.Sender](i)
		sender.SetBot(b)

		return b, nil
	})

	return injector, nil
}

// Shutdown gracefully shuts down all services
func Shutdown(injector do.Injector) error {
	// Stop polling, cancelling a refresh in progress
	if scheduler, err := do.Invoke[*pollService.Scheduler](injector); err == nil && scheduler != nil {
		scheduler.Stop()
	}
	if poller, err := do.Invoke[*pollService.Poller](injector); err == nil && poller != nil {
		poller.Cancel()
	}

	// Drain HTTP connections
	if server, err := do.Invoke[*httpServer.Server](injector); err == nil && server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return oops.With("context", "failed to stop http server").Wrap(err)
		}
	}

	return nil
}
