package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vedran77/chatwave/internal/config"
	"github.com/vedran77/chatwave/internal/database"
	"github.com/vedran77/chatwave/internal/integrations/genai"
	"github.com/vedran77/chatwave/internal/logging"
	"github.com/vedran77/chatwave/internal/repository"
	"github.com/vedran77/chatwave/internal/repository/memory"
	postgresrepo "github.com/vedran77/chatwave/internal/repository/postgres"
	"github.com/vedran77/chatwave/internal/service"
	"github.com/vedran77/chatwave/internal/transport/http/handlers"
	"github.com/vedran77/chatwave/internal/transport/http/router"
	"github.com/vedran77/chatwave/internal/transport/ws"
)

type repos struct {
	users    repository.UserRepository
	blocks   repository.BlockRepository
	convs    repository.ConversationRepository
	messages repository.MessageRepository
	resets   repository.PasswordResetRepository
}

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	r, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Generation service
	generator, err := genai.NewClient(cfg.GenAIAPIKey, cfg.GenAIModel,
		genai.WithBaseURL(cfg.GenAIBaseURL),
		genai.WithHTTPClient(&http.Client{Timeout: cfg.GenAITimeout}),
	)
	if err != nil {
		return fmt.Errorf("creating generation client: %w", err)
	}

	// Services
	authService := service.NewAuthService(r.users, r.resets, cfg.JWTSecret)
	blockService := service.NewBlockService(r.blocks, r.users)
	convService := service.NewConversationService(r.convs, r.messages, r.users)
	dispatchService := service.NewDispatchService(r.blocks, r.convs, r.messages, r.users)

	rcfg := service.DefaultResponderConfig()
	rcfg.HistoryLimit = cfg.BotHistoryLimit
	rcfg.MaxTokens = cfg.BotMaxOutputTokens
	rcfg.Retry.MaxRetries = cfg.BotMaxRetries
	rcfg.Retry.Delay = cfg.BotRetryDelay
	rcfg.Retry.AttemptTimeout = cfg.GenAITimeout
	responderService := service.NewResponderService(r.convs, r.messages, r.users, generator, rcfg)

	// Realtime
	hub := ws.NewHub()
	if cfg.RedisURL != "" {
		relay, closeRelay, err := openRelay(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer closeRelay()
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("redis relay stopped", "error", err)
			}
		}()
	}
	dispatchService.SetNotifier(ws.NewHubNotifier(hub))

	wsCfg := ws.Config{
		BotEmailSuffix:  cfg.BotEmailSuffix,
		EventsPerSecond: cfg.WSEventsPerSecond,
		EventBurst:      cfg.WSEventBurst,
	}
	if cfg.WSStrictMembership {
		wsCfg.Membership = ws.NewParticipantMembership(r.convs)
	}
	gateway := ws.NewGateway(hub, authService, r.users, r.convs, dispatchService, responderService, wsCfg)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// HTTP
	handler := router.New(router.Deps{
		Auth:      authService,
		Accounts:  handlers.NewAuthHandler(authService),
		Users:     handlers.NewUserHandler(authService, blockService),
		Chats:     handlers.NewChatHandler(convService),
		Messages:  handlers.NewMessageHandler(dispatchService, convService),
		WebSocket: gateway.ServeWS,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	// Stop taking bot messages and drain pending replies while the hub can
	// still deliver them.
	gateway.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*repos, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &repos{users: s.Users, blocks: s.Blocks, convs: s.Conversations, messages: s.Messages, resets: s.Resets}, func() {}, nil

	case "postgres":
		pool, err := database.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		slog.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)
		return &repos{
			users:    postgresrepo.NewUserRepo(pool),
			blocks:   postgresrepo.NewBlockRepo(pool),
			convs:    postgresrepo.NewConversationRepo(pool),
			messages: postgresrepo.NewMessageRepo(pool),
			resets:   postgresrepo.NewPasswordResetRepo(pool),
		}, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openRelay(ctx context.Context, url string) (*ws.RedisRelay, func(), error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	slog.Info("redis relay enabled", "channel", ws.DefaultRelayChannel)
	return ws.NewRedisRelay(client, ws.DefaultRelayChannel), func() { client.Close() }, nil
}
