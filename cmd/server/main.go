package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vedran77/teamchat/internal/config"
	"github.com/vedran77/teamchat/internal/database"
	"github.com/vedran77/teamchat/internal/events"
	"github.com/vedran77/teamchat/internal/logger"
	"github.com/vedran77/teamchat/internal/metrics"
	"github.com/vedran77/teamchat/internal/presence"
	"github.com/vedran77/teamchat/internal/realtime"
	"github.com/vedran77/teamchat/internal/repository"
	"github.com/vedran77/teamchat/internal/repository/memory"
	postgresrepo "github.com/vedran77/teamchat/internal/repository/postgres"
	"github.com/vedran77/teamchat/internal/service"
	"github.com/vedran77/teamchat/internal/telemetry"
	"github.com/vedran77/teamchat/internal/transport/http/handlers"
	"github.com/vedran77/teamchat/internal/transport/http/middleware"
	"github.com/vedran77/teamchat/internal/transport/ws"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	presenceTTL     = 90 * time.Second
	shutdownTimeout = 10 * time.Second
)

type repositories struct {
	users       repository.UserRepository
	workspaces  repository.WorkspaceRepository
	chats       repository.ChatRepository
	messages    repository.MessageRepository
	invitations repository.InvitationRepository
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg, err := logger.New(cfg.Development())
	if err != nil {
		return err
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logg.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	metrics.Init()

	// Repositories
	var repos repositories
	switch cfg.StoreDriver {
	case "memory":
		store := memory.NewStore()
		repos = repositories{store.Users(), store.Workspaces(), store.Chats(), store.Messages(), store.Invitations()}
		logg.Warn("using in-memory store, data is lost on restart")
	default:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		logg.Info("connected to database", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

		repos = repositories{
			users:       postgresrepo.NewUserRepo(pool),
			workspaces:  postgresrepo.NewWorkspaceRepo(pool),
			chats:       postgresrepo.NewChatRepo(pool),
			messages:    postgresrepo.NewMessageRepo(pool),
			invitations: postgresrepo.NewInvitationRepo(pool),
		}
	}

	// Services
	authService := service.NewAuthService(repos.users, cfg.JWTSecret)
	workspaceService := service.NewWorkspaceService(repos.workspaces, repos.chats, repos.invitations, repos.users)
	chatService := service.NewChatService(repos.chats, repos.workspaces)
	messageService := service.NewMessageService(repos.messages, repos.chats, repos.workspaces, logg)
	invitationService := service.NewInvitationService(repos.invitations, repos.workspaces)

	// Realtime
	registry := realtime.NewRegistry(logg)
	notifier := realtime.NewNotifier(registry, logg)
	workspaceService.SetNotifier(notifier)
	chatService.SetNotifier(notifier)
	messageService.SetNotifier(notifier)

	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logg)
		defer producer.Close()
		messageService.SetPublisher(producer)
		logg.Info("publishing message events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	gateway := realtime.NewGateway(registry, chatService, messageService, realtime.GatewayConfig{
		ReportErrors:     cfg.WS.ReportErrors,
		IntentsPerSecond: cfg.WS.IntentsPerSecond,
		IntentBurst:      cfg.WS.IntentBurst,
	}, logg)
	wsHandler := ws.NewHandler(gateway, cfg.JWTSecret, cfg.WS.SendBuffer, logg)

	var presenceHandler *handlers.PresenceHandler
	if cfg.RedisURL != "" {
		client, err := presence.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		store := presence.NewStore(client, "teamchat", presenceTTL)
		wsHandler.SetPresence(store, store.TTL()/3)
		presenceHandler = handlers.NewPresenceHandler(store, logg)
		logg.Info("presence tracking enabled", zap.Duration("ttl", store.TTL()))
	}

	// Routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)

	handlers.Register(mux, handlers.Set{
		Auth:        handlers.NewAuthHandler(authService, logg),
		Workspaces:  handlers.NewWorkspaceHandler(workspaceService, chatService, invitationService, logg),
		Chats:       handlers.NewChatHandler(chatService, logg),
		Messages:    handlers.NewMessageHandler(messageService, logg),
		Invitations: handlers.NewInvitationHandler(invitationService, logg),
		Presence:    presenceHandler,
	}, middleware.Auth(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.CORS(middleware.Logging(logg)(otelhttp.NewHandler(mux, "http.server"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	registry.CloseAll("server shutting down")
	return srv.Shutdown(shutdownCtx)
}
