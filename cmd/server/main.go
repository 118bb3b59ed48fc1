package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skillswap/chat-server/internal/auth"
	"github.com/skillswap/chat-server/internal/config"
	"github.com/skillswap/chat-server/internal/database"
	"github.com/skillswap/chat-server/internal/handler"
	"github.com/skillswap/chat-server/internal/jobs"
	"github.com/skillswap/chat-server/internal/realtime"
	"github.com/skillswap/chat-server/internal/redis"
	"github.com/skillswap/chat-server/internal/repository"
	"github.com/skillswap/chat-server/internal/service"
)

type stores struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	ping          handler.Pinger
	close         func() error
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	st, err := openStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.close()

	var (
		bus       realtime.Bus           = realtime.NewLocalBus()
		limiter   service.Limiter        = service.NewMemoryRateLimiter()
		events    service.EventPublisher = service.NopEventPublisher{}
		redisPing handler.Pinger
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		bus = realtime.NewRedisBus(redisClient.Client)
		limiter = service.NewRateLimiter(redisClient.Client)
		events = service.NewRedisEventPublisher(redisClient.Client)
		redisPing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Warn().Msg("REDIS_URL not set: deliveries stay within this process")
	}

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, bus)
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start dispatcher")
	}
	defer dispatcher.Close()

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	guard := service.NewGuard(st.conversations)
	directory := service.NewPrincipalDirectory(st.users)
	messageService := service.NewMessageService(guard, st.messages, directory, dispatcher, events, limiter,
		service.MessageLimits{
			MaxMessageLength:    cfg.MaxMessageLength,
			SendRateLimitPerMin: cfg.SendRateLimitPerMin,
		})
	convService := service.NewConversationService(st.conversations, guard, messageService)

	hub := realtime.NewHub(registry, verifier, guard, messageService, realtime.HubConfig{
		AuthTimeout:     cfg.AuthTimeout(),
		IdleTimeout:     cfg.IdleTimeout(),
		SendQueueSize:   cfg.SendQueueSize,
		ReconcileWindow: cfg.ReconcileWindow(),
	})

	health := handler.NewHealthHandler(hub.SessionCount)
	if st.ping != nil {
		health.AddCheck("database", st.ping)
	}
	if redisPing != nil {
		health.AddCheck("redis", redisPing)
	}

	r := handler.NewRouter(handler.RouterDeps{
		Verifier:           verifier,
		Hub:                hub,
		Conversations:      convService,
		Messages:           messageService,
		Limiter:            limiter,
		Health:             health,
		AllowedOrigins:     cfg.AllowedOrigins,
		APIRateLimitPerMin: config.DefaultRateLimitPerMin,
		IsProduction:       isProduction,
	})

	idleSweep := jobs.NewIdleSweepJob(hub, config.IdleSweepInterval)
	idleSweep.Start()
	defer idleSweep.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by http.Server.
	hub.Shutdown(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory store: messages are lost on restart")
		store := repository.NewMemoryStore()
		return &stores{
			conversations: store,
			messages:      store,
			users:         store,
			close:         func() error { return nil },
		}, nil
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("database connected")

	return &stores{
		conversations: repository.NewConversationRepository(db.DB),
		messages:      repository.NewMessageRepository(db.DB),
		users:         repository.NewUserRepository(db.DB),
		ping:          db.Ping,
		close:         db.Close,
	}, nil
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
