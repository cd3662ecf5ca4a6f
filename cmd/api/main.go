package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/chathub/internal/auth"
	"github.com/geocoder89/chathub/internal/cache"
	"github.com/geocoder89/chathub/internal/chat"
	"github.com/geocoder89/chathub/internal/config"
	"github.com/geocoder89/chathub/internal/db"
	"github.com/geocoder89/chathub/internal/domain/user"
	httpx "github.com/geocoder89/chathub/internal/http"
	"github.com/geocoder89/chathub/internal/http/handlers"
	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/geocoder89/chathub/internal/notifications"
	"github.com/geocoder89/chathub/internal/observability"
	"github.com/geocoder89/chathub/internal/realtime"
	"github.com/geocoder89/chathub/internal/redisclient"
	"github.com/geocoder89/chathub/internal/repo/memory"
	"github.com/geocoder89/chathub/internal/repo/postgres"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx := context.Background()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "chathub",
			Environment: cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			log.Error("otel init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	prom := observability.NewProm()
	checks := map[string]handlers.PingFunc{}

	// stores
	var (
		users    chat.UserStore
		convs    chat.ConversationStore
		messages chat.MessageStore
	)

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := db.Migrate(cfg.DatabaseURL(), log); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}

		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:       cfg.DatabaseURL(),
			MaxConns:  cfg.DBMaxConns,
			SlowQuery: cfg.DBSlowQuery,
			Log:       log,
		})
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		checks["postgres"] = pool.Ping
		users = postgres.NewUsersRepo(pool, prom)
		convs = postgres.NewConversationsRepo(pool, prom)
		messages = postgres.NewMessagesRepo(pool, prom)

	default:
		log.Warn("using in-memory store, data will not survive a restart")
		store := memory.NewStore()
		users, convs, messages = store.Users(), store.Conversations(), store.Messages()
	}

	// rate limiting
	var limitStore middlewares.LimitStore = middlewares.NewMemoryLimitStore()
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup", "err", err)
		}

		checks["redis"] = rdb.Ping
		limitStore = rdb
	}

	if cfg.UserCacheTTL > 0 {
		users = chat.NewCachedUserStore(users, cache.New[string, user.User](cfg.UserCacheTTL))
	}

	// notifications
	var (
		notifier notifications.Notifier = notifications.NewLogNotifier(log)
		hub      *realtime.Hub
	)
	if cfg.RealtimeEnabled {
		hub = realtime.NewHub(16, prom, log)
		notifier = notifications.NewProtectedNotifier(hub, notifications.ProtectedNotifierConfig{
			Timeout:          500 * time.Millisecond,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenMaxCalls: 1,
		})
	}

	svc := chat.NewService(users, convs, messages,
		chat.WithNotifier(notifier),
		chat.WithLogger(log),
	)

	seedCtx, cancelSeed := config.WithTimeout(ctx, 10*time.Second)
	err = db.EnsureAdminUser(seedCtx, svc, cfg)
	cancelSeed()
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	deps := httpx.Deps{
		Chat:       svc,
		Verifier:   auth.NewManager(cfg.JWTSecret, cfg.AccessTTL()),
		Prom:       prom,
		LimitStore: limitStore,
		Checks:     checks,
	}
	if hub != nil {
		deps.Hub = hub
	}

	router := httpx.NewRouter(log, cfg, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
