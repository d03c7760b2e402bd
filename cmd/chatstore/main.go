package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/KTB-loadTest/Team9/internal/api"
	"github.com/KTB-loadTest/Team9/internal/cache"
	cfgpkg "github.com/KTB-loadTest/Team9/internal/config"
	"github.com/KTB-loadTest/Team9/internal/events"
	"github.com/KTB-loadTest/Team9/internal/logger"
	"github.com/KTB-loadTest/Team9/internal/memstore"
	"github.com/KTB-loadTest/Team9/internal/metrics"
	"github.com/KTB-loadTest/Team9/internal/ratelimit"
	"github.com/KTB-loadTest/Team9/internal/repository"
	"github.com/KTB-loadTest/Team9/internal/service"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg, err := cfgpkg.Load("config.yaml")
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Development})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// hot-path stores
	var (
		messages  service.MessageStore
		reactions service.ReactionStore
		readers   service.ReaderStore
	)
	if cfg.App.DevMode {
		zlog.Warn("dev mode: using in-memory stores")
		messages = memstore.NewMessageStore()
		reactions = memstore.NewReactionStore()
		readers = memstore.NewReaderStore()
	} else {
		rdb, err := cache.NewClient(cfg)
		if err != nil {
			zlog.Fatalw("redis init", "err", err)
		}
		defer rdb.Close()
		messages = cache.NewMessageStore(rdb, cfg.Redis.Prefix, cfg.Retention(), zlog)
		reactions = cache.NewReactionStore(rdb, cfg.Redis.Prefix)
		readers = cache.NewReaderStore(rdb, cfg.Redis.Prefix, zlog)
	}

	// durable collaborators
	mc, err := repository.NewMongoClient(cfg)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.Mongo.Database)
	msgRepo := repository.NewMessageRepository(db.Collection("messages"))
	userRepo := repository.NewUserRepository(db.Collection("users"))
	fileRepo := repository.NewFileRepository(db.Collection("files"))
	users := service.NewUserCache(userRepo)

	// one reaction path per deployment; rooms never mix paths
	var selector service.MutatorSelector
	switch cfg.Cache.ReactionPath {
	case "document":
		selector = service.StaticSelector{M: service.NewDocumentReactionMutator(msgRepo)}
	default:
		selector = service.StaticSelector{M: service.NewCacheReactionMutator(messages, reactions)}
	}

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		p := events.NewPublisher(cfg)
		defer p.Close()
		publisher = p
	}

	chatSvc := service.NewChatService(
		messages, reactions, readers,
		users, fileRepo,
		selector, publisher,
		cfg.Cache.BatchSize, zlog,
	)
	loader := service.NewMessageLoader(msgRepo, users, fileRepo, cfg.Cache.BatchSize, zlog)

	var limiter ratelimit.Limiter = ratelimit.Nop{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimitWindow(),
	}
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewPerClient(cfg.RateLimit.MaxRequests, cfg.RateLimitWindow())
	}

	app := api.NewServer(chatSvc, loader, limiter)

	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()

	metricsSrv := &http.Server{Addr: ":" + cfg.App.MetricsPort, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Errorw("metrics listen", "err", err)
		}
	}()

	zlog.Infow("chatstore started", "port", cfg.App.Port, "reaction_path", cfg.Cache.ReactionPath)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	_ = metricsSrv.Shutdown(ctx)
	zlog.Info("chatstore stopped")
}
