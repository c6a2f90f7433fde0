package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/chat/memchat"
	"github.com/MrSnakeDoc/coursebots/internal/config"
	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
	"github.com/MrSnakeDoc/coursebots/internal/db"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver/deps"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
	"github.com/MrSnakeDoc/coursebots/internal/redis"
	"github.com/MrSnakeDoc/coursebots/internal/scheduler"
	"github.com/MrSnakeDoc/coursebots/internal/store"
	boltstore "github.com/MrSnakeDoc/coursebots/internal/store/bolt"
	"github.com/MrSnakeDoc/coursebots/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/coursebots/internal/store/redis"
	"github.com/MrSnakeDoc/coursebots/internal/utils"
	"github.com/MrSnakeDoc/coursebots/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	store    store.Store
	bots     *coursebot.Bots
	reloader *scheduler.BotFileReloader
}

func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	// Open the store early - fail fast if unavailable
	kv, err := openStore(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}
	loggerClient.Info("store initialized", logger.String("backend", cfg.Store))

	// The chat service lives in process; bots log into it like any user.
	chatService := memchat.New(loggerClient.With(logger.String("component", "chat")))
	bots := coursebot.NewBots(db.New(kv), chatService, memchat.NewFactory(nil),
		loggerClient.With(logger.String("component", "bots")),
		coursebot.Options{Prefix: cfg.BotPrefix})

	if err := bots.Prepare(ctx); err != nil {
		utils.MustClose(kv, "store", loggerClient)
		return nil, fmt.Errorf("failed to prepare bots: %w", err)
	}

	// Initialize bots file reloader (if a bots file is configured)
	var reloader *scheduler.BotFileReloader
	var reloadTrigger chan struct{}
	var lastReload func() time.Time
	if cfg.BotsFile != "" {
		loggerClient.Info("bots file configured, initializing reloader",
			logger.String("file", cfg.BotsFile))
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewBotFileReloader(
			cfg.BotsFile,
			bots,
			loggerClient,
			cfg.ReloadEvery,
			reloadTrigger,
		)
		lastReload = reloader.LastReload
	} else {
		loggerClient.Info("bots file not configured, bots are managed through the API only")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		APIRateLimit:  cfg.APIRateLimit,
		Bots:          bots,
		Store:         kv,
		StoreKind:     cfg.Store,
		BotsFile:      cfg.BotsFile,
		ReloadTrigger: reloadTrigger,
		LastReload:    lastReload,
	}

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		server:   httpserver.New(cfg.ListenPort, d),
		store:    kv,
		bots:     bots,
		reloader: reloader,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisstore.NewStore(client, cfg.RedisKeyPrefix), nil

	case config.StoreBolt:
		s, err := boltstore.Open(cfg.BoltPath, cfg.BoltTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		log.Info("bolt store opened", logger.String("path", s.Path()))
		return s, nil

	case config.StoreMemory:
		log.Warn("using the in-memory store, bot state is lost on restart")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}

// Run starts the bots and the HTTP server and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	a.logger.Infof("🚀 Starting coursebots v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer utils.MustClose(a.store, "store", a.logger)

	// Bring stored bots back before applying the bots file
	if err := a.bots.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bots: %w", err)
	}
	defer a.bots.Stop(context.Background())

	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start bots file reloader: %w", err)
		}
		defer a.reloader.Stop()
		a.logger.Info("bots file reloader started",
			logger.Duration("interval", a.cfg.ReloadEvery))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ coursebots stopped cleanly")
	return nil
}
