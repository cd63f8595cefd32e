package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pikpakhelper/internal/api"
	"pikpakhelper/internal/config"
	"pikpakhelper/internal/mailshop"
	"pikpakhelper/internal/repository"
	"pikpakhelper/internal/service/account"
	"pikpakhelper/internal/service/activation"
	"pikpakhelper/internal/service/auth"
	"pikpakhelper/internal/service/extraction"
	"pikpakhelper/internal/service/proxycheck"
	"pikpakhelper/internal/service/verification"
	"pikpakhelper/pkg/db"
	"pikpakhelper/pkg/logger"
	"pikpakhelper/pkg/mq"
	"pikpakhelper/pkg/outbox"
	pkgredis "pikpakhelper/pkg/redis"
	"pikpakhelper/pkg/util"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}

	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting pikpakhelper...",
		zap.String("port", cfg.Server.Port),
		zap.Bool("db_enabled", cfg.DB.Enabled()),
		zap.Bool("redis_enabled", cfg.Redis.Addr != ""),
		zap.Bool("mq_enabled", cfg.MQ.URL != ""),
		zap.Bool("auth_enabled", cfg.AuthEnabled()),
	)

	readyChecks := map[string]api.Pinger{}

	// DB（账号历史），未配置时账号接口返回 503
	var accountHandler *api.AccountHandler
	var dbConn *pgxpool.Pool
	if cfg.DB.Enabled() {
		dbConn, err = db.NewConnection(cfg.DB, log)
		if err != nil {
			log.Fatal("DB initialization failed", zap.Error(err))
		}
		defer dbConn.Close()

		accountRepo := repository.NewAccountRepository(dbConn)
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = accountRepo.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			log.Fatal("Failed to ensure accounts schema", zap.Error(err))
		}

		accountHandler = api.NewAccountHandler(account.NewService(accountRepo, log))
		readyChecks["db"] = dbConn
	}

	// Redis（提取锁 + 库存缓存）
	extractionOpts := extraction.Options{InventoryTTL: cfg.Mailshop.InventoryTTL}
	if cfg.Redis.Addr != "" {
		rdb, err := pkgredis.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		extractionOpts.Locker = util.NewInFlightLock(rdb, cfg.Mailshop.LockTTL, log)
		extractionOpts.Cache = pkgredis.NewJSONCache(rdb, "pikpak:")
		readyChecks["redis"] = api.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// MQ Publisher（可选）；有 DB 时发布失败的事件进 outbox 补发
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var mqConnected func() bool
	var eventPublisher outbox.Publisher
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()

		eventPublisher = publisher
		mqConnected = publisher.IsConnected

		if dbConn != nil {
			outboxRepo := outbox.NewRepository(dbConn)
			if err := outboxRepo.EnsureSchema(ctx); err != nil {
				log.Fatal("Failed to ensure outbox schema", zap.Error(err))
			}
			eventPublisher = outbox.NewFallbackPublisher(publisher, outboxRepo, log)
			go outbox.NewDispatcher(outboxRepo, publisher, log).Start(ctx)
		}
	}
	extractionOpts.Publisher = eventPublisher

	// Services
	provider := mailshop.NewClient(mailshop.Config{
		BaseURL:        cfg.Mailshop.BaseURL,
		QueryTimeout:   cfg.Mailshop.QueryTimeout,
		ExtractTimeout: cfg.Mailshop.ExtractTimeout,
	}, log)
	extractionService := extraction.NewService(provider, extractionOpts, log)
	activationService := activation.NewService(cfg.Activation.URL, cfg.Activation.Referer, cfg.Activation.Timeout, eventPublisher, log)
	verificationService := verification.NewService(cfg.IMAP.Server, cfg.IMAP.Sender, cfg.IMAP.Timeout, log)
	proxyService := proxycheck.NewService(cfg.ProxyCheck.ProbeURL, cfg.ProxyCheck.Timeout, log)
	authService := auth.NewService(cfg.Admin.PasswordHash, cfg.JWT.Secret, cfg.JWT.TTL)

	router := api.NewRouter(api.Deps{
		Extraction:  api.NewExtractionHandler(extractionService),
		Accounts:    accountHandler,
		Activation:  api.NewActivationHandler(activationService),
		Tools:       api.NewToolsHandler(verificationService, proxyService),
		Auth:        authService,
		ReadyChecks: readyChecks,
		MQConnected: mqConnected,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down HTTP server...")
	stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("pikpakhelper shutdown complete")
}
