package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"powerx/internal/auth"
	"powerx/internal/config"
	cronrunner "powerx/internal/cron"
	"powerx/internal/db"
	"powerx/internal/dispatch"
	"powerx/internal/engine"
	"powerx/internal/handler"
	"powerx/internal/logger"
	"powerx/internal/market"
	"powerx/internal/marketdata"
	"powerx/internal/models"
	gormrepository "powerx/internal/repository/gorm"
	"powerx/internal/service"
)

const version = "1.0.0"

func main() {
	configPath := os.Getenv("POWERX_CONFIG")
	envOnly := configPath == ""
	if envOnly {
		configPath = "config/config.yaml"
		if _, err := os.Stat(configPath); err == nil {
			envOnly = false
		}
	}
	cfg, err := config.Load(configPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	defer func() { _ = db.Close(database) }()

	if err := db.AutoMigrate(database); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	if err := db.SetTimezone(database, cfg.DB.Timezone); err != nil {
		log.Warn("session timezone not set", zap.Error(err))
	}

	repo := gormrepository.New(database.Gorm)

	marketLoc, err := time.LoadLocation(cfg.Cron.MarketTimezone)
	if err != nil {
		log.Warn("unknown market timezone, using UTC", zap.String("tz", cfg.Cron.MarketTimezone))
		marketLoc = time.UTC
	}

	registry := market.NewRegistry()
	validator := market.NewValidator(registry)

	simFeed := marketdata.NewSimFeed(registry, repo, log, cfg.MarketFeed)
	var feed marketdata.Feed = simFeed
	var redisClient *redis.Client
	if cfg.QuoteCache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.QuoteCache.Addr,
			Password: cfg.QuoteCache.Password,
			DB:       cfg.QuoteCache.DB,
		})
		feed = marketdata.NewCachedFeed(simFeed, redisClient, cfg.QuoteCache.TTL, log)
	}

	dispatcher := &dispatch.SimDispatcher{
		Repo:      repo,
		Validator: validator,
		Logger:    log,
		AutoFill:  cfg.Dispatch.AutoFill,
	}

	eng := &engine.Engine{
		Repo:        repo,
		Feed:        feed,
		Dispatcher:  dispatcher,
		Logger:      log,
		Config:      cfg.Engine,
		Provinces:   cfg.MarketFeed.Provinces,
		MarketTypes: cfg.MarketFeed.MarketTypes,
	}

	jwtSvc := auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.Disabled {
		log.Warn("auth.jwt_secret is empty; tokens are signed with an empty key")
	}
	bootstrapAdmin(repo, log)

	var chat service.ChatClient
	if cfg.Commentary.Enabled {
		apiKey := os.Getenv(cfg.Commentary.APIKeyEnv)
		if apiKey == "" {
			log.Warn("commentary enabled but api key env is empty",
				zap.String("env", cfg.Commentary.APIKeyEnv))
		} else {
			chat = service.NewAnthropicClient(apiKey, cfg.Commentary.Model, cfg.Commentary.MaxTokens)
		}
	}
	commentary := &service.CommentaryService{Repo: repo, Chat: chat, Config: cfg.Commentary, Logger: log}
	backup := &service.BackupService{Repo: repo, Config: cfg.Backup, Logger: log}
	settlement := &service.SettlementService{Repo: repo, Logger: log}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := cronrunner.New(log, rootCtx, marketLoc)
	if cfg.Cron.Enabled {
		if _, err := runner.Add(cfg.Cron.QuoteRefresh, simFeed.Refresh); err != nil {
			log.Fatal("bad quote refresh schedule", zap.Error(err))
		}
		if cfg.Engine.Enabled {
			if _, err := runner.Add(cfg.Cron.EngineTick, eng.Tick); err != nil {
				log.Fatal("bad engine tick schedule", zap.Error(err))
			}
			if _, err := runner.Add(cfg.Cron.DailyReset, eng.ResetDailyCounters); err != nil {
				log.Fatal("bad daily reset schedule", zap.Error(err))
			}
			if _, err := runner.Add(cfg.Cron.ExpirySweep, eng.SweepExpired); err != nil {
				log.Fatal("bad expiry sweep schedule", zap.Error(err))
			}
		}
		if cfg.Backup.Enabled {
			if _, err := runner.Add(cfg.Cron.BackupJob, func(ctx context.Context) {
				if _, err := backup.Run(ctx, "cron"); err != nil {
					log.Warn("scheduled backup failed", zap.Error(err))
				}
			}); err != nil {
				log.Fatal("bad backup schedule", zap.Error(err))
			}
		}
		runner.Start()
		defer runner.Stop()
	}

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(auth.IPFilterMiddleware(repo, cfg.Auth.IPFilter, log))
	router.Use(auth.Middleware(jwtSvc, repo, cfg.Auth.APIKeyHeader, cfg.Auth.Disabled, log))

	handlers := []interface{ Register(*gin.Engine) }{
		&handler.HealthHandler{DB: database, Version: version},
		&handler.AuthHandler{Repo: repo, JWT: jwtSvc, Logger: log},
		&handler.RulesHandler{Repo: repo, Engine: eng, Logger: log},
		&handler.ConditionalOrdersHandler{Repo: repo, Feed: feed, Registry: registry, Logger: log},
		&handler.OrdersHandler{Repo: repo, Validator: validator, AutoFill: cfg.Dispatch.AutoFill, Logger: log},
		&handler.MarketHandler{Repo: repo, Registry: registry, Validator: validator, Feed: feed, Logger: log},
		&handler.ContractsHandler{Repo: repo, Logger: log},
		&handler.SettlementsHandler{Repo: repo, Settlement: settlement, Location: marketLoc, Logger: log},
		&handler.DashboardHandler{Repo: repo, Location: marketLoc, Logger: log},
		&handler.NotificationsHandler{Repo: repo, Logger: log},
		&handler.AdminHandler{Repo: repo, Backup: backup, Logger: log},
		&handler.CommentaryHandler{Commentary: commentary, Provinces: cfg.MarketFeed.Provinces, Logger: log},
	}
	for _, h := range handlers {
		h.Register(router)
	}

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// bootstrapAdmin creates the first admin account when the user table is empty.
// The password comes from POWERX_BOOTSTRAP_PASSWORD; without it nothing is
// seeded and login stays closed until an operator creates a user.
func bootstrapAdmin(repo *gormrepository.Store, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := repo.GetUserByUsername(ctx, "admin")
	if err != nil {
		log.Warn("bootstrap admin lookup failed", zap.Error(err))
		return
	}
	if existing != nil {
		return
	}
	password := os.Getenv("POWERX_BOOTSTRAP_PASSWORD")
	if password == "" {
		log.Info("no admin user and POWERX_BOOTSTRAP_PASSWORD unset, skipping bootstrap")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Warn("bootstrap admin hash failed", zap.Error(err))
		return
	}
	if err := repo.CreateUser(ctx, &models.User{
		Username:     "admin",
		PasswordHash: string(hash),
		DisplayName:  "Administrator",
		Role:         "admin",
		Active:       true,
	}); err != nil {
		log.Warn("bootstrap admin create failed", zap.Error(err))
		return
	}
	log.Info("bootstrap admin created")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
