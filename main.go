package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canteen-api/auth"
	"canteen-api/config"
	"canteen-api/handlers"
	"canteen-api/logging"
	"canteen-api/middleware"
	"canteen-api/notify"
	"canteen-api/ratelimit"
	"canteen-api/routes"
	"canteen-api/services"
	"canteen-api/session"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.OpenDB(cfg, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		logger.Info("connected to redis")
	}

	var sessions session.Store
	if cfg.Session.Store == "redis" {
		sessions = session.NewRedisStore(rdb, cfg.Session.TTL)
	} else {
		gormStore := session.NewGormStore(db, cfg.Session.TTL)
		sessions = gormStore
		go sweepSessions(gormStore, logger)
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if rdb != nil {
		limiter = ratelimit.NewRedisLimiter(rdb, "otp_rate:")
	}

	var sms notify.SMSSender = notify.LogSMS{Log: logger}
	if cfg.SMS.Fast2SMSKey != "" {
		sms = notify.BreakerSMS{
			Next:    notify.NewFast2SMS(cfg.SMS.Fast2SMSKey),
			Breaker: notify.NewBreaker("fast2sms", 3, time.Minute, logger),
		}
	} else {
		logger.Warn("FAST2SMS_API_KEY not set, OTP messages will only be logged")
	}
	var email notify.EmailSender = notify.LogEmail{Log: logger}
	if cfg.Email.BrevoKey != "" {
		email = notify.BreakerEmail{
			Next:    notify.NewBrevo(cfg.Email.BrevoKey, cfg.Email.From, cfg.Email.FromName),
			Breaker: notify.NewBreaker("brevo", 3, time.Minute, logger),
		}
	}

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	authSvc := services.NewAuthService(db, tokens, sms, email, limiter, logger, services.AuthConfig{
		OTPTTL:              cfg.OTP.TTL,
		OTPRateLimitPerHour: cfg.OTP.RateLimitPerHour,
		ExposeCodes:         cfg.IsDevelopment() && cfg.OTP.Expose,
		AdminPhones:         cfg.AdminPhones,
	})
	h := handlers.New(
		authSvc,
		services.NewMenuService(db),
		services.NewOrderService(db),
		sessions,
		handlers.CookieConfig{Name: cfg.Session.CookieName, TTL: cfg.Session.TTL, Secure: cfg.Session.CookieSecure},
		logger,
		cfg.IsProduction(),
	)

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Fatal("invalid TRUSTED_PROXIES", zap.Error(err))
	}
	r.Use(gin.Recovery())

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Env,
		}); err != nil {
			logger.Error("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
			r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
		}
	}

	r.Use(logging.RequestID())
	r.Use(logging.GinLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logging.RequestIDHeader},
		ExposeHeaders:    []string{logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	done := make(chan struct{})
	var throttle gin.HandlerFunc
	if cfg.AuthRatePerMinute > 0 {
		ipLimiter := middleware.NewIPRateLimiter(cfg.AuthRatePerMinute, 5, logger)
		go ipLimiter.Run(done)
		throttle = ipLimiter.Handler()
	}

	routes.SetupRoutes(r, h, middleware.Authenticate(tokens, sessions, cfg.Session.CookieName, logger), throttle)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// sweepSessions deletes expired database sessions once an hour.
func sweepSessions(store *session.GormStore, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		n, err := store.Sweep(context.Background())
		if err != nil {
			logger.Warn("session sweep failed", zap.Error(err))
			continue
		}
		if n > 0 {
			logger.Info("expired sessions removed", zap.Int64("count", n))
		}
	}
}
