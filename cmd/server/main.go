// Package main runs the club backend HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lbsgbg/club-backend/config"
	"github.com/lbsgbg/club-backend/internal/auth"
	"github.com/lbsgbg/club-backend/internal/clock"
	"github.com/lbsgbg/club-backend/internal/meetings"
	"github.com/lbsgbg/club-backend/internal/middleware"
	"github.com/lbsgbg/club-backend/internal/ratelimit"
	"github.com/lbsgbg/club-backend/internal/rsvps"
	"github.com/lbsgbg/club-backend/pkg/database"
	"github.com/lbsgbg/club-backend/pkg/redis"
	"github.com/lbsgbg/club-backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	clk := clock.NewSystem()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Meetings
	meetingRepo := meetings.NewRepository(pool)
	meetingSvc := meetings.NewService(meetingRepo, clk)
	meetingHandler := meetings.NewHandler(meetingSvc)

	// RSVPs, admitted through the windowed rate limiter
	limiter := ratelimit.NewWithConfig(
		ratelimit.NewRedisCounters(rdb.Client), clk,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		int64(cfg.RateLimit.Limit),
	)
	rsvpRepo := rsvps.NewRepository(pool)
	rsvpSvc := rsvps.NewService(rsvpRepo, meetingRepo, limiter, logger)
	rsvpHandler := rsvps.NewHandler(rsvpSvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public: next meeting and RSVP submission. RSVP resolves a session
	// when a token is present so rate limiting can key on the user.
	router.GET("/meetings/next", meetingHandler.Next)
	router.POST("/meetings/:id/rsvp", middleware.OptionalSession(jwtService), rsvpHandler.Submit)

	// Admin API (JWT required; role checks live in the services)
	api := router.Group("")
	api.Use(middleware.Session(jwtService))
	{
		api.GET("/meetings", meetingHandler.List)
		api.POST("/meetings", meetingHandler.Create)
		api.PATCH("/meetings/:id", meetingHandler.Update)
		api.POST("/meetings/:id/cancel", meetingHandler.Cancel)
		api.GET("/meetings/:id/rsvps", rsvpHandler.ListByMeeting)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
