// Package main runs the meeting platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/huddle-live/backend/config"
	"github.com/huddle-live/backend/internal/attendance"
	"github.com/huddle-live/backend/internal/auth"
	"github.com/huddle-live/backend/internal/meetings"
	"github.com/huddle-live/backend/internal/messages"
	"github.com/huddle-live/backend/internal/middleware"
	"github.com/huddle-live/backend/internal/realtime"
	"github.com/huddle-live/backend/internal/recaps"
	"github.com/huddle-live/backend/internal/usersettings"
	"github.com/huddle-live/backend/pkg/database"
	"github.com/huddle-live/backend/pkg/queue"
	"github.com/huddle-live/backend/pkg/redis"
	"github.com/huddle-live/backend/pkg/response"
	"github.com/huddle-live/backend/pkg/storage"
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

	var s3Client *storage.S3
	if cfg.AWS.ArchiveBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Meetings
	meetingRepo := meetings.NewRepository(pool)

	// Room coordination
	registry := realtime.NewRegistry(hub, meetingRepo, logger)
	attendanceRepo := attendance.NewRepository(pool)
	registry.SetAttendanceLogger(attendanceRepo)
	registry.SetEndedHandler(func(ended realtime.EndedSession) {
		if err := jobQueue.EnqueueRecap(context.Background(), queue.RecapPayload{
			MeetingID:  ended.MeetingID,
			Title:      ended.Title,
			StartedAt:  ended.StartedAt,
			EndedAt:    ended.EndedAt,
			Transcript: ended.Transcript,
		}); err != nil {
			logger.Error("enqueue recap", zap.String("meeting_id", ended.MeetingID.String()), zap.Error(err))
		}
	})

	messageRepo := messages.NewRepository(pool)
	broker := realtime.NewBroker(hub, registry, messageRepo, meetingRepo, logger)
	broker.SetTranscriptionSink(realtime.NewRedisTranscriptionSink(rdb.Client))

	meetingHandler := meetings.NewHandler(meetingRepo, registry)
	messageHandler := messages.NewHandler(messageRepo)
	attendanceHandler := attendance.NewHandler(attendanceRepo)

	// Recaps
	recapRepo := recaps.NewRepository(pool)
	recapHandler := recaps.NewHandler(recapRepo, s3Client, logger)

	// User settings
	settingsRepo := usersettings.NewRepository(pool)
	settingsHandler := usersettings.NewHandler(settingsRepo)

	jwtValidate := func(token string) (uuid.UUID, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.DisplayName, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.POST("/auth/logout", authHandler.Logout)

		// Meetings
		api.POST("/meetings", meetingHandler.Create)
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/:id", meetingHandler.GetByID)
		api.PATCH("/meetings/:id", meetingHandler.Patch)
		api.GET("/meetings/:id/participants", meetingHandler.Participants)
		api.GET("/meetings/:id/messages", messageHandler.ListByMeeting)
		api.GET("/meetings/:id/attendance", attendanceHandler.ListByMeeting)

		// Recaps
		api.GET("/recaps", recapHandler.List)
		api.GET("/recaps/:id", recapHandler.GetByID)
		api.GET("/recaps/:id/archive-url", recapHandler.ArchiveURL)

		// User settings
		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Put)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, registry, broker, logger, jwtValidate))

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
