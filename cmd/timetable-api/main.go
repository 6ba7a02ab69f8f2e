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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-engine/api/swagger"
	"github.com/noah-isme/timetable-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/service"
	"github.com/noah-isme/timetable-engine/pkg/cache"
	"github.com/noah-isme/timetable-engine/pkg/config"
	"github.com/noah-isme/timetable-engine/pkg/database"
	"github.com/noah-isme/timetable-engine/pkg/export"
	"github.com/noah-isme/timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/requestid"
)

// @title Timetable Engine API
// @version 1.0.0
// @description Generates ranked, conflict-free academic timetables and validates interactive edits.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(context.Background(), db); err != nil {
		logr.Fatal("schema setup failed", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, generation cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	validate := validator.New()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metrics,
		cfg.Scheduler.CacheTTL,
		logr,
		redisClient != nil,
	)
	generator := service.NewTimetableGeneratorService(
		repository.NewTimetableRepository(db),
		repository.NewPlacementRepository(db),
		db,
		cacheSvc,
		metrics,
		validate,
		logr,
		service.TimetableGeneratorConfig{
			DefaultAlternatives: cfg.Scheduler.DefaultAlternatives,
			MaxAlternatives:     cfg.Scheduler.MaxAlternatives,
			RunsPerAlternative:  cfg.Scheduler.RunsPerAlternative,
			Workers:             cfg.Scheduler.Workers,
			RunTimeout:          cfg.Scheduler.RunTimeout,
			MaxIterations:       cfg.Scheduler.MaxIterations,
			DedupRatio:          cfg.Scheduler.DedupRatio,
			ProposalTTL:         cfg.Scheduler.ProposalTTL,
			CacheTTL:            cfg.Scheduler.CacheTTL,
		},
	)
	editor := service.NewScheduleEditService(generator, metrics, validate, logr)
	exporter := service.NewExportService(generator, logr, export.NewCSVExporter(), export.NewPDFExporter())
	jobs := service.NewGenerationJobService(generator, metrics, validate, logr, service.GenerationJobConfig{
		Workers: cfg.Jobs.Workers,
		Buffer:  cfg.Jobs.Buffer,
	})
	jobs.Start(ctx)
	defer jobs.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	handler.Register(r, r.Group(cfg.APIPrefix), handler.Handlers{
		Timetables: handler.NewTimetableHandler(generator, exporter),
		Schedules:  handler.NewScheduleHandler(editor),
		Jobs:       handler.NewJobHandler(jobs),
		Metrics:    handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "db_driver", cfg.Database.Driver, "cache", cacheSvc.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
