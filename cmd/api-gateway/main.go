package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable/api/swagger"
	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// @title Timetable Scheduling API
// @version 1.0.0
// @description Weekly university timetable solver: solve batches, schedules and instructor/subject affinity.
// @BasePath /api/v1
// @schemes http

type handlers struct {
	solve     *handler.SolveHandler
	schedules *handler.ScheduleHandler
	affinity  *handler.AffinityHandler
	metrics   *handler.MetricsHandler
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, progress and affinity caching disabled", zap.Error(err))
	} else {
		redisClient = client
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	settings, err := service.NewSchedulerSettings(cfg.Scheduler)
	if err != nil {
		logr.Fatal("invalid scheduler configuration", zap.Error(err))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	semesterRepo := repository.NewSemesterRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	genEdRepo := repository.NewGenEdBlockRepository(db)
	affinityRepo := repository.NewAffinityRepository(db)
	batchRepo := repository.NewSolveBatchRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)

	queueCfg := jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.Buffer,
		MaxRetries: cfg.Jobs.Retries,
		Logger:     logr,
	}

	affinitySvc := service.NewAffinityService(subjectRepo, instructorRepo, affinityRepo, db, cacheRepo, metricsSvc, logr, service.NewAffinityServiceConfig(cfg.Affinity))
	affinityQueue := jobs.NewQueue("affinity", affinitySvc.Handle, jobs.QueueConfig{Workers: 1, Logger: logr})

	loader := service.NewSnapshotLoader(semesterRepo, sectionRepo, instructorRepo, roomRepo, genEdRepo, affinitySvc, settings.Load, logr)
	runner := service.NewSolveRunner(loader, settings, metricsSvc, logr)
	materializer := service.NewScheduleMaterializer(db, scheduleRepo, sectionRepo, logr)
	worker := service.NewSolveWorker(batchRepo, cacheRepo, runner, materializer, cfg.Scheduler.ProgressTTL, logr)
	// Solves are not retried: a failed batch is terminal and a new one must be queued.
	solveQueueCfg := queueCfg
	solveQueueCfg.MaxRetries = 0
	solveQueue := jobs.NewQueue("solve", worker.Handle, solveQueueCfg)

	solveSvc := service.NewSolveService(batchRepo, cacheRepo, runner, solveQueue, metricsSvc, validate, logr, service.SolveServiceConfig{
		Enabled:       cfg.Scheduler.Enabled,
		TimeBudget:    cfg.Scheduler.TimeBudget,
		MaxTimeBudget: cfg.Scheduler.MaxTimeBudget,
		ProgressTTL:   cfg.Scheduler.ProgressTTL,
	})
	scheduleSvc := service.NewScheduleService(scheduleRepo, validate, logr)
	exportSvc := service.NewExportService(scheduleRepo, semesterRepo, validate, logr)
	if cfg.Export.SigningSecret != "" {
		store, err := storage.NewLocalStorage(cfg.Export.Dir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		exportSvc.EnableLinks(store, storage.NewSignedURLSigner(cfg.Export.SigningSecret, cfg.Export.LinkTTL))
		go exportSvc.RunCleanup(ctx, time.Hour)
	}

	solveQueue.Start(ctx)
	defer solveQueue.Stop()
	affinityQueue.Start(ctx)
	defer affinityQueue.Stop()
	if err := solveSvc.Recover(ctx); err != nil {
		logr.Error("failed to recover solve batches", zap.Error(err))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	registerRoutes(r, cfg, handlers{
		solve:     handler.NewSolveHandler(solveSvc),
		schedules: handler.NewScheduleHandler(scheduleSvc, exportSvc),
		affinity:  handler.NewAffinityHandler(affinitySvc, affinityQueue),
		metrics:   handler.NewMetricsHandler(metricsSvc, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h handlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := strings.TrimRight(cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	solves := api.Group("/solves")
	solves.POST("", h.solve.Enqueue)
	solves.GET("", h.solve.List)
	solves.POST("/preview", h.solve.Preview)
	solves.GET("/:id", h.solve.Get)
	solves.GET("/:id/status", h.solve.Status)
	solves.POST("/:id/cancel", h.solve.Cancel)

	api.GET("/schedules", h.schedules.List)
	api.GET("/schedules/export", h.schedules.Export)
	api.GET("/schedules/export/download", h.schedules.Download)

	affinity := api.Group("/affinity")
	affinity.POST("/batches", h.affinity.Run)
	affinity.GET("/batches", h.affinity.Batches)
	affinity.GET("/scores/latest", h.affinity.Latest)

	api.GET("/metrics/summary", h.metrics.Summary)
}
