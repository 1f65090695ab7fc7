package main

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/internal/handlers"
	"github.com/huangang/brandsentry/internal/metrics"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/internal/services/classifier"
	"github.com/huangang/brandsentry/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc

	taskQueue   services.TaskQueue
	worker      *services.Worker
	redisClient *redis.Client
	scheduler   *cron.Cron
	pipeline    *services.Pipeline
	hub         *services.SSEHub

	sentimentHandler    *handlers.SentimentHandler
	trustScoreHandler   *handlers.TrustScoreHandler
	notificationHandler *handlers.NotificationHandler
	triggerHandler      *handlers.TriggerHandler
	backfillHandler     *handlers.BackfillHandler
	sseHandler          *handlers.SSEHandler
	healthHandler       *handlers.HealthHandler
	systemLogHandler    *handlers.SystemLogHandler
	aiUsageHandler      *handlers.AIUsageHandler
}

// bootstrap initializes all application dependencies: database, queue, pipeline, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()
	services.InitSystemLogger(db)

	gateway, err := classifier.NewGateway(&cfg.Classifier)
	if err != nil {
		logger.Fatalf("Failed to initialize classifier: %v", err)
	}
	logger.Info().Str("provider", gateway.Provider()).Str("model", gateway.Model()).Msg("classifier ready")

	ctx, cancel := context.WithCancel(context.Background())
	svc := &appServices{cfg: cfg, ctx: ctx, cancel: cancel, hub: services.GetSSEHub()}

	// Bucket locks go through Redis when it is enabled so that several
	// instances never write the same rollup at once.
	var locker services.BucketLocker
	if cfg.Redis.Enabled {
		svc.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := svc.redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis ping failed, using in-process bucket locks")
			svc.redisClient.Close()
			svc.redisClient = nil
		} else {
			locker = services.NewRedisBucketLocker(svc.redisClient, cfg.Sentiment.BucketLockTTL)
		}
	}

	svc.taskQueue = services.InitTaskQueue(cfg)
	aggregator := services.NewAggregator(db, locker)
	notificationService := services.NewNotificationService(db, svc.taskQueue, svc.hub)
	svc.pipeline = services.NewPipeline(db, gateway, aggregator, notificationService, services.PipelineOptions{
		RatePerSecond:     cfg.Classifier.RatePerSecond,
		RateBurst:         cfg.Classifier.RateBurst,
		RecomputeDebounce: cfg.Sentiment.RecomputeDebounce,
	})

	sender := services.NewSMTPSender(cfg.SMTP)
	taskHandlers := services.TaskHandlers{
		Classify: svc.pipeline.HandleClassifyTask,
		Email: func(ctx context.Context, task *services.EmailTask) error {
			return sender.Send(ctx, task.To, task.Subject, task.Body)
		},
	}

	queueDepth := func() float64 { return 0 }
	if localQueue, ok := svc.taskQueue.(*services.LocalQueue); ok {
		localQueue.Start(taskHandlers)
		queueDepth = func() float64 { return float64(localQueue.Depth()) }
	} else {
		svc.worker = services.NewWorker(&cfg.Redis, &cfg.Queue)
		if svc.worker != nil {
			svc.worker.SetHandlers(taskHandlers)
			if err := svc.worker.Start(); err != nil {
				logger.Fatalf("Failed to start async worker: %v", err)
			}
		}
	}
	metrics.RegisterGauges(func() float64 { return float64(svc.hub.ClientCount()) }, queueDepth, svc.taskQueue.IsAsync())

	backfillService := services.NewBackfillService(db, svc.pipeline, cfg.Sentiment)
	svc.startScheduler(backfillService)

	svc.sentimentHandler = handlers.NewSentimentHandler(svc.pipeline.Store(), aggregator)
	svc.trustScoreHandler = handlers.NewTrustScoreHandler(services.NewTrustScoreService(db, cfg.Trust))
	svc.notificationHandler = handlers.NewNotificationHandler(notificationService)
	svc.triggerHandler = handlers.NewTriggerHandler(services.NewTriggerService(svc.taskQueue))
	svc.backfillHandler = handlers.NewBackfillHandler(ctx, backfillService)
	svc.sseHandler = handlers.NewSSEHandler(svc.hub)
	svc.healthHandler = handlers.NewHealthHandler(db, svc.taskQueue, svc.hub)
	svc.systemLogHandler = handlers.NewSystemLogHandler(db)
	svc.aiUsageHandler = handlers.NewAIUsageHandler(db)

	return svc
}

// startScheduler registers the backfill and retention cron jobs. All
// schedules are evaluated in UTC.
func (s *appServices) startScheduler(backfill *services.BackfillService) {
	s.scheduler = cron.New(cron.WithLocation(time.UTC))
	db := models.GetDB()

	if spec := s.cfg.Sentiment.BackfillCron; spec != "" {
		_, err := s.scheduler.AddFunc(spec, func() {
			opts := services.WindowOptions(s.cfg.Sentiment.BackfillWindow, time.Now())
			report, err := backfill.Run(s.ctx, opts)
			if errors.Is(err, services.ErrJobRunning) {
				logger.Info().Msg("backfill already running, skipping scheduled run")
				return
			}
			if err != nil {
				logger.Error().Err(err).Msg("scheduled backfill failed")
				services.LogError("sentiment", "backfill", err.Error(), nil, nil)
				return
			}
			logger.Info().Int64("ingested", report.Ingested).Msg("scheduled backfill done")
		})
		if err != nil {
			logger.Error().Err(err).Str("cron", spec).Msg("invalid backfill schedule, backfill cron disabled")
		} else {
			logger.Info().Str("cron", spec).Msg("backfill scheduled")
		}
	}

	retention := s.cfg.Sentiment.LogRetentionDays
	logService := services.NewSystemLogService(db)
	usageService := services.NewAIUsageService(db)
	if _, err := s.scheduler.AddFunc("@daily", func() {
		logService.RunCleanup(retention)
		if retention <= 0 {
			return
		}
		deleted, err := usageService.CleanupBefore(time.Now().UTC().AddDate(0, 0, -retention))
		if err != nil {
			logger.Error().Err(err).Msg("failed to clean up classifier usage rows")
			return
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("cleaned up classifier usage rows")
		}
	}); err != nil {
		logger.Error().Err(err).Msg("failed to schedule retention cleanup")
	}

	s.scheduler.Start()
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.cancel()
	stopped := s.scheduler.Stop()
	<-stopped.Done()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close task queue")
		}
	}
	s.pipeline.Flush()
	if s.redisClient != nil {
		s.redisClient.Close()
	}
}
