package main

import (
	"context"
	"fmt"
	"os"

	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/internal/services/classifier"
	"github.com/huangang/brandsentry/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var cfgFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "sentimentctl",
		Short:        "Sentiment engine maintenance commands",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $CONFIG_PATH)")

	root.AddCommand(newBackfillCommand())
	root.AddCommand(newRecomputeCommand())
	return root
}

// env is the subset of the server wiring the commands need.
type env struct {
	cfg      *config.Config
	db       *gorm.DB
	queue    services.TaskQueue
	pipeline *services.Pipeline
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if err := models.InitDB(&cfg.Database); err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}
	db := models.GetDB()
	services.InitSystemLogger(db)
	return db, nil
}

// newEnv builds the pipeline with a local queue for alert emails. Redis is
// not used here; Close drains queued emails before the command exits.
func newEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	gateway, err := classifier.NewGateway(&cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	queue := services.NewLocalQueue(cfg.Queue.Workers, cfg.Queue.BufferSize)
	sender := services.NewSMTPSender(cfg.SMTP)
	queue.Start(services.TaskHandlers{
		Email: func(ctx context.Context, task *services.EmailTask) error {
			return sender.Send(ctx, task.To, task.Subject, task.Body)
		},
	})

	aggregator := services.NewAggregator(db, nil)
	notifications := services.NewNotificationService(db, queue, nil)
	pipeline := services.NewPipeline(db, gateway, aggregator, notifications, services.PipelineOptions{
		RatePerSecond: cfg.Classifier.RatePerSecond,
		RateBurst:     cfg.Classifier.RateBurst,
	})

	return &env{cfg: cfg, db: db, queue: queue, pipeline: pipeline}, nil
}

func (e *env) Close() {
	e.pipeline.Flush()
	if err := e.queue.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close task queue")
	}
}
