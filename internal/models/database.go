package models

import (
	"fmt"
	"time"

	"github.com/huangang/brandsentry/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Buckets and leases compare stored times, so every timestamp is UTC.
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

// Migrate creates or updates every table owned or read by the engine.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Brand{},
		&BrandTeamMember{},
		&Complaint{},
		&Rating{},
		&SentimentEvent{},
		&BrandSentimentDaily{},
		&BrandAlertPreference{},
		&BrandSubscription{},
		&Notification{},
		&AIUsageLog{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultSystemConfigs are the runtime tunables seeded on first start.
var DefaultSystemConfigs = []SystemConfig{
	{Key: "sentiment_negative_score_threshold", Value: "-0.5", Type: "float", Group: "sentiment", Label: "Score at or below which a negative event alerts the brand"},
	{Key: "sentiment_urgency_threshold", Value: "75", Type: "int", Group: "sentiment", Label: "Urgency at or above which an urgency alert is raised"},
	{Key: "email_subject_prefix", Value: "[BrandSentry]", Type: "string", Group: "email", Label: "Subject prefix for outbound alert emails"},
	{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
}

// SeedDefaultData creates default data if not exists
func SeedDefaultData() error {
	return SeedSystemConfigs(DB)
}

func SeedSystemConfigs(db *gorm.DB) error {
	for _, cfg := range DefaultSystemConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where(&SystemConfig{Key: cfg.Key}).Count(&count)
		if count == 0 {
			row := cfg
			if err := db.Create(&row).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
