package services

import (
	"errors"
	"strconv"

	"github.com/huangang/brandsentry/internal/models"
	"gorm.io/gorm"
)

// Runtime-tunable keys read from system_configs.
const (
	ConfigNegativeScoreThreshold = "sentiment_negative_score_threshold"
	ConfigUrgencyThreshold       = "sentiment_urgency_threshold"
	ConfigEmailSubjectPrefix     = "email_subject_prefix"
	ConfigLogRetentionDays       = "log_retention_days"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetFloat parses a float setting, falling back on a missing or malformed value.
func (s *SystemConfigService) GetFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(s.GetWithDefault(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

// GetInt parses an int setting, falling back on a missing or malformed value.
func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(s.GetWithDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where(&models.SystemConfig{Group: group}).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Thresholds is the policy that turns a stored event into alerts.
type Thresholds struct {
	NegativeScore float64 `json:"negative_score"`
	Urgency       int     `json:"urgency"`
}

func (s *SystemConfigService) Thresholds() Thresholds {
	return Thresholds{
		NegativeScore: s.GetFloat(ConfigNegativeScoreThreshold, -0.5),
		Urgency:       s.GetInt(ConfigUrgencyThreshold, 75),
	}
}
