package services

import (
	"time"

	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/pkg/logger"
	"gorm.io/gorm"
)

// AIUsageService tracks classifier calls.
type AIUsageService struct {
	db *gorm.DB
}

func NewAIUsageService(db *gorm.DB) *AIUsageService {
	return &AIUsageService{db: db}
}

// Record saves a usage row. Failures are logged only.
func (s *AIUsageService) Record(row *models.AIUsageLog) {
	if err := s.db.Create(row).Error; err != nil {
		logger.Warn().Err(err).Msg("failed to record classifier usage")
	}
}

// UsageStats is the classifier call summary over a period.
type UsageStats struct {
	TotalCalls   int64   `json:"total_calls"`
	SuccessCount int64   `json:"success_count"`
	FailureCount int64   `json:"failure_count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	SuccessRate  float64 `json:"success_rate"`
}

// GetStats summarizes classifier calls since the given time.
func (s *AIUsageService) GetStats(since time.Time) (*UsageStats, error) {
	var stats UsageStats
	query := s.db.Model(&models.AIUsageLog{}).Where("created_at >= ?", since)
	if err := query.Count(&stats.TotalCalls).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.AIUsageLog{}).Where("created_at >= ? AND success = ?", since, true).Count(&stats.SuccessCount).Error; err != nil {
		return nil, err
	}
	stats.FailureCount = stats.TotalCalls - stats.SuccessCount

	var avg struct{ Avg float64 }
	if err := s.db.Model(&models.AIUsageLog{}).Where("created_at >= ?", since).Select("COALESCE(AVG(latency_ms), 0) AS avg").Scan(&avg).Error; err != nil {
		return nil, err
	}
	stats.AvgLatencyMs = avg.Avg
	if stats.TotalCalls > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalCalls) * 100
	}
	return &stats, nil
}

// CleanupBefore deletes usage rows older than before.
func (s *AIUsageService) CleanupBefore(before time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", before).Delete(&models.AIUsageLog{})
	return result.RowsAffected, result.Error
}
