package services

import (
	"encoding/json"
	"time"

	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/pkg/logger"
	"gorm.io/gorm"
)

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

func LogInfo(module, action, message string, brandID *uint, extra interface{}) {
	writeLog("info", module, action, message, brandID, extra)
}

func LogWarning(module, action, message string, brandID *uint, extra interface{}) {
	writeLog("warning", module, action, message, brandID, extra)
}

func LogError(module, action, message string, brandID *uint, extra interface{}) {
	writeLog("error", module, action, message, brandID, extra)
}

func writeLog(level, module, action, message string, brandID *uint, extra interface{}) {
	if globalDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	row := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		BrandID:   brandID,
		Extra:     extraStr,
		CreatedAt: time.Now().UTC(),
	}
	if err := globalDB.Create(row).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("failed to persist system log")
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	BrandID   uint   `form:"brand_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.BrandID != 0 {
		query = query.Where("brand_id = ?", req.BrandID)
	}
	if req.StartDate != "" {
		if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			query = query.Where("created_at >= ?", t)
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
		}
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes logs older than retentionDays and returns the count.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RunCleanup applies the retention configured in system_configs, falling back
// to fallbackDays. Scheduled daily by the server.
func (s *SystemLogService) RunCleanup(fallbackDays int) {
	days := NewSystemConfigService(s.db).GetInt(ConfigLogRetentionDays, fallbackDays)
	if days <= 0 {
		logger.Debug().Msg("system log cleanup disabled")
		return
	}

	deleted, err := s.CleanupOldLogs(days)
	if err != nil {
		logger.Error().Err(err).Msg("failed to clean up system logs")
		return
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", days).Msg("cleaned up old system logs")
	}
}
