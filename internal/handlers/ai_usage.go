package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/pkg/response"
	"gorm.io/gorm"
)

// AIUsageHandler reports classifier call volume, failures and latency.
type AIUsageHandler struct {
	usageService *services.AIUsageService
}

func NewAIUsageHandler(db *gorm.DB) *AIUsageHandler {
	return &AIUsageHandler{
		usageService: services.NewAIUsageService(db),
	}
}

// GetStats summarizes the last ?days= days (default 7).
func (h *AIUsageHandler) GetStats(c *gin.Context) {
	days := intQuery(c, "days", 7)
	if days <= 0 || days > 366 {
		days = 7
	}

	stats, err := h.usageService.GetStats(time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		response.ServerError(c, "failed to get classifier usage stats: "+err.Error())
		return
	}
	response.Success(c, stats)
}
