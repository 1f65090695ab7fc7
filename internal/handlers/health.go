package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, the queue and SSE.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub}
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall, status = "unhealthy", 503
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall, status = "unhealthy", 503
	}

	queueMode := "none"
	if h.queue != nil {
		queueMode = "local"
		if h.queue.IsAsync() {
			queueMode = "async (Redis)"
		}
	}

	sseClients := 0
	if h.hub != nil {
		sseClients = h.hub.ClientCount()
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "brandsentry",
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode,
			"sse_clients": sseClients,
		},
	})
}
