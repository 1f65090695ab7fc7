package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/internal/services/classifier"
	"github.com/huangang/brandsentry/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := models.SeedSystemConfigs(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, text string) (*classifier.Classification, error) {
	return &classifier.Classification{
		Result: classifier.Result{
			Language:   "en",
			Label:      models.LabelNegative,
			Score:      -0.6,
			Intensity:  0.5,
			Urgency:    70,
			Topics:     []string{"refund"},
			KeyPhrases: []string{"refund never arrived"},
			Summary:    "Refund missing.",
		},
		Provider: "stub",
		Model:    "stub-1",
	}, nil
}

type testServer struct {
	db       *gorm.DB
	router   *gin.Engine
	queue    *services.LocalQueue
	pipeline *services.Pipeline
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := newTestDB(t)
	hub := services.NewSSEHub()
	queue := services.NewLocalQueue(1, 4)
	t.Cleanup(func() { queue.Close() })

	notifications := services.NewNotificationService(db, queue, hub)
	aggregator := services.NewAggregator(db, nil)
	pipeline := services.NewPipeline(db, stubClassifier{}, aggregator, notifications, services.PipelineOptions{})
	backfill := services.NewBackfillService(db, pipeline, config.SentimentConfig{BackfillBatchSize: 10, BackfillConcurrency: 2, BackfillLockTTL: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sentiment := NewSentimentHandler(pipeline.Store(), aggregator)
	trust := NewTrustScoreHandler(services.NewTrustScoreService(db, config.TrustConfig{Damping: 10, Prior: 3.5}))
	notify := NewNotificationHandler(notifications)
	trigger := NewTriggerHandler(services.NewTriggerService(queue))
	backfillHandler := NewBackfillHandler(ctx, backfill)
	health := NewHealthHandler(db, queue, hub)

	r := gin.New()
	r.GET("/health", health.CheckHealth)
	api := r.Group("/api")
	api.GET("/brands/:id/sentiment/events", sentiment.ListEvents)
	api.GET("/brands/:id/sentiment/daily", sentiment.ListDaily)
	api.POST("/brands/:id/sentiment/recompute", sentiment.Recompute)
	api.GET("/brands/:id/trust-score", trust.GetBrand)
	api.GET("/trust-score/platform", trust.GetPlatform)
	api.GET("/brands/:id/notifications", notify.List)
	api.POST("/notifications/:id/read", notify.MarkRead)
	api.GET("/brands/:id/alert-preferences", notify.GetPreferences)
	api.PUT("/brands/:id/alert-preferences", notify.UpdatePreferences)
	api.POST("/brands/:id/notify", notify.Notify)
	api.POST("/triggers/complaints", trigger.ComplaintCreated)
	api.POST("/triggers/ratings", trigger.RatingCreated)
	api.POST("/admin/sentiment/backfill", backfillHandler.Run)
	api.GET("/system-logs", NewSystemLogHandler(db).List)
	api.GET("/ai-usage/stats", NewAIUsageHandler(db).GetStats)

	return &testServer{db: db, router: r, queue: queue, pipeline: pipeline}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

// decodeData re-decodes the envelope's data into out.
func decodeData(t *testing.T, resp response.Response, out interface{}) {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func (s *testServer) brand(t *testing.T, name string) *models.Brand {
	t.Helper()
	b := &models.Brand{Name: name, Slug: name, ManagerEmail: "manager@" + name + ".test"}
	if err := s.db.Create(b).Error; err != nil {
		t.Fatalf("create brand: %v", err)
	}
	return b
}
