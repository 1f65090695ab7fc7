package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services/classifier"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// newTestDB opens a private in-memory sqlite database with every table migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
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

func createBrand(t *testing.T, db *gorm.DB, name string) *models.Brand {
	t.Helper()
	brand := &models.Brand{Name: name, Slug: name, ManagerEmail: "manager@" + name + ".test"}
	if err := db.Create(brand).Error; err != nil {
		t.Fatalf("create brand: %v", err)
	}
	return brand
}

func entitle(t *testing.T, db *gorm.DB, brandID uint) {
	t.Helper()
	sub := &models.BrandSubscription{
		BrandID:  brandID,
		PlanCode: "pro",
		Status:   models.SubscriptionActive,
		Features: []string{models.FeatureAlerts},
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("create subscription: %v", err)
	}
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

// fakeClassifier returns a fixed result, or err, and counts calls.
type fakeClassifier struct {
	result classifier.Result
	err    error
	calls  atomic.Int64
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*classifier.Classification, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &classifier.Classification{
		Result:   f.result,
		Provider: "fake",
		Model:    "fake-1",
		Raw:      json.RawMessage(`{"source":"fake"}`),
	}, nil
}

func (f *fakeClassifier) Provider() string { return "fake" }
func (f *fakeClassifier) Model() string    { return "fake-1" }

func negativeResult(topics ...string) classifier.Result {
	if topics == nil {
		topics = []string{}
	}
	return classifier.Result{
		Language:   "en",
		Label:      models.LabelNegative,
		Score:      -0.6,
		Intensity:  0.7,
		Urgency:    70,
		Topics:     topics,
		KeyPhrases: []string{},
		Summary:    "Customer is waiting for a refund.",
	}
}

// fakeEmails records enqueued email tasks and fails for selected recipients.
type fakeEmails struct {
	mu     sync.Mutex
	tasks  []*EmailTask
	failTo map[string]bool
}

func (f *fakeEmails) EnqueueEmail(task *EmailTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[task.To] {
		return ErrQueueFull
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeEmails) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.tasks))
	for _, task := range f.tasks {
		out = append(out, task.To)
	}
	return out
}

func complaintItem(brandID, id uint, title, text string) *FeedbackItem {
	return &FeedbackItem{
		BrandID:     brandID,
		ComplaintID: uintPtr(id),
		SourceType:  models.SourceComplaint,
		SourceID:    id,
		Title:       title,
		Text:        text,
		OccurredAt:  time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	}
}
