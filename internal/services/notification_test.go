package services

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/huangang/brandsentry/internal/models"
)

func countNotifications(t *testing.T, svc *NotificationService, brandID uint) int64 {
	t.Helper()
	var n int64
	svc.db.Model(&models.Notification{}).Where("brand_id = ?", brandID).Count(&n)
	return n
}

func TestNotifyBrand_SuppressesGatedTypeWithoutEntitlement(t *testing.T) {
	db := newTestDB(t)
	brand := createBrand(t, db, "acme")
	emails := &fakeEmails{}
	svc := NewNotificationService(db, emails, NewSSEHub())
	if _, err := svc.UpdatePreferences(context.Background(), brand.ID, &UpdatePreferencesRequest{EmailEnabled: boolPtr(true)}); err != nil {
		t.Fatalf("update preferences: %v", err)
	}

	result, err := svc.NotifyBrand(context.Background(), brand.ID, models.NotifyStatusChanged, NotifyPayload{Message: "resolved"})
	if err != nil {
		t.Fatalf("NotifyBrand: %v", err)
	}
	if !result.Suppressed {
		t.Error("status-changed should be suppressed without entitlement")
	}
	if n := countNotifications(t, svc, brand.ID); n != 0 {
		t.Errorf("expected no in-app rows, got %d", n)
	}
	if len(emails.recipients()) != 0 {
		t.Errorf("expected no emails, got %v", emails.recipients())
	}
}

func TestNotifyBrand_CriticalTypeForcedThrough(t *testing.T) {
	db := newTestDB(t)
	brand := createBrand(t, db, "acme")
	hub := NewSSEHub()
	events := hub.Subscribe("dashboard", brand.ID)
	svc := NewNotificationService(db, &fakeEmails{}, hub)

	result, err := svc.NotifyBrand(context.Background(), brand.ID, models.NotifyNewComplaint, NotifyPayload{Message: "A new complaint"})
	if err != nil {
		t.Fatalf("NotifyBrand: %v", err)
	}
	if result.Suppressed || result.Notification == nil {
		t.Fatalf("new-complaint should be delivered, got %+v", result)
	}
	if n := countNotifications(t, svc, brand.ID); n != 1 {
		t.Errorf("expected 1 in-app row, got %d", n)
	}
	if result.Notification.Title != "New complaint received" {
		t.Errorf("default title not applied: %q", result.Notification.Title)
	}

	select {
	case ev := <-events:
		if ev.ID != result.Notification.ID || ev.Type != string(models.NotifyNewComplaint) {
			t.Errorf("unexpected SSE event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("expected an SSE event")
	}
}

func TestNotifyBrand_PreferenceSwitch(t *testing.T) {
	db := newTestDB(t)
	brand := createBrand(t, db, "acme")
	entitle(t, db, brand.ID)
	svc := NewNotificationService(db, &fakeEmails{}, nil)
	ctx := context.Background()

	off := false
	if _, err := svc.UpdatePreferences(ctx, brand.ID, &UpdatePreferencesRequest{Escalation: &off, UrgencyAlert: &off}); err != nil {
		t.Fatalf("update preferences: %v", err)
	}

	result, err := svc.NotifyBrand(ctx, brand.ID, models.NotifyEscalation, NotifyPayload{})
	if err != nil {
		t.Fatalf("NotifyBrand: %v", err)
	}
	if result.Matched || result.Notification != nil {
		t.Errorf("escalation is switched off, got %+v", result)
	}

	// urgency-alert ignores its switch.
	result, err = svc.NotifyBrand(ctx, brand.ID, models.NotifyUrgencyAlert, NotifyPayload{})
	if err != nil {
		t.Fatalf("NotifyBrand: %v", err)
	}
	if !result.Matched || result.Notification == nil {
		t.Errorf("urgency-alert should always match, got %+v", result)
	}
}

func TestNotifyBrand_EmailFanOut(t *testing.T) {
	db := newTestDB(t)
	brand := createBrand(t, db, "acme")
	entitle(t, db, brand.ID)

	members := []models.BrandTeamMember{
		{BrandID: brand.ID, Email: "Ops@Acme.test"},
		{BrandID: brand.ID, Email: "ops@acme.test "},
		{BrandID: brand.ID, Email: "support@acme.test"},
		{BrandID: brand.ID, Email: "former@acme.test"},
	}
	for i := range members {
		if err := db.Create(&members[i]).Error; err != nil {
			t.Fatalf("create member: %v", err)
		}
	}
	db.Model(&members[3]).Update("is_active", false)

	emails := &fakeEmails{failTo: map[string]bool{"support@acme.test": true}}
	svc := NewNotificationService(db, emails, nil)
	ctx := context.Background()
	if _, err := svc.UpdatePreferences(ctx, brand.ID, &UpdatePreferencesRequest{EmailEnabled: boolPtr(true)}); err != nil {
		t.Fatalf("update preferences: %v", err)
	}

	result, err := svc.NotifyBrand(ctx, brand.ID, models.NotifyNegativeSentiment, NotifyPayload{Message: "Refund never arrived"})
	if err != nil {
		t.Fatalf("NotifyBrand: %v", err)
	}
	if result.Notification == nil {
		t.Fatal("in-app row should survive email failures")
	}
	if result.EmailsQueued != 2 || result.EmailFailures != 1 {
		t.Errorf("expected 2 queued and 1 failure, got %d/%d", result.EmailsQueued, result.EmailFailures)
	}
	want := []string{"manager@acme.test", "ops@acme.test"}
	if got := emails.recipients(); !reflect.DeepEqual(got, want) {
		t.Errorf("recipients = %v, want %v", got, want)
	}
	for _, task := range emails.tasks {
		if task.Subject != "[BrandSentry] Negative feedback detected" {
			t.Errorf("unexpected subject %q", task.Subject)
		}
		if task.NotificationID == nil || *task.NotificationID != result.Notification.ID {
			t.Errorf("task should reference notification %d", result.Notification.ID)
		}
	}
}

func TestNotifyBrand_EmailOnlyOmitsNotificationID(t *testing.T) {
	db := newTestDB(t)
	brand := createBrand(t, db, "acme")
	entitle(t, db, brand.ID)
	emails := &fakeEmails{}
	svc := NewNotificationService(db, emails, nil)
	ctx := context.Background()
	req := &UpdatePreferencesRequest{InAppEnabled: boolPtr(false), EmailEnabled: boolPtr(true)}
	if _, err := svc.UpdatePreferences(ctx, brand.ID, req); err != nil {
		t.Fatalf("update preferences: %v", err)
	}

	result, err := svc.NotifyBrand(ctx, brand.ID, models.NotifyNegativeSentiment, NotifyPayload{Message: "Refund never arrived"})
	if err != nil {
		t.Fatalf("NotifyBrand: %v", err)
	}
	if result.Notification != nil {
		t.Errorf("in-app is off, got notification %+v", result.Notification)
	}
	if n := countNotifications(t, svc, brand.ID); n != 0 {
		t.Errorf("expected no in-app rows, got %d", n)
	}
	if result.EmailsQueued != 1 || len(emails.tasks) != 1 {
		t.Fatalf("expected one queued email, got %d", result.EmailsQueued)
	}
	task := emails.tasks[0]
	if task.NotificationID != nil {
		t.Errorf("task should not reference a notification, got %d", *task.NotificationID)
	}
	b, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if strings.Contains(string(b), "notification_id") {
		t.Errorf("payload should omit notification_id: %s", b)
	}
}

func TestNotifyBrand_Errors(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil, nil)

	if _, err := svc.NotifyBrand(context.Background(), 1, "made-up", NotifyPayload{}); !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
	if _, err := svc.NotifyBrand(context.Background(), 404, models.NotifySystemAlert, NotifyPayload{}); !errors.Is(err, ErrBrandNotFound) {
		t.Errorf("expected ErrBrandNotFound, got %v", err)
	}
}

func TestGetPreferences_CreatesDefaultsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	first, err := svc.GetPreferences(ctx, 5)
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if !first.InAppEnabled || first.EmailEnabled || !first.NewComplaint {
		t.Errorf("unexpected defaults: %+v", first)
	}
	second, err := svc.GetPreferences(ctx, 5)
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call should reuse the row, got %d and %d", first.ID, second.ID)
	}
	var n int64
	db.Model(&models.BrandAlertPreference{}).Where("brand_id = ?", 5).Count(&n)
	if n != 1 {
		t.Errorf("expected 1 preference row, got %d", n)
	}
}

func TestListNotificationsAndMarkRead(t *testing.T) {
	db := newTestDB(t)
	brand := createBrand(t, db, "acme")
	svc := NewNotificationService(db, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.NotifyBrand(ctx, brand.ID, models.NotifySystemAlert, NotifyPayload{Message: "maintenance"}); err != nil {
			t.Fatalf("NotifyBrand: %v", err)
		}
	}
	rows, err := svc.ListNotifications(ctx, brand.ID, true, 10)
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 unread, got %d (%v)", len(rows), err)
	}

	read, err := svc.MarkRead(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if read.ReadAt == nil {
		t.Error("read_at should be set")
	}
	rows, _ = svc.ListNotifications(ctx, brand.ID, true, 10)
	if len(rows) != 1 {
		t.Errorf("expected 1 unread after MarkRead, got %d", len(rows))
	}
}

func boolPtr(v bool) *bool { return &v }
