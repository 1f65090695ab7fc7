package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangang/brandsentry/internal/metrics"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUnknownEventType = errors.New("unknown notification event type")
	ErrBrandNotFound    = errors.New("brand not found")
)

// NotifyPayload carries the display text and structured context of an event.
type NotifyPayload struct {
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// NotifyResult records what the gate decided for one event.
type NotifyResult struct {
	Suppressed    bool                 `json:"suppressed"`
	Matched       bool                 `json:"matched"`
	Notification  *models.Notification `json:"notification,omitempty"`
	EmailsQueued  int                  `json:"emails_queued"`
	EmailFailures int                  `json:"email_failures"`
}

// NotificationService is the notification gate: it decides whether and where an
// event reaches a brand, writes in-app rows, and fans emails out to the queue.
type NotificationService struct {
	db      *gorm.DB
	emails  EmailEnqueuer
	hub     *SSEHub
	configs *SystemConfigService
	now     func() time.Time
}

func NewNotificationService(db *gorm.DB, emails EmailEnqueuer, hub *SSEHub) *NotificationService {
	return &NotificationService{
		db:      db,
		emails:  emails,
		hub:     hub,
		configs: NewSystemConfigService(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NotifyBrand runs the decision sequence for one event. Email enqueue failures
// are logged per recipient and never undo the in-app row.
func (s *NotificationService) NotifyBrand(ctx context.Context, brandID uint, eventType models.NotificationType, payload NotifyPayload) (*NotifyResult, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	var brand models.Brand
	if err := s.db.WithContext(ctx).First(&brand, brandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBrandNotFound
		}
		return nil, fmt.Errorf("load brand: %w", err)
	}

	pref, err := s.GetPreferences(ctx, brandID)
	if err != nil {
		return nil, err
	}

	entitled, err := s.IsEntitled(ctx, brandID)
	if err != nil {
		return nil, err
	}

	result := &NotifyResult{}
	if !eventType.IsCritical() && !entitled {
		result.Suppressed = true
		metrics.NotificationsTotal.WithLabelValues(string(eventType), "suppressed").Inc()
		return result, nil
	}

	result.Matched = pref.Wants(eventType) || eventType.AlwaysMatches()
	if !result.Matched {
		metrics.NotificationsTotal.WithLabelValues(string(eventType), "unmatched").Inc()
		return result, nil
	}

	title, message := s.render(eventType, payload)
	notification := &models.Notification{
		BrandID: brandID,
		Type:    string(eventType),
		Title:   title,
		Message: message,
	}
	if payload.Data != nil {
		if b, err := json.Marshal(payload.Data); err == nil {
			notification.Payload = datatypes.JSON(b)
		}
	}

	if pref.InAppEnabled {
		if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
			return nil, fmt.Errorf("create notification: %w", err)
		}
		result.Notification = notification
		if s.hub != nil {
			s.hub.Publish(NotificationEvent{
				ID:        notification.ID,
				BrandID:   brandID,
				Type:      notification.Type,
				Title:     notification.Title,
				Message:   notification.Message,
				CreatedAt: notification.CreatedAt,
			})
		}
	}

	if pref.EmailEnabled {
		result.EmailsQueued, result.EmailFailures = s.fanOutEmail(ctx, &brand, notification)
	}

	metrics.NotificationsTotal.WithLabelValues(string(eventType), "delivered").Inc()
	return result, nil
}

func (s *NotificationService) fanOutEmail(ctx context.Context, brand *models.Brand, n *models.Notification) (int, int) {
	log := logger.Component("notification")
	recipients, err := s.Recipients(ctx, brand)
	if err != nil {
		log.Error().Err(err).Uint("brand_id", brand.ID).Msg("failed to resolve email recipients")
		return 0, 0
	}
	if s.emails == nil {
		log.Warn().Uint("brand_id", brand.ID).Msg("no email queue configured")
		return 0, len(recipients)
	}

	prefix := s.configs.GetWithDefault(ConfigEmailSubjectPrefix, "[BrandSentry]")
	subject := strings.TrimSpace(prefix + " " + n.Title)
	body := buildAlertEmail(brand, n)

	var notificationID *uint
	if n.ID != 0 {
		id := n.ID
		notificationID = &id
	}

	queued, failed := 0, 0
	for _, to := range recipients {
		err := s.emails.EnqueueEmail(&EmailTask{
			BrandID:        brand.ID,
			NotificationID: notificationID,
			To:             to,
			Subject:        subject,
			Body:           body,
		})
		if err != nil {
			failed++
			metrics.EmailsEnqueued.WithLabelValues("error").Inc()
			log.Warn().Err(err).Uint("brand_id", brand.ID).Str("to", to).Msg("failed to enqueue alert email")
			continue
		}
		queued++
		metrics.EmailsEnqueued.WithLabelValues("ok").Inc()
	}
	return queued, failed
}

// Recipients returns the deduplicated, sorted email addresses of the brand's
// active team members plus the legacy manager address.
func (s *NotificationService) Recipients(ctx context.Context, brand *models.Brand) ([]string, error) {
	var emails []string
	err := s.db.WithContext(ctx).Model(&models.BrandTeamMember{}).
		Where("brand_id = ? AND is_active = ?", brand.ID, true).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	emails = append(emails, brand.ManagerEmail)

	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out, nil
}

// IsEntitled reports whether any of the brand's subscriptions grants alerts now.
func (s *NotificationService) IsEntitled(ctx context.Context, brandID uint) (bool, error) {
	var subs []models.BrandSubscription
	err := s.db.WithContext(ctx).
		Where("brand_id = ? AND status = ?", brandID, models.SubscriptionActive).
		Find(&subs).Error
	if err != nil {
		return false, fmt.Errorf("load subscriptions: %w", err)
	}
	now := s.now()
	for i := range subs {
		if subs[i].Entitles(models.FeatureAlerts, now) {
			return true, nil
		}
	}
	return false, nil
}

// GetPreferences returns the brand's alert preferences, writing the defaults
// on first use.
func (s *NotificationService) GetPreferences(ctx context.Context, brandID uint) (*models.BrandAlertPreference, error) {
	db := s.db.WithContext(ctx)
	var pref models.BrandAlertPreference
	err := db.Where("brand_id = ?", brandID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load alert preferences: %w", err)
	}

	pref = models.DefaultAlertPreference(brandID)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pref).Error; err != nil {
		return nil, fmt.Errorf("create alert preferences: %w", err)
	}
	// A concurrent caller may have won the insert.
	if err := db.Where("brand_id = ?", brandID).First(&pref).Error; err != nil {
		return nil, fmt.Errorf("reload alert preferences: %w", err)
	}
	return &pref, nil
}

// UpdatePreferencesRequest changes only the fields that are set.
type UpdatePreferencesRequest struct {
	NewComplaint      *bool `json:"new_complaint"`
	StatusChanged     *bool `json:"status_changed"`
	NewMessage        *bool `json:"new_message"`
	Escalation        *bool `json:"escalation"`
	EvidenceAdded     *bool `json:"evidence_added"`
	NegativeSentiment *bool `json:"negative_sentiment"`
	UrgencyAlert      *bool `json:"urgency_alert"`
	SystemUpdate      *bool `json:"system_update"`
	SystemAlert       *bool `json:"system_alert"`
	InAppEnabled      *bool `json:"in_app_enabled"`
	EmailEnabled      *bool `json:"email_enabled"`
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, brandID uint, req *UpdatePreferencesRequest) (*models.BrandAlertPreference, error) {
	pref, err := s.GetPreferences(ctx, brandID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	set := func(column string, v *bool) {
		if v != nil {
			updates[column] = *v
		}
	}
	set("new_complaint", req.NewComplaint)
	set("status_changed", req.StatusChanged)
	set("new_message", req.NewMessage)
	set("escalation", req.Escalation)
	set("evidence_added", req.EvidenceAdded)
	set("negative_sentiment", req.NegativeSentiment)
	set("urgency_alert", req.UrgencyAlert)
	set("system_update", req.SystemUpdate)
	set("system_alert", req.SystemAlert)
	set("in_app_enabled", req.InAppEnabled)
	set("email_enabled", req.EmailEnabled)

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(pref).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update alert preferences: %w", err)
		}
	}
	return s.GetPreferences(ctx, brandID)
}

// ListNotifications returns the newest in-app notifications of a brand.
func (s *NotificationService) ListNotifications(ctx context.Context, brandID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Where("brand_id = ?", brandID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkRead stamps read_at once; marking an already read row is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	if n.ReadAt == nil {
		now := s.now()
		if err := s.db.WithContext(ctx).Model(&n).Update("read_at", now).Error; err != nil {
			return nil, err
		}
		n.ReadAt = &now
	}
	return &n, nil
}

var defaultTitles = map[models.NotificationType]string{
	models.NotifyNewComplaint:      "New complaint received",
	models.NotifyStatusChanged:     "Complaint status changed",
	models.NotifyNewMessage:        "New message on a complaint",
	models.NotifyEscalation:        "Complaint escalated",
	models.NotifyEvidenceAdded:     "Evidence added to a complaint",
	models.NotifyNegativeSentiment: "Negative feedback detected",
	models.NotifyUrgencyAlert:      "Urgent feedback needs attention",
	models.NotifySystemUpdate:      "System update",
	models.NotifySystemAlert:       "System alert",
}

func (s *NotificationService) render(t models.NotificationType, p NotifyPayload) (string, string) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = defaultTitles[t]
	}
	return title, strings.TrimSpace(p.Message)
}
