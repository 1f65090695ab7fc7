package models

import "time"

// BrandAlertPreference holds the per-event-type alert switches of a brand.
// One row per brand, created lazily with defaults on first use.
type BrandAlertPreference struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	BrandID           uint      `gorm:"uniqueIndex;not null" json:"brand_id"`
	NewComplaint      bool      `json:"new_complaint"`
	StatusChanged     bool      `json:"status_changed"`
	NewMessage        bool      `json:"new_message"`
	Escalation        bool      `json:"escalation"`
	EvidenceAdded     bool      `json:"evidence_added"`
	NegativeSentiment bool      `json:"negative_sentiment"`
	UrgencyAlert      bool      `json:"urgency_alert"`
	SystemUpdate      bool      `json:"system_update"`
	SystemAlert       bool      `json:"system_alert"`
	InAppEnabled      bool      `json:"in_app_enabled"`
	EmailEnabled      bool      `json:"email_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (BrandAlertPreference) TableName() string { return "brand_alert_preferences" }

// DefaultAlertPreference returns the preference row written for a brand that has none.
// Every event type is on and in-app delivery is on; email is opt-in.
func DefaultAlertPreference(brandID uint) BrandAlertPreference {
	return BrandAlertPreference{
		BrandID:           brandID,
		NewComplaint:      true,
		StatusChanged:     true,
		NewMessage:        true,
		Escalation:        true,
		EvidenceAdded:     true,
		NegativeSentiment: true,
		UrgencyAlert:      true,
		SystemUpdate:      true,
		SystemAlert:       true,
		InAppEnabled:      true,
		EmailEnabled:      false,
	}
}

// Wants returns the per-type switch for t.
func (p *BrandAlertPreference) Wants(t NotificationType) bool {
	switch t {
	case NotifyNewComplaint:
		return p.NewComplaint
	case NotifyStatusChanged:
		return p.StatusChanged
	case NotifyNewMessage:
		return p.NewMessage
	case NotifyEscalation:
		return p.Escalation
	case NotifyEvidenceAdded:
		return p.EvidenceAdded
	case NotifyNegativeSentiment:
		return p.NegativeSentiment
	case NotifyUrgencyAlert:
		return p.UrgencyAlert
	case NotifySystemUpdate:
		return p.SystemUpdate
	case NotifySystemAlert:
		return p.SystemAlert
	}
	return false
}
