package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app notification row shown in the brand notification center.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	BrandID   uint           `gorm:"index;not null" json:"brand_id"`
	Type      string         `gorm:"size:50;index;not null" json:"type"`
	Title     string         `gorm:"size:300" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// NotificationType is the closed set of events the notification gate accepts.
type NotificationType string

const (
	NotifyNewComplaint      NotificationType = "new-complaint"
	NotifyStatusChanged     NotificationType = "status-changed"
	NotifyNewMessage        NotificationType = "new-message"
	NotifyEscalation        NotificationType = "escalation"
	NotifyEvidenceAdded     NotificationType = "evidence-added"
	NotifyNegativeSentiment NotificationType = "negative-sentiment"
	NotifyUrgencyAlert      NotificationType = "urgency-alert"
	NotifySystemUpdate      NotificationType = "system-update"
	NotifySystemAlert       NotificationType = "system-alert"
)

var NotificationTypes = []NotificationType{
	NotifyNewComplaint,
	NotifyStatusChanged,
	NotifyNewMessage,
	NotifyEscalation,
	NotifyEvidenceAdded,
	NotifyNegativeSentiment,
	NotifyUrgencyAlert,
	NotifySystemUpdate,
	NotifySystemAlert,
}

func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsCritical types are delivered whether or not the brand is entitled to alerts.
func (t NotificationType) IsCritical() bool {
	switch t {
	case NotifyNewComplaint, NotifySystemAlert, NotifySystemUpdate:
		return true
	}
	return false
}

// AlwaysMatches types ignore the brand's per-type switch.
func (t NotificationType) AlwaysMatches() bool {
	switch t {
	case NotifySystemAlert, NotifyNegativeSentiment, NotifyUrgencyAlert, NotifySystemUpdate:
		return true
	}
	return false
}
