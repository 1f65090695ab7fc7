package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"

	// FeatureAlerts gates non-critical brand notifications.
	FeatureAlerts = "alerts"
)

// BrandSubscription is the billing entitlement of a brand. It is written by the
// payment integration and only read here.
type BrandSubscription struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	BrandID          uint                        `gorm:"index;not null" json:"brand_id"`
	PlanCode         string                      `gorm:"size:50" json:"plan_code"`
	Status           string                      `gorm:"size:20;index" json:"status"` // active, past_due, canceled
	Features         datatypes.JSONSlice[string] `json:"features"`
	CurrentPeriodEnd *time.Time                  `json:"current_period_end"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func (BrandSubscription) TableName() string { return "brand_subscriptions" }

// Entitles reports whether the subscription is active at now and includes feature.
func (s *BrandSubscription) Entitles(feature string, now time.Time) bool {
	if s == nil || s.Status != SubscriptionActive {
		return false
	}
	if s.CurrentPeriodEnd != nil && !now.Before(*s.CurrentPeriodEnd) {
		return false
	}
	return slices.Contains([]string(s.Features), feature)
}
