package models

import (
	"time"

	"gorm.io/gorm"
)

// Brand is a company profile that receives complaints and ratings.
type Brand struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:200;not null" json:"name"`
	Slug         string         `gorm:"uniqueIndex;size:200" json:"slug"`
	ManagerEmail string         `gorm:"size:255" json:"manager_email"` // legacy single-contact address
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Brand) TableName() string { return "brands" }

// BrandTeamMember is a staff account attached to a brand.
type BrandTeamMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BrandID   uint      `gorm:"index;not null" json:"brand_id"`
	UserID    *uint     `json:"user_id"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Role      string    `gorm:"size:50;default:member" json:"role"` // owner, admin, member
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BrandTeamMember) TableName() string { return "brand_team_members" }
