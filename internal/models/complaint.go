package models

import (
	"time"

	"gorm.io/gorm"
)

// Complaint is a consumer complaint filed against a brand.
type Complaint struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	BrandID     uint           `gorm:"index;not null" json:"brand_id"`
	AuthorID    uint           `gorm:"index;not null" json:"author_id"`
	Title       string         `gorm:"size:300" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      string         `gorm:"size:50;default:open" json:"status"` // open, in_progress, resolved, closed
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Complaint) TableName() string { return "complaints" }

// Rating is a 1-5 star review, usually left on a resolved complaint.
type Rating struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	BrandID     uint           `gorm:"index;not null" json:"brand_id"`
	ComplaintID *uint          `gorm:"index" json:"complaint_id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	Stars       int            `gorm:"not null" json:"stars"`
	Comment     string         `gorm:"type:text" json:"comment"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Rating) TableName() string { return "ratings" }
