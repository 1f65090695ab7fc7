package services

import (
	"context"
	"fmt"

	"github.com/huangang/brandsentry/internal/config"
	"gorm.io/gorm"
)

// TrustScore is the Bayesian-damped owner-rating average of a brand, or of the
// whole platform when BrandID is nil.
type TrustScore struct {
	BrandID *uint   `json:"brand_id,omitempty"`
	Score   float64 `json:"score"`
	Ratings int     `json:"ratings"`
	Mean    float64 `json:"mean"`
	Prior   float64 `json:"prior"`
	Damping float64 `json:"damping"`
}

// DampedAverage returns (v*r + m*c) / (v + m). With no ratings it is exactly c.
func DampedAverage(v int, r, m, c float64) float64 {
	if v <= 0 {
		return c
	}
	fv := float64(v)
	return (fv*r + m*c) / (fv + m)
}

type TrustScoreService struct {
	db  *gorm.DB
	cfg config.TrustConfig
}

func NewTrustScoreService(db *gorm.DB, cfg config.TrustConfig) *TrustScoreService {
	if cfg.Damping <= 0 {
		cfg.Damping = 10
	}
	if cfg.Prior <= 0 {
		cfg.Prior = 3.5
	}
	return &TrustScoreService{db: db, cfg: cfg}
}

type ownerRatingRow struct {
	ComplaintID uint
	Stars       int
}

// ownerRatings returns, per complaint, the stars of the earliest rating left by
// the complaint's author. Ratings not attached to a complaint never count.
func (s *TrustScoreService) ownerRatings(ctx context.Context, brandID *uint) ([]int, error) {
	query := s.db.WithContext(ctx).
		Table("ratings").
		Select("ratings.complaint_id, ratings.stars").
		Joins("JOIN complaints ON complaints.id = ratings.complaint_id AND complaints.author_id = ratings.user_id").
		Where("ratings.deleted_at IS NULL AND complaints.deleted_at IS NULL")
	if brandID != nil {
		query = query.Where("complaints.brand_id = ?", *brandID)
	}

	var rows []ownerRatingRow
	if err := query.Order("ratings.complaint_id ASC, ratings.created_at ASC, ratings.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load owner ratings: %w", err)
	}

	stars := make([]int, 0, len(rows))
	seen := make(map[uint]bool, len(rows))
	for _, row := range rows {
		if seen[row.ComplaintID] {
			continue
		}
		seen[row.ComplaintID] = true
		stars = append(stars, row.Stars)
	}
	return stars, nil
}

func meanOf(stars []int) float64 {
	if len(stars) == 0 {
		return 0
	}
	sum := 0
	for _, s := range stars {
		sum += s
	}
	return float64(sum) / float64(len(stars))
}

// prior is the configured constant, or the platform owner-rating mean when
// use_platform_prior is on and any owner rating exists.
func (s *TrustScoreService) prior(ctx context.Context) (float64, error) {
	if !s.cfg.UsePlatformPrior {
		return s.cfg.Prior, nil
	}
	stars, err := s.ownerRatings(ctx, nil)
	if err != nil {
		return 0, err
	}
	if len(stars) == 0 {
		return s.cfg.Prior, nil
	}
	return meanOf(stars), nil
}

// ForBrand computes the public trust score of one brand.
func (s *TrustScoreService) ForBrand(ctx context.Context, brandID uint) (*TrustScore, error) {
	stars, err := s.ownerRatings(ctx, &brandID)
	if err != nil {
		return nil, err
	}
	c, err := s.prior(ctx)
	if err != nil {
		return nil, err
	}
	id := brandID
	return s.build(&id, stars, c), nil
}

// Platform computes the comparator score over every brand's owner ratings.
func (s *TrustScoreService) Platform(ctx context.Context) (*TrustScore, error) {
	stars, err := s.ownerRatings(ctx, nil)
	if err != nil {
		return nil, err
	}
	c, err := s.prior(ctx)
	if err != nil {
		return nil, err
	}
	return s.build(nil, stars, c), nil
}

func (s *TrustScoreService) build(brandID *uint, stars []int, c float64) *TrustScore {
	r := meanOf(stars)
	return &TrustScore{
		BrandID: brandID,
		Score:   DampedAverage(len(stars), r, s.cfg.Damping, c),
		Ratings: len(stars),
		Mean:    r,
		Prior:   c,
		Damping: s.cfg.Damping,
	}
}
