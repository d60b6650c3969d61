package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookingcore/internal/domain"
)

type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

type ratingSummaryModel struct {
	BusinessID    int64     `gorm:"column:business_id;primaryKey;autoIncrement:false"`
	AverageRating float64   `gorm:"column:average_rating;not null;default:0"`
	ReviewCount   int       `gorm:"column:review_count;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (ratingSummaryModel) TableName() string { return "rating_summaries" }

// Upsert writes the whole summary row in one statement.
func (r *RatingRepository) Upsert(ctx context.Context, s *domain.RatingSummary) error {
	m := ratingSummaryModel{
		BusinessID:    s.BusinessID,
		AverageRating: s.AverageRating,
		ReviewCount:   s.ReviewCount,
		UpdatedAt:     s.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"average_rating", "review_count", "updated_at"}),
	}).Create(&m).Error
}

func (r *RatingRepository) Get(ctx context.Context, businessID int64) (*domain.RatingSummary, error) {
	var m ratingSummaryModel
	if err := r.db.WithContext(ctx).Where("business_id = ?", businessID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &domain.RatingSummary{
		BusinessID:    m.BusinessID,
		AverageRating: m.AverageRating,
		ReviewCount:   m.ReviewCount,
		UpdatedAt:     m.UpdatedAt.UTC(),
	}, nil
}

func (r *RatingRepository) BusinessIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&ratingSummaryModel{}).Pluck("business_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
