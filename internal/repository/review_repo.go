package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bookingcore/internal/database"
	"bookingcore/internal/domain"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) WithTx(tx *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: tx}
}

type reviewModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	BookingID  int64     `gorm:"column:booking_id;uniqueIndex;not null"`
	UserID     int64     `gorm:"column:user_id;index;not null"`
	BusinessID int64     `gorm:"column:business_id;index:idx_reviews_business_status,priority:1;not null"`
	Rating     int       `gorm:"column:rating;not null;check:rating BETWEEN 1 AND 5"`
	Comment    string    `gorm:"column:comment;type:text"`
	Status     string    `gorm:"column:status;size:20;not null;default:pending;index:idx_reviews_business_status,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (reviewModel) TableName() string { return "reviews" }

func toDomainReview(m reviewModel) *domain.Review {
	return &domain.Review{
		ID:         m.ID,
		BookingID:  m.BookingID,
		UserID:     m.UserID,
		BusinessID: m.BusinessID,
		Rating:     m.Rating,
		Comment:    m.Comment,
		Status:     domain.ReviewStatus(m.Status),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

var ErrDuplicateReview = errors.New("booking already has a review")

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	m := reviewModel{
		BookingID:  rv.BookingID,
		UserID:     rv.UserID,
		BusinessID: rv.BusinessID,
		Rating:     rv.Rating,
		Comment:    rv.Comment,
		Status:     string(rv.Status),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateReview
		}
		return err
	}
	*rv = *toDomainReview(m)
	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (*domain.Review, error) {
	var m reviewModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainReview(m), nil
}

func (r *ReviewRepository) ExistsForBooking(ctx context.Context, bookingID int64) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&reviewModel{}).Where("booking_id = ?", bookingID).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *ReviewRepository) UpdateStatus(ctx context.Context, id int64, status domain.ReviewStatus) error {
	return r.db.WithContext(ctx).Model(&reviewModel{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()}).Error
}

func (r *ReviewRepository) UpdateRating(ctx context.Context, id int64, rating int, comment *string) error {
	updates := map[string]any{"rating": rating, "updated_at": time.Now().UTC()}
	if comment != nil {
		updates["comment"] = *comment
	}
	return r.db.WithContext(ctx).Model(&reviewModel{}).Where("id = ?", id).Updates(updates).Error
}

func (r *ReviewRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&reviewModel{}, id).Error
}

// ApprovedRatings feeds the rating aggregator.
func (r *ReviewRepository) ApprovedRatings(ctx context.Context, businessID int64) ([]int, error) {
	var ratings []int
	err := r.db.WithContext(ctx).
		Model(&reviewModel{}).
		Where("business_id = ? AND status = ?", businessID, string(domain.ReviewApproved)).
		Order("id asc").
		Pluck("rating", &ratings).Error
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// BusinessIDs lists every business that has at least one review.
func (r *ReviewRepository) BusinessIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&reviewModel{}).Distinct().Pluck("business_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ReviewRepository) ListByBusiness(ctx context.Context, businessID int64, status *domain.ReviewStatus) ([]domain.Review, error) {
	q := r.db.WithContext(ctx).Where("business_id = ?", businessID)
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}

	var rows []reviewModel
	if err := q.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Review, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainReview(m))
	}
	return out, nil
}
