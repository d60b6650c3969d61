package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bookingcore/internal/domain"
)

// UserRepository is a read view over the identity service's users table.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Email     string    `gorm:"column:email;size:255;uniqueIndex"`
	Role      string    `gorm:"column:role;size:20;not null;default:customer"`
	Status    string    `gorm:"column:status;size:20;not null;default:active"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (userModel) TableName() string { return "users" }

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	m := userModel{
		Email:  u.Email,
		Role:   string(u.Role),
		Status: string(u.Status),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	u.ID = m.ID
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &domain.User{
		ID:     m.ID,
		Email:  m.Email,
		Role:   domain.UserRole(m.Role),
		Status: domain.UserStatus(m.Status),
	}, nil
}

// IsActive reports false for unknown users instead of failing.
func (r *UserRepository) IsActive(ctx context.Context, userID int64) (bool, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.Status == domain.UserActive, nil
}
