package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bookingcore/internal/domain"
)

type BlockingRepository struct {
	db *gorm.DB
}

func NewBlockingRepository(db *gorm.DB) *BlockingRepository {
	return &BlockingRepository{db: db}
}

func (r *BlockingRepository) WithTx(tx *gorm.DB) *BlockingRepository {
	return &BlockingRepository{db: tx}
}

type blockingWindowModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	BusinessID *int64    `gorm:"column:business_id;index"`
	ServiceID  *int64    `gorm:"column:service_id;index"`
	ResourceID *int64    `gorm:"column:resource_id;index"`
	StartAt    time.Time `gorm:"column:start_at;not null"`
	EndAt      time.Time `gorm:"column:end_at;not null"`
	Reason     string    `gorm:"column:reason;size:255"`
	Kind       string    `gorm:"column:block_type;size:50;not null;default:other"`
	CreatedBy  int64     `gorm:"column:created_by"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (blockingWindowModel) TableName() string { return "blocking_windows" }

func toDomainBlockingWindow(m blockingWindowModel) *domain.BlockingWindow {
	return &domain.BlockingWindow{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		ServiceID:  m.ServiceID,
		ResourceID: m.ResourceID,
		StartAt:    m.StartAt.UTC(),
		EndAt:      m.EndAt.UTC(),
		Reason:     m.Reason,
		Kind:       domain.BlockKind(m.Kind),
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
	}
}

func (r *BlockingRepository) Create(ctx context.Context, w *domain.BlockingWindow) error {
	kind := w.Kind
	if kind == "" {
		kind = domain.BlockOther
	}
	m := blockingWindowModel{
		BusinessID: w.BusinessID,
		ServiceID:  w.ServiceID,
		ResourceID: w.ResourceID,
		StartAt:    w.StartAt.UTC(),
		EndAt:      w.EndAt.UTC(),
		Reason:     w.Reason,
		Kind:       string(kind),
		CreatedBy:  w.CreatedBy,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	*w = *toDomainBlockingWindow(m)
	return nil
}

// BlockScope lists the ids a unit can be blocked through. Zero ids are
// ignored.
type BlockScope struct {
	BusinessID int64
	ServiceID  int64
	ResourceID int64
}

// FindOverlapping returns blocking windows in scope that intersect w.
func (r *BlockingRepository) FindOverlapping(ctx context.Context, scope BlockScope, w domain.TimeWindow) ([]domain.BlockingWindow, error) {
	q := r.db.WithContext(ctx).Where("start_at < ? AND end_at > ?", w.End, w.Start)

	scoped := r.db.Where("1 = 0")
	if scope.BusinessID != 0 {
		scoped = scoped.Or("business_id = ?", scope.BusinessID)
	}
	if scope.ServiceID != 0 {
		scoped = scoped.Or("service_id = ?", scope.ServiceID)
	}
	if scope.ResourceID != 0 {
		scoped = scoped.Or("resource_id = ?", scope.ResourceID)
	}

	var rows []blockingWindowModel
	if err := q.Where(scoped).Order("start_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.BlockingWindow, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBlockingWindow(m))
	}
	return out, nil
}
