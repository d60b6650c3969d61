package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bookingcore/internal/domain"
)

// HistoryRepository is append-only: there is no update or delete.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) WithTx(tx *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

type historyModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	BookingID int64     `gorm:"column:booking_id;index;not null"`
	OldStatus *string   `gorm:"column:old_status;size:20"`
	NewStatus string    `gorm:"column:new_status;size:20;not null"`
	ChangedBy int64     `gorm:"column:changed_by"`
	Reason    string    `gorm:"column:reason;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (historyModel) TableName() string { return "booking_history" }

func (r *HistoryRepository) Append(ctx context.Context, e *domain.HistoryEntry) error {
	var old *string
	if e.OldStatus != nil {
		v := string(*e.OldStatus)
		old = &v
	}
	m := historyModel{
		BookingID: e.BookingID,
		OldStatus: old,
		NewStatus: string(e.NewStatus),
		ChangedBy: e.ChangedBy,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	return nil
}

// ListByBooking returns entries in the order they were written.
func (r *HistoryRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.HistoryEntry, error) {
	var rows []historyModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.HistoryEntry, 0, len(rows))
	for _, m := range rows {
		e := domain.HistoryEntry{
			ID:        m.ID,
			BookingID: m.BookingID,
			NewStatus: domain.BookingStatus(m.NewStatus),
			ChangedBy: m.ChangedBy,
			Reason:    m.Reason,
			CreatedAt: m.CreatedAt,
		}
		if m.OldStatus != nil {
			s := domain.BookingStatus(*m.OldStatus)
			e.OldStatus = &s
		}
		out = append(out, e)
	}
	return out, nil
}
