package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bookingcore/internal/database"
	"bookingcore/internal/domain"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *BookingRepository) WithTx(tx *gorm.DB) *BookingRepository {
	return &BookingRepository{db: tx}
}

type bookingModel struct {
	ID               int64      `gorm:"column:id;primaryKey"`
	Reference        string     `gorm:"column:reference;size:32;uniqueIndex;not null"`
	ConfirmationCode string     `gorm:"column:confirmation_code;size:16"`
	UserID           int64      `gorm:"column:user_id;index;not null"`
	BusinessID       int64      `gorm:"column:business_id;index;not null"`
	ServiceID        *int64     `gorm:"column:service_id;index"`
	ResourceID       *int64     `gorm:"column:resource_id;index:idx_bookings_resource_window,priority:1"`
	SlotID           *int64     `gorm:"column:slot_id;index"`
	StartAt          time.Time  `gorm:"column:start_at;not null;index:idx_bookings_resource_window,priority:2"`
	EndAt            time.Time  `gorm:"column:end_at;not null"`
	Participants     int        `gorm:"column:participants;not null;default:1"`
	TotalAmount      float64    `gorm:"column:total_amount"`
	DepositAmount    float64    `gorm:"column:deposit_amount"`
	TaxAmount        float64    `gorm:"column:tax_amount"`
	DiscountAmount   float64    `gorm:"column:discount_amount"`
	FinalAmount      float64    `gorm:"column:final_amount"`
	Currency         string     `gorm:"column:currency;size:3"`
	Status           string     `gorm:"column:status;size:20;index;not null"`
	PaymentStatus    string     `gorm:"column:payment_status;size:20"`
	SpecialRequests  *string    `gorm:"column:special_requests;type:text"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at"`
	CancelledBy      *int64     `gorm:"column:cancelled_by"`
	CancelReason     *string    `gorm:"column:cancellation_reason;type:text"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) *domain.Booking {
	var requests, reason string
	if m.SpecialRequests != nil {
		requests = *m.SpecialRequests
	}
	if m.CancelReason != nil {
		reason = *m.CancelReason
	}

	return &domain.Booking{
		ID:               m.ID,
		Reference:        m.Reference,
		ConfirmationCode: m.ConfirmationCode,
		UserID:           m.UserID,
		BusinessID:       m.BusinessID,
		ServiceID:        m.ServiceID,
		ResourceID:       m.ResourceID,
		SlotID:           m.SlotID,
		StartAt:          m.StartAt.UTC(),
		EndAt:            m.EndAt.UTC(),
		Participants:     m.Participants,
		TotalAmount:      m.TotalAmount,
		DepositAmount:    m.DepositAmount,
		TaxAmount:        m.TaxAmount,
		DiscountAmount:   m.DiscountAmount,
		FinalAmount:      m.FinalAmount,
		Currency:         m.Currency,
		Status:           domain.BookingStatus(m.Status),
		PaymentStatus:    domain.PaymentStatus(m.PaymentStatus),
		SpecialRequests:  requests,
		CancelledAt:      m.CancelledAt,
		CancelledBy:      m.CancelledBy,
		CancelReason:     reason,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	var requests, reason *string
	if b.SpecialRequests != "" {
		v := b.SpecialRequests
		requests = &v
	}
	if b.CancelReason != "" {
		v := b.CancelReason
		reason = &v
	}

	return bookingModel{
		ID:               b.ID,
		Reference:        b.Reference,
		ConfirmationCode: b.ConfirmationCode,
		UserID:           b.UserID,
		BusinessID:       b.BusinessID,
		ServiceID:        b.ServiceID,
		ResourceID:       b.ResourceID,
		SlotID:           b.SlotID,
		StartAt:          b.StartAt,
		EndAt:            b.EndAt,
		Participants:     b.Participants,
		TotalAmount:      b.TotalAmount,
		DepositAmount:    b.DepositAmount,
		TaxAmount:        b.TaxAmount,
		DiscountAmount:   b.DiscountAmount,
		FinalAmount:      b.FinalAmount,
		Currency:         b.Currency,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		SpecialRequests:  requests,
		CancelledAt:      b.CancelledAt,
		CancelledBy:      b.CancelledBy,
		CancelReason:     reason,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// Create inserts the booking. A duplicate reference is reported as a write
// conflict so the whole create is retried with a fresh reference.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	tx := r.db.WithContext(ctx).Create(&m)
	if tx.Error != nil {
		if database.IsUniqueViolation(tx.Error) {
			return fmt.Errorf("%w: booking reference %s already taken", domain.ErrWriteConflict, b.Reference)
		}
		return tx.Error
	}
	*b = *toDomainBooking(m)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var m bookingModel
	tx := r.db.WithContext(ctx).First(&m, id)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, tx.Error
	}
	return toDomainBooking(m), nil
}

func (r *BookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var cnt int64
	tx := r.db.WithContext(ctx).Model(&bookingModel{}).Where("reference = ?", reference).Count(&cnt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return cnt > 0, nil
}

// PeakActiveParticipants is the highest number of participants active
// bookings on a resource hold at any instant of the window (half-open).
func (r *BookingRepository) PeakActiveParticipants(ctx context.Context, resourceID int64, w domain.TimeWindow) (int, error) {
	var rows []bookingModel
	err := r.db.WithContext(ctx).
		Select("start_at", "end_at", "participants").
		Where("resource_id = ?", resourceID).
		Where("status IN ?", activeStatusStrings()).
		Where("start_at < ? AND end_at > ?", w.End, w.Start).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	loads := make([]domain.Load, 0, len(rows))
	for _, m := range rows {
		loads = append(loads, domain.Load{Window: domain.NewTimeWindow(m.StartAt, m.EndAt), Units: m.Participants})
	}
	return domain.PeakLoad(w, loads), nil
}

// StatusChange describes a compare-and-set on the booking status.
type StatusChange struct {
	From         domain.BookingStatus
	To           domain.BookingStatus
	At           time.Time
	CancelledBy  *int64
	CancelReason string
}

// UpdateStatus moves the booking from ch.From to ch.To. Zero affected rows
// means another writer changed the status first.
func (r *BookingRepository) UpdateStatus(ctx context.Context, bookingID int64, ch StatusChange) error {
	updates := map[string]any{
		"status":     string(ch.To),
		"updated_at": ch.At,
	}
	if ch.To == domain.BookingCancelled {
		updates["cancelled_at"] = ch.At
		updates["cancelled_by"] = ch.CancelledBy
		if ch.CancelReason != "" {
			updates["cancellation_reason"] = ch.CancelReason
		}
	}

	tx := r.db.WithContext(ctx).
		Model(&bookingModel{}).
		Where("id = ? AND status = ?", bookingID, string(ch.From)).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %d is no longer %s", domain.ErrWriteConflict, bookingID, ch.From)
	}
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int64, f domain.BookingFilter) ([]domain.Booking, error) {
	return r.list(r.db.WithContext(ctx).Where("user_id = ?", userID), f)
}

func (r *BookingRepository) ListByBusiness(ctx context.Context, businessID int64, f domain.BookingFilter) ([]domain.Booking, error) {
	return r.list(r.db.WithContext(ctx).Where("business_id = ?", businessID), f)
}

func (r *BookingRepository) list(q *gorm.DB, f domain.BookingFilter) ([]domain.Booking, error) {
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.From != nil {
		q = q.Where("start_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("start_at < ?", f.To.UTC())
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows []bookingModel
	if err := q.Order("start_at desc").Limit(limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBooking(m))
	}
	return out, nil
}

// BookingIsCompleted answers review eligibility for the given author.
func (r *BookingRepository) BookingIsCompleted(ctx context.Context, bookingID, userID int64) (*domain.Booking, bool, error) {
	b, err := r.GetByID(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	return b, b.UserID == userID && b.Status == domain.BookingCompleted, nil
}

func activeStatusStrings() []string {
	out := make([]string, 0, len(domain.ActiveBookingStatuses))
	for _, s := range domain.ActiveBookingStatuses {
		out = append(out, string(s))
	}
	return out
}
