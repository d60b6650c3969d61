package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookingcore/internal/domain"
)

// UnitRepository owns the capacity rows: service slots and resources, plus
// the read-only service catalog they hang off.
type UnitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) WithTx(tx *gorm.DB) *UnitRepository {
	return &UnitRepository{db: tx}
}

type serviceModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	BusinessID  int64     `gorm:"column:business_id;index;not null"`
	Name        string    `gorm:"column:name;size:200;not null"`
	Price       float64   `gorm:"column:price"`
	MaxCapacity int       `gorm:"column:max_capacity;not null;default:1"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (serviceModel) TableName() string { return "services" }

type slotModel struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	ServiceID     int64     `gorm:"column:service_id;not null;index:idx_slots_service_window,priority:1"`
	StartAt       time.Time `gorm:"column:start_at;not null;index:idx_slots_service_window,priority:2"`
	EndAt         time.Time `gorm:"column:end_at;not null"`
	TotalSpots    int       `gorm:"column:total_spots;not null;check:total_spots >= 0"`
	ReservedSpots int       `gorm:"column:reserved_spots;not null;default:0;check:reserved_spots >= 0"`
	Status        string    `gorm:"column:status;size:20;not null;default:available"`
	Version       int64     `gorm:"column:version;not null;default:0"`
}

func (slotModel) TableName() string { return "availability_slots" }

type resourceModel struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	BusinessID   int64     `gorm:"column:business_id;index;not null"`
	Name         string    `gorm:"column:name;size:200;not null"`
	ResourceType string    `gorm:"column:resource_type;size:50"`
	Capacity     int       `gorm:"column:capacity;not null;default:1"`
	Status       string    `gorm:"column:status;size:20;not null;default:available"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	Version      int64     `gorm:"column:version;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (resourceModel) TableName() string { return "resources" }

func toDomainService(m serviceModel) *domain.Service {
	return &domain.Service{
		ID:          m.ID,
		BusinessID:  m.BusinessID,
		Name:        m.Name,
		Price:       m.Price,
		MaxCapacity: m.MaxCapacity,
		IsActive:    m.IsActive,
	}
}

func toDomainSlot(m slotModel) *domain.Slot {
	return &domain.Slot{
		ID:            m.ID,
		ServiceID:     m.ServiceID,
		StartAt:       m.StartAt.UTC(),
		EndAt:         m.EndAt.UTC(),
		TotalSpots:    m.TotalSpots,
		ReservedSpots: m.ReservedSpots,
		Status:        domain.UnitStatus(m.Status),
		Version:       m.Version,
	}
}

func toDomainResource(m resourceModel) *domain.Resource {
	return &domain.Resource{
		ID:           m.ID,
		BusinessID:   m.BusinessID,
		Name:         m.Name,
		ResourceType: m.ResourceType,
		Capacity:     m.Capacity,
		Status:       domain.UnitStatus(m.Status),
		IsActive:     m.IsActive,
		Version:      m.Version,
	}
}

func (r *UnitRepository) CreateService(ctx context.Context, s *domain.Service) error {
	m := serviceModel{
		BusinessID:  s.BusinessID,
		Name:        s.Name,
		Price:       s.Price,
		MaxCapacity: s.MaxCapacity,
		IsActive:    s.IsActive,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	// gorm skips zero-value bools that have a column default.
	if !s.IsActive {
		if err := r.db.WithContext(ctx).Model(&m).Update("is_active", false).Error; err != nil {
			return err
		}
	}
	s.ID = m.ID
	return nil
}

func (r *UnitRepository) CreateSlot(ctx context.Context, s *domain.Slot) error {
	status := s.Status
	if status == "" {
		status = domain.UnitAvailable
	}
	m := slotModel{
		ServiceID:     s.ServiceID,
		StartAt:       s.StartAt.UTC(),
		EndAt:         s.EndAt.UTC(),
		TotalSpots:    s.TotalSpots,
		ReservedSpots: s.ReservedSpots,
		Status:        string(status),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	*s = *toDomainSlot(m)
	return nil
}

func (r *UnitRepository) CreateResource(ctx context.Context, res *domain.Resource) error {
	status := res.Status
	if status == "" {
		status = domain.UnitAvailable
	}
	capacity := res.Capacity
	if capacity <= 0 {
		capacity = 1
	}
	m := resourceModel{
		BusinessID:   res.BusinessID,
		Name:         res.Name,
		ResourceType: res.ResourceType,
		Capacity:     capacity,
		Status:       string(status),
		IsActive:     res.IsActive,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	if !res.IsActive {
		if err := r.db.WithContext(ctx).Model(&m).Update("is_active", false).Error; err != nil {
			return err
		}
		m.IsActive = false
	}
	*res = *toDomainResource(m)
	return nil
}

func (r *UnitRepository) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	var m serviceModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainService(m), nil
}

func (r *UnitRepository) GetResource(ctx context.Context, id int64) (*domain.Resource, error) {
	var m resourceModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainResource(m), nil
}

// GetResourceForUpdate row-locks the resource for the rest of the
// transaction. SQLite ignores the locking clause.
func (r *UnitRepository) GetResourceForUpdate(ctx context.Context, id int64) (*domain.Resource, error) {
	var m resourceModel
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainResource(m), nil
}

func (r *UnitRepository) GetSlot(ctx context.Context, id int64) (*domain.Slot, error) {
	var m slotModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainSlot(m), nil
}

func (r *UnitRepository) GetSlotForUpdate(ctx context.Context, id int64) (*domain.Slot, error) {
	var m slotModel
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return toDomainSlot(m), nil
}

// CoveringSlots returns the service's slots that fully contain the window,
// earliest first.
func (r *UnitRepository) CoveringSlots(ctx context.Context, serviceID int64, w domain.TimeWindow) ([]domain.Slot, error) {
	var rows []slotModel
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND start_at <= ? AND end_at >= ?", serviceID, w.Start, w.End).
		Order("start_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Slot, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainSlot(m))
	}
	return out, nil
}

// IncrementReserved adds n spots if the slot is still at the expected
// version, still available, and has room. It returns whether a row changed.
func (r *UnitRepository) IncrementReserved(ctx context.Context, slotID, version int64, n int) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&slotModel{}).
		Where("id = ? AND version = ? AND status = ?", slotID, version, string(domain.UnitAvailable)).
		Where("reserved_spots + ? <= total_spots", n).
		Updates(map[string]any{
			"reserved_spots": gorm.Expr("reserved_spots + ?", n),
			"version":        gorm.Expr("version + 1"),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// DecrementReserved gives n spots back. It never drives reserved_spots
// below zero.
func (r *UnitRepository) DecrementReserved(ctx context.Context, slotID int64, n int) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&slotModel{}).
		Where("id = ? AND reserved_spots >= ?", slotID, n).
		Updates(map[string]any{
			"reserved_spots": gorm.Expr("reserved_spots - ?", n),
			"version":        gorm.Expr("version + 1"),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// BumpResourceVersion is the optimistic guard for resource reservations.
func (r *UnitRepository) BumpResourceVersion(ctx context.Context, resourceID, version int64) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&resourceModel{}).
		Where("id = ? AND version = ?", resourceID, version).
		Update("version", gorm.Expr("version + 1"))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *UnitRepository) SetResourceStatus(ctx context.Context, resourceID int64, status domain.UnitStatus) error {
	return r.db.WithContext(ctx).
		Model(&resourceModel{}).
		Where("id = ?", resourceID).
		Updates(map[string]any{"status": string(status), "version": gorm.Expr("version + 1")}).Error
}

func (r *UnitRepository) SetSlotStatus(ctx context.Context, slotID int64, status domain.UnitStatus) error {
	return r.db.WithContext(ctx).
		Model(&slotModel{}).
		Where("id = ?", slotID).
		Updates(map[string]any{"status": string(status), "version": gorm.Expr("version + 1")}).Error
}

// UnitDefinition implements the catalog view the booking flow validates
// against.
func (r *UnitRepository) UnitDefinition(ctx context.Context, unit domain.UnitRef) (*domain.UnitDefinition, error) {
	switch unit.Kind {
	case domain.UnitService:
		s, err := r.GetService(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		return &domain.UnitDefinition{
			Unit:        unit,
			BusinessID:  s.BusinessID,
			MaxCapacity: s.MaxCapacity,
			Price:       s.Price,
			Active:      s.IsActive,
		}, nil
	case domain.UnitResource:
		res, err := r.GetResource(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		return &domain.UnitDefinition{
			Unit:        unit,
			BusinessID:  res.BusinessID,
			MaxCapacity: res.Capacity,
			Active:      res.IsActive,
		}, nil
	}
	return nil, domain.ErrValidation
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
