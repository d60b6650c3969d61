package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookingcore/internal/database"
	"bookingcore/internal/domain"
	"bookingcore/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return db
}

var (
	start = time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC)
	end   = start.Add(time.Hour)
)

func TestLedger_SlotReserveAndRelease(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)
	l := New(units, repository.NewBookingRepository(db))

	svc := &domain.Service{BusinessID: 1, Name: "Tasting", MaxCapacity: 10, IsActive: true}
	require.NoError(t, units.CreateService(ctx, svc))
	slot := &domain.Slot{ServiceID: svc.ID, StartAt: start, EndAt: end, TotalSpots: 5}
	require.NoError(t, units.CreateSlot(ctx, slot))

	claim := Claim{
		Unit:         domain.UnitRef{Kind: domain.UnitService, ID: svc.ID},
		SlotID:       &slot.ID,
		Window:       domain.NewTimeWindow(start, end),
		Participants: 3,
	}

	require.NoError(t, l.Reserve(ctx, db, claim))
	assert.ErrorIs(t, l.Reserve(ctx, db, claim), domain.ErrCapacityExceeded)

	claim.Participants = 2
	require.NoError(t, l.Reserve(ctx, db, claim))

	got, err := units.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ReservedSpots)
	assert.Equal(t, int64(2), got.Version)

	require.NoError(t, l.Release(ctx, db, claim))
	claim.Participants = 3
	require.NoError(t, l.Release(ctx, db, claim))
	assert.ErrorIs(t, l.Release(ctx, db, claim), domain.ErrNotReserved)

	got, err = units.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReservedSpots)
}

func TestLedger_SlotBlocked(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)
	l := New(units, repository.NewBookingRepository(db))

	svc := &domain.Service{BusinessID: 1, Name: "Tasting", MaxCapacity: 10, IsActive: true}
	require.NoError(t, units.CreateService(ctx, svc))
	slot := &domain.Slot{ServiceID: svc.ID, StartAt: start, EndAt: end, TotalSpots: 5, Status: domain.UnitBlocked}
	require.NoError(t, units.CreateSlot(ctx, slot))

	err := l.Reserve(ctx, db, Claim{
		Unit:         domain.UnitRef{Kind: domain.UnitService, ID: svc.ID},
		SlotID:       &slot.ID,
		Window:       domain.NewTimeWindow(start, end),
		Participants: 1,
	})
	assert.ErrorIs(t, err, domain.ErrBlocked)

	err = l.Reserve(ctx, db, Claim{Unit: domain.UnitRef{Kind: domain.UnitService, ID: svc.ID}, Participants: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLedger_Resource(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)
	bookings := repository.NewBookingRepository(db)
	l := New(units, bookings)

	res := &domain.Resource{BusinessID: 1, Name: "Table 4", Capacity: 4, IsActive: true}
	require.NoError(t, units.CreateResource(ctx, res))

	claim := Claim{
		Unit:         domain.UnitRef{Kind: domain.UnitResource, ID: res.ID},
		Window:       domain.NewTimeWindow(start, end),
		Participants: 3,
	}

	// Nothing is held yet.
	assert.ErrorIs(t, l.Release(ctx, db, claim), domain.ErrNotReserved)

	require.NoError(t, l.Reserve(ctx, db, claim))
	require.NoError(t, bookings.Create(ctx, &domain.Booking{
		Reference:     "BK20300501LEDGER01",
		UserID:        1,
		BusinessID:    1,
		ResourceID:    &res.ID,
		StartAt:       start,
		EndAt:         end,
		Participants:  3,
		Currency:      domain.DefaultCurrency,
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentPending,
	}))

	claim.Participants = 2
	assert.ErrorIs(t, l.Reserve(ctx, db, claim), domain.ErrCapacityExceeded)

	claim.Participants = 1
	require.NoError(t, l.Reserve(ctx, db, claim))

	got, err := units.GetResource(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	claim.Participants = 3
	require.NoError(t, l.Release(ctx, db, claim))

	require.NoError(t, units.SetResourceStatus(ctx, res.ID, domain.UnitMaintenance))
	claim.Participants = 1
	assert.ErrorIs(t, l.Reserve(ctx, db, claim), domain.ErrBlocked)
}

func TestClaimFor(t *testing.T) {
	slotID := int64(8)
	serviceID := int64(2)
	b := &domain.Booking{ServiceID: &serviceID, SlotID: &slotID, StartAt: start, EndAt: end, Participants: 2}

	c := ClaimFor(b)
	assert.Equal(t, domain.UnitRef{Kind: domain.UnitService, ID: 2}, c.Unit)
	assert.Equal(t, &slotID, c.SlotID)
	assert.Equal(t, 2, c.Participants)
	assert.True(t, c.Window.Start.Equal(start))
}

var rivalSeq int

// rivalWrites makes another writer land stmt on table right before each of
// the next n guarded updates to that table, inside the same connection.
func rivalWrites(t *testing.T, db *gorm.DB, table string, n int, stmt string, args ...any) {
	t.Helper()
	rivalSeq++
	name := fmt.Sprintf("test:rival_%d", rivalSeq)
	left := n
	err := db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if left == 0 || tx.Statement.Table != table {
			return
		}
		left--
		if err := tx.Session(&gorm.Session{NewDB: true}).Exec(stmt, args...).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Callback().Update().Remove(name) })
}

func newSlot(t *testing.T, units *repository.UnitRepository, spots int) (*domain.Service, *domain.Slot) {
	t.Helper()
	ctx := context.Background()
	svc := &domain.Service{BusinessID: 1, Name: "Tasting", MaxCapacity: 10, IsActive: true}
	require.NoError(t, units.CreateService(ctx, svc))
	slot := &domain.Slot{ServiceID: svc.ID, StartAt: start, EndAt: end, TotalSpots: spots}
	require.NoError(t, units.CreateSlot(ctx, slot))
	return svc, slot
}

func TestUnitRepository_StaleVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)

	_, slot := newSlot(t, units, 5)
	ok, err := units.IncrementReserved(ctx, slot.ID, slot.Version, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = units.IncrementReserved(ctx, slot.ID, slot.Version, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	res := &domain.Resource{BusinessID: 1, Name: "Court 1", Capacity: 1, IsActive: true}
	require.NoError(t, units.CreateResource(ctx, res))
	ok, err = units.BumpResourceVersion(ctx, res.ID, res.Version)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = units.BumpResourceVersion(ctx, res.ID, res.Version)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := units.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReservedSpots)
}

func TestLedger_SlotLostRace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)
	l := New(units, repository.NewBookingRepository(db))

	svc, slot := newSlot(t, units, 5)
	claim := Claim{
		Unit:         domain.UnitRef{Kind: domain.UnitService, ID: svc.ID},
		SlotID:       &slot.ID,
		Window:       domain.NewTimeWindow(start, end),
		Participants: 2,
	}

	// Someone takes one spot between our read and our write: room is left,
	// so it is a conflict to retry.
	rivalWrites(t, db, "availability_slots", 1,
		"UPDATE availability_slots SET reserved_spots = reserved_spots + 1, version = version + 1 WHERE id = ?", slot.ID)
	err := l.Reserve(ctx, db, claim)
	assert.ErrorIs(t, err, domain.ErrWriteConflict)
	assert.NotErrorIs(t, err, domain.ErrCapacityExceeded)

	// Someone fills the slot: that is a real shortage.
	rivalWrites(t, db, "availability_slots", 1,
		"UPDATE availability_slots SET reserved_spots = total_spots, version = version + 1 WHERE id = ?", slot.ID)
	claim.Participants = 1
	err = l.Reserve(ctx, db, claim)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	got, err := units.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ReservedSpots)
}

func TestLedger_ResourceLostRace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)
	l := New(units, repository.NewBookingRepository(db))

	res := &domain.Resource{BusinessID: 1, Name: "Court 1", Capacity: 2, IsActive: true}
	require.NoError(t, units.CreateResource(ctx, res))

	rivalWrites(t, db, "resources", 1, "UPDATE resources SET version = version + 1 WHERE id = ?", res.ID)
	err := l.Reserve(ctx, db, Claim{
		Unit:         domain.UnitRef{Kind: domain.UnitResource, ID: res.ID},
		Window:       domain.NewTimeWindow(start, end),
		Participants: 1,
	})
	assert.ErrorIs(t, err, domain.ErrWriteConflict)
}

func TestLedger_RetryAfterLostRace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)
	l := New(units, repository.NewBookingRepository(db))

	svc, slot := newSlot(t, units, 5)
	claim := Claim{
		Unit:         domain.UnitRef{Kind: domain.UnitService, ID: svc.ID},
		SlotID:       &slot.ID,
		Window:       domain.NewTimeWindow(start, end),
		Participants: 2,
	}
	reserve := func(attempts *int) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				*attempts++
				return l.Reserve(ctx, tx, claim)
			})
		}
	}

	rivalWrites(t, db, "availability_slots", 1,
		"UPDATE availability_slots SET version = version + 1 WHERE id = ?", slot.ID)
	var attempts int
	require.NoError(t, database.WithRetry(ctx, 3, reserve(&attempts)))
	assert.Equal(t, 2, attempts)

	got, err := units.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReservedSpots)

	// A writer that always wins exhausts the budget.
	rivalWrites(t, db, "availability_slots", 3,
		"UPDATE availability_slots SET version = version + 1 WHERE id = ?", slot.ID)
	attempts = 0
	err = database.WithRetry(ctx, 3, reserve(&attempts))
	assert.ErrorIs(t, err, domain.ErrContention)
	assert.Equal(t, 3, attempts)

	got, err = units.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReservedSpots)
}

func TestLedger_ResourcePeakNotSum(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	units := repository.NewUnitRepository(db)
	bookings := repository.NewBookingRepository(db)
	l := New(units, bookings)

	res := &domain.Resource{BusinessID: 1, Name: "Lane 2", Capacity: 2, IsActive: true}
	require.NoError(t, units.CreateResource(ctx, res))
	for i, s := range []time.Time{start, end} {
		require.NoError(t, bookings.Create(ctx, &domain.Booking{
			Reference:     fmt.Sprintf("BK20300501PEAK%04d", i),
			UserID:        1,
			BusinessID:    1,
			ResourceID:    &res.ID,
			StartAt:       s,
			EndAt:         s.Add(time.Hour),
			Participants:  1,
			Currency:      domain.DefaultCurrency,
			Status:        domain.BookingConfirmed,
			PaymentStatus: domain.PaymentPending,
		}))
	}

	claim := Claim{
		Unit:         domain.UnitRef{Kind: domain.UnitResource, ID: res.ID},
		Window:       domain.NewTimeWindow(start, end.Add(time.Hour)),
		Participants: 1,
	}
	// Back-to-back bookings never hold more than one spot at once.
	require.NoError(t, l.Reserve(ctx, db, claim))

	claim.Participants = 2
	assert.ErrorIs(t, l.Reserve(ctx, db, claim), domain.ErrCapacityExceeded)
}
