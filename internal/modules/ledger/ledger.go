package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bookingcore/internal/domain"
	"bookingcore/internal/repository"
)

// Claim is the amount of capacity a booking holds on a unit.
type Claim struct {
	Unit         domain.UnitRef
	SlotID       *int64
	Window       domain.TimeWindow
	Participants int
}

func ClaimFor(b *domain.Booking) Claim {
	return Claim{
		Unit:         b.Unit(),
		SlotID:       b.SlotID,
		Window:       b.Window(),
		Participants: b.Participants,
	}
}

// Ledger is the only writer of slot counters and resource versions. Every
// call must run inside the caller's transaction.
type Ledger struct {
	units    *repository.UnitRepository
	bookings *repository.BookingRepository
}

func New(units *repository.UnitRepository, bookings *repository.BookingRepository) *Ledger {
	return &Ledger{units: units, bookings: bookings}
}

// Reserve takes capacity for the claim or fails with ErrCapacityExceeded.
// A lost optimistic race surfaces as ErrWriteConflict for the retry loop.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, c Claim) error {
	if c.Participants <= 0 {
		return fmt.Errorf("%w: participants must be positive", domain.ErrValidation)
	}
	units := l.units.WithTx(tx)

	switch c.Unit.Kind {
	case domain.UnitService:
		if c.SlotID == nil {
			return fmt.Errorf("%w: service reservation needs a slot", domain.ErrValidation)
		}
		return reserveSlot(ctx, units, *c.SlotID, c.Participants)
	case domain.UnitResource:
		return reserveResource(ctx, units, l.bookings.WithTx(tx), c)
	}
	return fmt.Errorf("%w: unknown unit kind %q", domain.ErrValidation, c.Unit.Kind)
}

// Release gives the claim back. It is not idempotent on its own: callers
// release at most once per booking.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, c Claim) error {
	units := l.units.WithTx(tx)

	switch c.Unit.Kind {
	case domain.UnitService:
		if c.SlotID == nil {
			return domain.ErrNotReserved
		}
		ok, err := units.DecrementReserved(ctx, *c.SlotID, c.Participants)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: slot %d", domain.ErrNotReserved, *c.SlotID)
		}
		return nil
	case domain.UnitResource:
		return releaseResource(ctx, units, l.bookings.WithTx(tx), c)
	}
	return fmt.Errorf("%w: unknown unit kind %q", domain.ErrValidation, c.Unit.Kind)
}

func reserveSlot(ctx context.Context, units *repository.UnitRepository, slotID int64, n int) error {
	slot, err := units.GetSlotForUpdate(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.Status != domain.UnitAvailable {
		return domain.ErrBlocked
	}
	if slot.Remaining() < n {
		return domain.ErrCapacityExceeded
	}

	ok, err := units.IncrementReserved(ctx, slot.ID, slot.Version, n)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// The guard failed: tell a real shortage apart from a concurrent writer.
	fresh, err := units.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if fresh.Status != domain.UnitAvailable {
		return domain.ErrBlocked
	}
	if fresh.Remaining() < n {
		return domain.ErrCapacityExceeded
	}
	return fmt.Errorf("%w: slot %d version %d", domain.ErrWriteConflict, slotID, slot.Version)
}

func reserveResource(ctx context.Context, units *repository.UnitRepository, bookings *repository.BookingRepository, c Claim) error {
	res, err := units.GetResourceForUpdate(ctx, c.Unit.ID)
	if err != nil {
		return err
	}
	if !res.IsActive || res.Status != domain.UnitAvailable {
		return domain.ErrBlocked
	}

	used, err := bookings.PeakActiveParticipants(ctx, res.ID, c.Window)
	if err != nil {
		return err
	}
	if used+c.Participants > res.Capacity {
		return domain.ErrCapacityExceeded
	}

	ok, err := units.BumpResourceVersion(ctx, res.ID, res.Version)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: resource %d version %d", domain.ErrWriteConflict, res.ID, res.Version)
	}
	return nil
}

func releaseResource(ctx context.Context, units *repository.UnitRepository, bookings *repository.BookingRepository, c Claim) error {
	res, err := units.GetResourceForUpdate(ctx, c.Unit.ID)
	if err != nil {
		return err
	}

	used, err := bookings.PeakActiveParticipants(ctx, res.ID, c.Window)
	if err != nil {
		return err
	}
	if used < c.Participants {
		return fmt.Errorf("%w: resource %d", domain.ErrNotReserved, res.ID)
	}

	ok, err := units.BumpResourceVersion(ctx, res.ID, res.Version)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: resource %d version %d", domain.ErrWriteConflict, res.ID, res.Version)
	}
	return nil
}
