package domain

import (
	"fmt"
	"time"
)

type UnitKind string

const (
	UnitService  UnitKind = "service"
	UnitResource UnitKind = "resource"
)

// UnitRef names the thing a booking draws capacity from. Service units are
// backed by availability slots; resource units carry their own capacity.
type UnitRef struct {
	Kind UnitKind `json:"kind"`
	ID   int64    `json:"id"`
}

func (u UnitRef) Key() string {
	return fmt.Sprintf("%s:%d", u.Kind, u.ID)
}

func (u UnitRef) String() string { return u.Key() }

type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitBlocked     UnitStatus = "blocked"
	UnitMaintenance UnitStatus = "maintenance"
)

// Slot is a time-bounded block of spots published for a service.
type Slot struct {
	ID            int64      `json:"id"`
	ServiceID     int64      `json:"service_id"`
	StartAt       time.Time  `json:"start_at"`
	EndAt         time.Time  `json:"end_at"`
	TotalSpots    int        `json:"total_spots"`
	ReservedSpots int        `json:"reserved_spots"`
	Status        UnitStatus `json:"status"`
	Version       int64      `json:"version"`
}

func (s *Slot) Window() TimeWindow {
	return TimeWindow{Start: s.StartAt, End: s.EndAt}
}

func (s *Slot) Remaining() int {
	return s.TotalSpots - s.ReservedSpots
}

// Resource is a discrete bookable thing (a room, a court, a chair).
// Capacity 1 makes it exclusive.
type Resource struct {
	ID           int64      `json:"id"`
	BusinessID   int64      `json:"business_id"`
	Name         string     `json:"name"`
	ResourceType string     `json:"resource_type"`
	Capacity     int        `json:"capacity"`
	Status       UnitStatus `json:"status"`
	IsActive     bool       `json:"is_active"`
	Version      int64      `json:"version"`
}

// Service is the catalog entry service-slot bookings hang off.
type Service struct {
	ID          int64   `json:"id"`
	BusinessID  int64   `json:"business_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	MaxCapacity int     `json:"max_capacity"`
	IsActive    bool    `json:"is_active"`
}

// UnitDefinition is what the catalog tells the booking core about a unit.
type UnitDefinition struct {
	Unit        UnitRef
	BusinessID  int64
	MaxCapacity int
	Price       float64
	Active      bool
}
