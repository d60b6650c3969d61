package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"bookingcore/internal/config"
	"bookingcore/internal/database"
	"bookingcore/internal/domain"
	"bookingcore/internal/repository"
)

const demoBusiness int64 = 1

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}
	if cfg.IsProdLike() {
		logrus.Fatal("refusing to seed a production database")
	}

	db, err := database.Connect(cfg.Database.URL, database.PoolOptions{})
	if err != nil {
		logrus.WithError(err).Fatal("db connect failed")
	}

	logrus.Info("running auto migrate")
	if err := repository.AutoMigrate(db); err != nil {
		logrus.WithError(err).Fatal("auto migrate failed")
	}

	// Cleanup old data, children first.
	for _, table := range []string{
		"rating_summaries", "reviews", "booking_history", "bookings",
		"blocking_windows", "availability_slots", "resources", "services", "users",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			logrus.WithError(err).WithField("table", table).Fatal("cleanup failed")
		}
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	units := repository.NewUnitRepository(db)

	for _, u := range []domain.User{
		{Email: "admin@bookingcore.local", Role: domain.RoleAdmin, Status: domain.UserActive},
		{Email: "desk@bookingcore.local", Role: domain.RoleStaff, Status: domain.UserActive},
		{Email: "ana@example.com", Role: domain.RoleCustomer, Status: domain.UserActive},
		{Email: "ben@example.com", Role: domain.RoleCustomer, Status: domain.UserActive},
	} {
		if err := users.Create(ctx, &u); err != nil {
			logrus.WithError(err).Fatal("create user failed")
		}
		logrus.WithFields(logrus.Fields{"id": u.ID, "email": u.Email, "role": u.Role}).Info("user created")
	}

	yoga := &domain.Service{BusinessID: demoBusiness, Name: "Morning yoga", Price: 15, MaxCapacity: 12, IsActive: true}
	if err := units.CreateService(ctx, yoga); err != nil {
		logrus.WithError(err).Fatal("create service failed")
	}

	// A week of 07:00 classes starting tomorrow.
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	for i := 0; i < 7; i++ {
		start := day.AddDate(0, 0, i).Add(7 * time.Hour)
		slot := &domain.Slot{ServiceID: yoga.ID, StartAt: start, EndAt: start.Add(time.Hour), TotalSpots: yoga.MaxCapacity}
		if err := units.CreateSlot(ctx, slot); err != nil {
			logrus.WithError(err).Fatal("create slot failed")
		}
	}

	for i, capacity := range []int{1, 1, 4} {
		res := &domain.Resource{
			BusinessID:   demoBusiness,
			Name:         fmt.Sprintf("Court %d", i+1),
			ResourceType: "court",
			Capacity:     capacity,
			IsActive:     true,
		}
		if err := units.CreateResource(ctx, res); err != nil {
			logrus.WithError(err).Fatal("create resource failed")
		}
	}

	logrus.WithFields(logrus.Fields{"service_id": yoga.ID, "slots": 7, "resources": 3}).Info("seed completed")
}
