package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bookingcore/internal/config"
	"bookingcore/internal/database"
	"bookingcore/internal/modules/rating"
	"bookingcore/internal/repository"
)

// One-shot rebuild of every business rating summary from approved reviews.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}

	db, err := database.Connect(cfg.Database.URL, database.PoolOptions{})
	if err != nil {
		logrus.WithError(err).Fatal("db connect failed")
	}

	agg := rating.NewAggregator(repository.NewReviewRepository(db), repository.NewRatingRepository(db), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	n, err := agg.ReconcileAll(ctx)
	if err != nil {
		logrus.WithError(err).WithField("businesses", n).Fatal("rating reconcile failed")
	}
	logrus.WithField("businesses", n).Info("rating reconcile completed")
}
