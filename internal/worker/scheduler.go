package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Reconciler is implemented by the rating aggregator.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

type Scheduler struct {
	sched gocron.Scheduler
}

// NewRatingReconciler runs ReconcileAll every interval, starting right away.
// A run that overlaps the next tick is skipped rather than stacked.
func NewRatingReconciler(r Reconciler, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be > 0, got %s", interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			reconcileOnce(ctx, r)
		}),
		gocron.WithName("rating-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("register rating job: %w", err)
	}

	return &Scheduler{sched: sched}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func reconcileOnce(ctx context.Context, r Reconciler) {
	start := time.Now()
	n, err := r.ReconcileAll(ctx)
	entry := logrus.WithFields(logrus.Fields{
		"job":        "rating-reconcile",
		"businesses": n,
		"took":       time.Since(start).String(),
	})
	if err != nil {
		entry.WithField("error", err.Error()).Error("reconcile finished with errors")
		return
	}
	entry.Info("reconcile finished")
}
