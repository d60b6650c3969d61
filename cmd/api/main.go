package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"bookingcore/internal/app"
	"bookingcore/internal/config"
	"bookingcore/internal/database"
	"bookingcore/internal/modules/booking"
	"bookingcore/internal/pkg/cache"
	"bookingcore/internal/pkg/events"
	"bookingcore/internal/pkg/logging"
	"bookingcore/internal/pkg/obs"
	"bookingcore/internal/repository"
	"bookingcore/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.IsProdLike())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracerOptions{
		ServiceName: cfg.Otel.ServiceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Env,
		Endpoint:    cfg.Otel.Endpoint,
	})
	if err != nil {
		logrus.WithError(err).Fatal("tracer init failed")
	}

	db, err := database.Connect(cfg.Database.URL, database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logrus.WithError(err).Fatal("database connect failed")
	}
	if cfg.Database.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			logrus.WithError(err).Fatal("auto migrate failed")
		}
	}

	rdb := cache.NewRedisClient(cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var payments booking.PaymentSignaler = events.NopPaymentSignal{}
	var publisher *events.Publisher
	if cfg.RabbitMQ.URL != "" {
		publisher, err = events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logrus.WithError(err).Warn("rabbitmq unavailable, completion events disabled")
		} else {
			payments = events.NewPaymentSignal(publisher)
		}
	}

	a := app.New(app.Deps{DB: db, Config: cfg, Redis: rdb, Payments: payments})

	var reconciler *worker.Scheduler
	if cfg.Rating.ReconcileInterval > 0 {
		reconciler, err = worker.NewRatingReconciler(a.Aggregator, cfg.Rating.ReconcileInterval)
		if err != nil {
			logrus.WithError(err).Fatal("rating reconciler init failed")
		}
		reconciler.Start()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("http server shutdown")
	}
	if reconciler != nil {
		if err := reconciler.Shutdown(); err != nil {
			logrus.WithError(err).Error("rating reconciler shutdown")
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Error("rabbitmq close")
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logrus.WithError(err).Error("tracer shutdown")
	}
}
