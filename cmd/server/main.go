package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/config"
	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/httpapi"
	"github.com/chatorder/platform/internal/httpapi/handlers"
	"github.com/chatorder/platform/internal/logger"
	"github.com/chatorder/platform/internal/review"
	"github.com/chatorder/platform/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() { _ = log.Sync() }()

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	if err := convo.AutoMigrate(db); err != nil {
		log.Fatal("migrate conversations", zap.Error(err))
	}

	topo := broker.Topology{
		WorkQueue:    cfg.Rabbit.WorkQueue,
		ParkingQueue: cfg.Rabbit.ParkingQueue,
		DelayQueue:   cfg.Rabbit.DelayQueue,
		ReviewQueue:  cfg.Rabbit.ReviewQueue,
	}
	pub, err := broker.NewPublisher(cfg.Rabbit.URL, topo, cfg.Rabbit.MaxDelay)
	if err != nil {
		log.Fatal("connect broker", zap.Error(err))
	}
	defer pub.Close()

	repo := store.NewRepo(db)
	convos := convo.NewRepo(db)
	scheduler := review.NewScheduler(repo, pub, cfg.Review.DefaultDelay, log)

	h := handlers.NewHandler(pub, convos, repo, scheduler, log)
	router := httpapi.NewRouter(cfg, h, log)

	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
}
