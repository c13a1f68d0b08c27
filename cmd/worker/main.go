package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/catalog"
	"github.com/chatorder/platform/internal/channel"
	"github.com/chatorder/platform/internal/completion"
	"github.com/chatorder/platform/internal/config"
	"github.com/chatorder/platform/internal/contextwin"
	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/dedup"
	"github.com/chatorder/platform/internal/gate"
	"github.com/chatorder/platform/internal/logger"
	"github.com/chatorder/platform/internal/loop"
	"github.com/chatorder/platform/internal/pipeline"
	"github.com/chatorder/platform/internal/store"
	"github.com/chatorder/platform/internal/tools"
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
	repo := store.NewRepo(db)
	convos := convo.NewRepo(db)

	rds := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rds.Close()
	dedupStore := dedup.NewRedisStore(rds, "")

	// Completion providers, routed per tenant.
	registry := completion.NewRegistry()
	registry.Register("openai", func(ctx context.Context, model string) (completion.Provider, error) {
		if model == "" {
			model = cfg.Completion.DefaultModel
		}
		return completion.NewOpenAIProvider(cfg.Completion.BaseURL, cfg.Completion.APIKey, model, cfg.Completion.Timeout), nil
	})

	summaryProvider := completion.NewOpenAIProvider(
		cfg.Completion.BaseURL, cfg.Completion.APIKey, cfg.Completion.SummaryModel, cfg.Completion.Timeout)
	window := contextwin.NewManager(convos, contextwin.NewCompletionSummarizer(summaryProvider),
		cfg.Pipeline.TokenCeiling, cfg.Pipeline.KeepRecent, log)

	toolRegistry := tools.NewRegistry(tools.Deps{
		Catalog: catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey),
		Store:   repo,
		Log:     log,
	})

	convoLoop := loop.New(window, registry, toolRegistry,
		cfg.Pipeline.MaxIterations, cfg.Pipeline.ToolTimeout, log)

	p := pipeline.New(
		pipeline.Options{QuietPeriod: cfg.Pipeline.QuietPeriod, DedupTTL: cfg.Pipeline.DedupTTL},
		dedupStore,
		gate.New(repo, log),
		convoLoop,
		convos,
		channel.NewHTTPSender(cfg.Channel.BaseURL),
		log,
	)

	topo := broker.Topology{
		WorkQueue:    cfg.Rabbit.WorkQueue,
		ParkingQueue: cfg.Rabbit.ParkingQueue,
		DelayQueue:   cfg.Rabbit.DelayQueue,
		ReviewQueue:  cfg.Rabbit.ReviewQueue,
	}
	consumer, err := broker.NewConsumer(cfg.Rabbit.URL, topo, cfg.Rabbit.WorkQueue, cfg.Rabbit.Concurrency, log)
	if err != nil {
		log.Fatal("connect broker", zap.Error(err))
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started",
		zap.String("queue", cfg.Rabbit.WorkQueue),
		zap.Int("concurrency", cfg.Rabbit.Concurrency))

	if err := consumer.Run(ctx, p.HandleEnvelope); err != nil {
		log.Error("consumer stopped", zap.Error(err))
	}

	// Let in-flight quiet periods and drains finish before exiting.
	p.Close()
	log.Info("worker stopped")
}
