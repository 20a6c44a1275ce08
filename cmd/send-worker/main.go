package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/example/webhook-messaging/internal/cache"
	"github.com/example/webhook-messaging/internal/client"
	"github.com/example/webhook-messaging/internal/clock"
	"github.com/example/webhook-messaging/internal/config"
	"github.com/example/webhook-messaging/internal/delivery"
	"github.com/example/webhook-messaging/internal/logger"
	"github.com/example/webhook-messaging/internal/queue"
	"github.com/example/webhook-messaging/internal/store"
)

// maxJobBatch bounds how many queued jobs one paced pass may contain.
const maxJobBatch = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	lg, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.Database.PostgresURL)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	messageStore := store.NewPostgresMessageStore(pool, cfg.Database.MessagesTable)
	webhook := client.NewWebhookClient(cfg.Webhook.URL, cfg.Webhook.AuthKey)

	var sentCache cache.SentCache
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		sentCache = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	svc := delivery.NewService(messageStore, webhook, sentCache, clock.System(),
		cfg.Webhook.ContentMax, lg)

	consumer, err := queue.NewConsumer(cfg.Queue.Brokers, cfg.Queue.ConsumerGroup, maxJobBatch, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	defer consumer.Close()

	lg.Info().
		Str("topic", cfg.Queue.SendJobTopic).
		Str("group", cfg.Queue.ConsumerGroup).
		Msg("send worker consuming")

	err = consumer.Consume(ctx, cfg.Queue.SendJobTopic, svc.ProcessBatch)
	if err != nil && !errors.Is(err, context.Canceled) {
		lg.Fatal().Err(err).Msg("consumer stopped")
	}

	lg.Info().Msg("send worker stopped")
}
