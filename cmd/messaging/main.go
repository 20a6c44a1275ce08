package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/example/webhook-messaging/internal/api"
	"github.com/example/webhook-messaging/internal/clock"
	"github.com/example/webhook-messaging/internal/config"
	"github.com/example/webhook-messaging/internal/dispatch"
	"github.com/example/webhook-messaging/internal/logger"
	"github.com/example/webhook-messaging/internal/queue"
	"github.com/example/webhook-messaging/internal/scheduler"
	"github.com/example/webhook-messaging/internal/service"
	"github.com/example/webhook-messaging/internal/store"
)

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

	producer, err := queue.NewProducer(cfg.Queue.Brokers, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer producer.Close()

	jobs := queue.NewPublisher(producer, cfg.Queue.SendJobTopic, lg)

	clk := clock.System()
	dispatcher := dispatch.NewDispatcher(messageStore, jobs, clk, lg)
	messages := service.NewMessageService(messageStore, clk, lg)

	sched, err := scheduler.New(cfg.Dispatch.Interval, func(tickCtx context.Context) {
		count, err := dispatcher.DispatchPending(tickCtx, cfg.Dispatch.PendingLimit)
		if err != nil {
			lg.Error().Err(err).Msg("scheduled dispatch failed")
			return
		}
		lg.Info().Int("dispatched", count).Msg("scheduled dispatch completed")
	}, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to create scheduler")
	}

	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(sched, messages, dispatcher, cfg.Dispatch.PendingLimit, lg)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(lg, api.Router(handler, cfg.Auth.User, cfg.Auth.Pass)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info().Str("addr", cfg.Server.Address).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	lg.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("http shutdown failed")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(lg zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		lg.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
