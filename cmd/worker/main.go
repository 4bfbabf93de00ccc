package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/config"
	"github.com/pustaka-labs/backend-pustaka/internal/notify"
	"github.com/pustaka-labs/backend-pustaka/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
	})

	mux := asynq.NewServeMux()
	mux.Handle(notify.TaskSendEmail, notify.HandleSendEmail(common.NopEmailSender{}, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}
