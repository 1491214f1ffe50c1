// Command notifier consumes reservation events from RabbitMQ and appends
// one notification line per event to <NOTIFIER_LOG_DIR>/reservations.log.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/achtaA-a/projet-de-fin/internal/logger"
	"github.com/achtaA-a/projet-de-fin/internal/queue"
)

func main() {
	_ = godotenv.Load()
	log := logger.NewLogger(os.Getenv("APP_ENV"))
	defer log.Sync()

	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	if url == "" {
		log.Fatal("missing required env var: RABBITMQ_URL")
	}
	dir := os.Getenv("NOTIFIER_LOG_DIR")
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal("cannot create log directory", "dir", dir, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started", "queue", queue.QueueName, "dir", dir)
	if err := queue.NewConsumer(url, dir, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("consumer stopped", "error", err)
	}
	log.Info("notifier stopped")
}
