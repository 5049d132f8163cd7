// Command audit-consumer drains the club events queue and appends each
// event as one line to a local log file.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/club-membership/internal/config"
	"github.com/iliyamo/club-membership/internal/queue"
)

func main() {
	_ = godotenv.Load()
	qc := config.LoadQueueConfig()

	c := queue.NewConsumer(qc.URL, qc.Queue)
	if p := os.Getenv("AUDIT_LOG_PATH"); p != "" {
		c.LogPath = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("audit-consumer: queue=%s log=%s", c.Queue, c.LogPath)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("audit-consumer: %v", err)
	}
	log.Info("audit-consumer: stopped")
}
