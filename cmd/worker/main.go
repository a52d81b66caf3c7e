package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"smartattend/internal/accounts"
	"smartattend/internal/config"
	"smartattend/internal/outbox"
	"smartattend/internal/queue"
	"smartattend/internal/store"
)

// Worker consumes confirmation events and writes report files to the outbox.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	be, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
	})
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer be.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		log.Println("WARNING: memory queue only sees events published in this process")
		q = queue.NewInMemory(64)
	} else {
		redisClient := be.Redis
		if redisClient == nil {
			redisClient = store.NewRedis(cfg.RedisAddr, cfg.RedisPrefix)
		}
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultRedisKey)
	}

	acc := accounts.NewService(be)
	out := &outbox.Writer{
		Dir:       cfg.OutboxDir,
		Recipient: cfg.ReportRecipient,
		Language:  acc.Language,
	}

	log.Println("worker started, waiting for messages...")
	if err := out.Run(ctx, q); err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker stopped")
}
