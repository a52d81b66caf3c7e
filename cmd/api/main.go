package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartattend/internal/accounts"
	"smartattend/internal/advisory"
	"smartattend/internal/attendance"
	"smartattend/internal/config"
	"smartattend/internal/handler"
	"smartattend/internal/httpmiddleware"
	"smartattend/internal/metrics"
	"smartattend/internal/outbox"
	"smartattend/internal/queue"
	"smartattend/internal/registry"
	"smartattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func openQueue(cfg config.App, be *store.Backend) queue.Queue {
	if cfg.QueueBackend != "redis" {
		return queue.NewInMemory(64)
	}
	if be.Redis != nil {
		return queue.NewRedisQueue(be.Redis.Client, queue.DefaultRedisKey)
	}
	return queue.NewRedisQueue(store.NewRedis(cfg.RedisAddr, cfg.RedisPrefix).Client, queue.DefaultRedisKey)
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
	})
	if err != nil {
		return err
	}
	defer be.Close()
	log.Printf("store backend: %s", cfg.StoreBackend)

	q := openQueue(cfg, be)
	m := metrics.New(prometheus.DefaultRegisterer)
	reg := registry.New(be, registry.WithDelay(cfg.SyncDelay), registry.WithRetention(cfg.Retention))
	att := attendance.NewService(be, reg, attendance.WithPublisher(q), attendance.WithMetrics(m))
	acc := accounts.NewService(be)
	if cfg.QueueBackend != "redis" {
		// Nobody else can read a memory queue; deliver reports in-process.
		out := &outbox.Writer{Dir: cfg.OutboxDir, Recipient: cfg.ReportRecipient, Language: acc.Language}
		go func() {
			if err := out.Run(ctx, q); err != nil {
				log.Printf("outbox stopped: %v", err)
			}
		}()
	}
	adv := advisory.New(cfg.AdvisoryURL, cfg.AdvisoryAPIKey, cfg.AdvisoryModel, cfg.AdvisorySkip)

	h := handler.New(handler.Config{
		JWTIssuer:       cfg.JWTIssuer,
		JWTSigningKey:   cfg.JWTSigningKey,
		SessionTTL:      cfg.SessionTTL,
		ReportRecipient: cfg.ReportRecipient,
		Health:          be.Health,
	}, acc, att, reg, adv)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(r, httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
