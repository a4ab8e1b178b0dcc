package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/news-curator/internal/bootstrap"
	"github.com/kirillkom/news-curator/internal/config"
	"github.com/kirillkom/news-curator/internal/core/domain"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.PipelineMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker subscribed to %s", cfg.NATSCandidatesSubject)
	err = app.Queue.SubscribeCandidateBatches(ctx, func(handlerCtx context.Context, articles []domain.Article) error {
		batchCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		result, err := app.PipelineUC.RunBatch(batchCtx, articles)
		if err != nil {
			return err
		}
		if len(result.Accepted) == 0 {
			return nil
		}
		return app.Queue.PublishAccepted(batchCtx, result)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
