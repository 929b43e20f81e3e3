package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/clients/cache"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/clients/kafka"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/clients/tg"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/config"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/logger"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/messages"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/storage"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/server"
	"github.com/Rx5v/catatan-pengeluaran-harian/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	conf, err := config.New()
	if err != nil {
		logger.Fatal("failed to init config:", zap.Error(err))
	}

	closer, err := tracing.Init()
	if err != nil {
		logger.Fatal("failed to init tracing:", zap.Error(err))
	}
	defer func() { _ = closer.Close() }()

	client, err := tg.New(conf.Telegram())
	if err != nil {
		logger.Fatal("failed to init client:", zap.Error(err))
	}
	if err = client.RegisterWebhook(conf.Telegram().WebhookURL()); err != nil {
		logger.Fatal("failed to register webhook:", zap.Error(err))
	}

	// the manager connects lazily: a cold start serves its first
	// delivery before the first connection attempt is made
	manager := storage.NewManager(conf.Postgres())
	defer manager.Close()
	store := storage.NewPostgresStorage(manager)

	msgService := messages.NewService(client, store, conf.App())

	if conf.Memcached().Enabled() {
		mc, err := cache.NewMemcache(conf.Memcached())
		if err != nil {
			logger.Fatal("failed to init memcache:", zap.Error(err))
		}
		msgService.WithReplyCache(mc)
	}

	if conf.Kafka().Enabled() {
		producer, err := kafka.NewProducer(conf.Kafka())
		if err != nil {
			logger.Fatal("failed to init kafka producer:", zap.Error(err))
		}
		defer producer.Close()
		msgService.WithEventPublisher(producer)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	srv := server.New(conf.Server(), msgService, manager)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
