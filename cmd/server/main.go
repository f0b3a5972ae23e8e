package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gnce/internal/kpi"
	"gnce/internal/kpi/cache"
	"gnce/internal/ledger"
	ledgerpg "gnce/internal/ledger/store/postgres"
	"gnce/internal/pipeline"
	"gnce/internal/platform/config"
	"gnce/internal/platform/httpserver"
	"gnce/internal/platform/kafka/consumer"
	"gnce/internal/platform/kafka/producer"
	"gnce/internal/platform/logger"
	"gnce/internal/platform/metrics"
	"gnce/internal/platform/redis"
	"gnce/internal/runlog"
	runlogpg "gnce/internal/runlog/store/postgres"
	"gnce/internal/signing"
	httptransport "gnce/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Pipeline logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	keys, err := buildKeys(cfg)
	if err != nil {
		log.Error("signing key setup failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	var ledgerOpts []ledger.Option
	var runLogOpts []runlog.LogOption

	if cfg.PostgresDSN != "" {
		ledgerStore, err := ledgerpg.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("ledger store open failed", "error", err)
			os.Exit(1)
		}
		defer ledgerStore.Close()
		if err := ledgerStore.Migrate(ctx); err != nil {
			log.Error("ledger store migrate failed", "error", err)
			os.Exit(1)
		}
		ledgerOpts = append(ledgerOpts, ledger.WithStore(ledgerStore))

		runStore, err := runlogpg.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("run-event store open failed", "error", err)
			os.Exit(1)
		}
		defer runStore.Close()
		if err := runStore.Migrate(ctx); err != nil {
			log.Error("run-event store migrate failed", "error", err)
			os.Exit(1)
		}
		runLogOpts = append(runLogOpts, runlog.WithStore(runStore))
	}

	pub, err := producer.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, "gnce-server", log,
		producer.WithFailureHook(m.PublishFailures.Inc))
	if err != nil {
		log.Error("kafka producer setup failed", "error", err)
		os.Exit(1)
	}
	defer pub.Close()
	if pub.Enabled() {
		runLogOpts = append(runLogOpts, runlog.WithPublisher(pub))
	}

	chain := ledger.New(ledgerOpts...)
	runLog := runlog.NewLog(cfg.RunLogPath, runLogOpts...)
	defer runLog.Close()

	svc := pipeline.New(keys, chain, runLog, log,
		pipeline.WithMetrics(m),
		pipeline.WithRemoteSigner(signing.FromKeyStore(keys)),
	)

	handlerOpts := []httptransport.Option{httptransport.WithAuth(keys)}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		handlerOpts = append(handlerOpts,
			httptransport.WithKPICache(cache.New(redisClient, cfg.Redis.KPISnapTTL)))
	}

	var stream *kpi.StreamConsumer
	if len(cfg.Kafka.Brokers) > 0 {
		kc, err := consumer.New(ctx, consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, log)
		if err != nil {
			log.Error("kafka consumer setup failed", "error", err)
			os.Exit(1)
		}
		stream = kpi.NewStreamConsumer(kc, kpi.NewAggregator(), log)
		stream.Start(ctx)
		handlerOpts = append(handlerOpts, httptransport.WithAggregator(stream))
	}

	handler := httptransport.NewHandler(svc, chain, cfg.RunLogPath, log, handlerOpts...)
	router := httptransport.NewRouter(handler)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting gnce server", "addr", cfg.Addr,
		"postgres", cfg.PostgresDSN != "",
		"redis", redisClient != nil,
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if stream != nil {
		stream.Stop()
	}
}

// buildKeys derives the execution-token keystore from the configured master
// secret, or generates an ephemeral one for development.
func buildKeys(cfg config.Server) (*signing.KeyStore, error) {
	if cfg.SigningSecret != "" {
		return signing.DeriveKeyStore([]byte(cfg.SigningSecret), "execution-token")
	}
	return signing.NewKeyStore()
}
