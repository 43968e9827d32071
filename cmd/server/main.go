package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sentra/internal/classify"
	"sentra/internal/ledger"
	memorystore "sentra/internal/ledger/store/memory"
	postgresstore "sentra/internal/ledger/store/postgres"
	"sentra/internal/pipeline"
	pipelinecache "sentra/internal/pipeline/cache"
	pipelinemetrics "sentra/internal/pipeline/metrics"
	"sentra/internal/platform/config"
	"sentra/internal/platform/httpserver"
	"sentra/internal/platform/logger"
	platformredis "sentra/internal/platform/redis"
	"sentra/internal/sanitize"
	"sentra/internal/syncrelay"
	httptransport "sentra/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger store: postgres when configured, in-memory otherwise.
	var store ledger.Store
	if cfg.PostgresDSN != "" {
		db, err := postgresstore.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			return err
		}
		defer db.Close()

		pg := postgresstore.New(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrate audit schema", "error", err)
			return err
		}
		store = pg
		log.Info("audit store ready", "backend", "postgres")
	} else {
		store = memorystore.New()
		log.Warn("no postgres DSN configured, audit trail is in-memory only")
	}

	// Optional decision cache.
	var cache *pipelinecache.Cache
	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, decision cache disabled", "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		cache = pipelinecache.New(rdb.Client, cfg.Redis.DecisionTTL, log)
		log.Info("decision cache ready")
	}

	// Optional Kafka mirror for downstream analytics.
	var mirror *syncrelay.Mirror
	if len(cfg.Kafka.Brokers) > 0 {
		mirror, err = syncrelay.NewMirror(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Warn("kafka mirror unavailable, continuing without it", "error", err)
			mirror = nil
		} else {
			defer mirror.Close()
			log.Info("audit mirror ready", "topic", cfg.Kafka.Topic)
		}
	}

	remote := syncrelay.NewHTTPClient(cfg.Compliance.BaseURL, cfg.Compliance.Timeout)
	relay := syncrelay.New(store, remote,
		syncrelay.WithLogger(log),
		syncrelay.WithMetrics(syncrelay.NewMetrics()),
	)
	if cfg.Compliance.BaseURL == "" {
		log.Warn("no compliance store URL configured, sync attempts will fail until one is set")
	}

	led := ledger.New(store,
		ledger.WithLogger(log),
		ledger.WithCommitHook(func(event ledger.Event) {
			relay.Enqueue(event)
			if mirror != nil {
				mirror.Publish(ctx, event)
			}
		}),
	)

	tiers := []pipeline.Tier{
		pipeline.NewCapabilityTier(ledger.MethodAcceleratedLocal,
			pipeline.NewRuntimeCapability(cfg.Runtime.AcceleratedURL, cfg.Runtime.Model, cfg.Runtime.Timeout)),
		pipeline.NewCapabilityTier(ledger.MethodCPUFallback,
			pipeline.NewRuntimeCapability(cfg.Runtime.CPUURL, cfg.Runtime.Model, cfg.Runtime.Timeout)),
	}

	orchestrator := pipeline.New(led, classify.New(),
		sanitize.New(sanitize.WithConfidentialTerms(cfg.ConfidentialTerms)),
		tiers,
		pipeline.WithCache(cache),
		pipeline.WithMetrics(pipelinemetrics.New()),
		pipeline.WithLogger(log),
	)
	if err := orchestrator.Start(ctx); err != nil {
		log.Error("pipeline startup failed", "error", err)
		return err
	}
	log.Info("pipeline running", "mode", orchestrator.Mode())

	handler := httptransport.NewHandler(orchestrator, led, relay)
	router := httptransport.NewRouter(handler, []byte(cfg.JWTSigningKey), log)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return relay.Run(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Compliance.RetryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				n, err := relay.RetryFailedSyncs(ctx)
				if err != nil {
					log.Error("periodic sync retry failed", "error", err)
					continue
				}
				if n > 0 {
					log.Info("requeued failed syncs", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}
