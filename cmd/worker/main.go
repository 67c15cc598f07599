package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kintai/internal/attendance/aggregator"
	"kintai/internal/attendance/normalizer"
	dailystore "kintai/internal/attendance/store/daily"
	summarystore "kintai/internal/attendance/store/summary"
	"kintai/internal/batch"
	"kintai/internal/batch/queue"
	"kintai/internal/batch/source"
	"kintai/internal/compliance/detector"
	violationstore "kintai/internal/compliance/store/violation"
	"kintai/internal/legal/resolver"
	rulestore "kintai/internal/legal/store/rule"
	"kintai/internal/platform/config"
	"kintai/internal/platform/httpserver"
	"kintai/internal/platform/logger"
	"kintai/internal/platform/metrics"
	platformredis "kintai/internal/platform/redis"
)

// main wires the attendance pipeline worker: stores, rule resolution, the
// batch runner, the Kafka trigger consumer and the ops HTTP surface. Business
// logic lives in the internal packages; main only assembles them.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			fatal(log, "open postgres", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			fatal(log, "ping postgres", err)
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		fatal(log, "connect redis", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	runner, err := buildRunner(db, redisClient, cfg, log, m)
	if err != nil {
		fatal(log, "build runner", err)
	}

	var consumer *queue.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		opts := []queue.ConsumerOption{queue.WithConsumerLogger(log)}
		if redisClient != nil {
			opts = append(opts, queue.WithDeduper(queue.NewRedisDeduper(redisClient.Client), 24*time.Hour))
		}
		consumer, err = queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, runner, opts...)
		if err != nil {
			fatal(log, "create kafka consumer", err)
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorContext(ctx, "consumer stopped", "error", err)
				stop()
			}
		}()
		log.InfoContext(ctx, "consuming recompute triggers",
			"topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
	} else {
		log.WarnContext(ctx, "no kafka brokers configured; worker is idle")
	}

	srv := httpserver.New(cfg.OpsAddr, opsRouter(db, redisClient))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "ops server error", "error", err)
			stop()
		}
	}()
	log.InfoContext(ctx, "worker started", "ops_addr", cfg.OpsAddr)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("ops server shutdown failed", "error", err)
	}
}

// buildRunner selects Postgres-backed stores and sources when a database is
// configured, memory variants otherwise (local runs and smoke tests).
func buildRunner(db *sql.DB, redisClient *platformredis.Client, cfg config.Worker, log *slog.Logger, m *metrics.Metrics) (*batch.Runner, error) {
	deps := batch.Deps{}
	opts := []batch.Option{
		batch.WithLogger(log),
		batch.WithMetrics(m),
		batch.WithParallelism(cfg.Parallelism),
	}

	var (
		dailyDeps   aggregator.DailyStore
		summaryDeps aggregator.SummaryStore
		ruleStore   resolver.Store
	)
	if db != nil {
		daily := dailystore.NewPostgres(db)
		deps.Daily = daily
		dailyDeps = daily
		summaryDeps = summarystore.NewPostgres(db)
		deps.Reports = violationstore.NewPostgres(db)
		ruleStore = rulestore.NewPostgres(db)

		deps.Stamps = source.NewPostgresStamps(db)
		deps.Schedules = source.NewPostgresSchedules(db)
		deps.Periods = source.NewPostgresPeriods(db)
		deps.Roster = source.NewPostgresRoster(db)

		opts = append(opts, batch.WithTxStarter(db))
	} else {
		daily := dailystore.NewMemory()
		deps.Daily = daily
		dailyDeps = daily
		summaryDeps = summarystore.NewMemory()
		deps.Reports = violationstore.NewMemory()
		ruleStore = rulestore.NewMemory()

		deps.Stamps = source.NewMemoryStamps()
		deps.Schedules = source.NewMemorySchedules()
		deps.Periods = source.NewMemoryPeriods()
		deps.Roster = source.NewMemoryRoster()
	}

	agg, err := aggregator.New(dailyDeps, summaryDeps, aggregator.WithLogger(log))
	if err != nil {
		return nil, err
	}
	deps.Aggregator = agg
	deps.Normalizer = normalizer.New(normalizer.WithLogger(log), normalizer.WithGrace(cfg.StampGrace))
	deps.Detector = detector.New(detector.WithLogger(log))

	res, err := resolver.New(ruleStore, resolver.WithLogger(log))
	if err != nil {
		return nil, err
	}
	deps.Resolver = res
	if redisClient != nil {
		deps.Resolver = resolver.NewCached(res, redisClient.Client, cfg.RuleCacheTTL,
			resolver.WithCacheLogger(log),
			resolver.WithCacheMetrics(m),
		)
	}

	return batch.New(deps, opts...)
}

// opsRouter serves liveness, readiness and Prometheus metrics.
func opsRouter(db *sql.DB, redisClient *platformredis.Client) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			if err := db.PingContext(req.Context()); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(req.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
