package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"credentia/internal/audit"
	"credentia/internal/authz"
	"credentia/internal/bologna"
	"credentia/internal/credential"
	"credentia/internal/institution"
	"credentia/internal/jwtauth"
	"credentia/internal/notify"
	"credentia/internal/platform/config"
	"credentia/internal/platform/httpserver"
	"credentia/internal/platform/logger"
	"credentia/internal/platform/metrics"
	"credentia/internal/platform/postgres"
	redisclient "credentia/internal/platform/redis"
	"credentia/internal/policy"
	httptransport "credentia/internal/transport/http"
	"credentia/migrations"
	id "credentia/pkg/domain"
	"credentia/pkg/platform/tx"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages. Stores degrade gracefully:
// without DATABASE_URL everything runs in memory, without REDIS_URL the
// verification cache is off, without KAFKA_BROKERS events only hit the log.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	owner, err := id.ParsePrincipal(cfg.Owner)
	if err != nil {
		log.Error("invalid owner principal", "error", err)
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Apply(context.Background(), db); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	rdb, err := redisclient.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New()

	// Event pipeline: buffered dispatcher draining to Kafka when brokers are
	// configured, the log otherwise.
	var sink notify.Sink = notify.NewLogSink(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	dispatcher := notify.NewDispatcher(sink, 256, log, notify.WithDropCounter(m.IncrementNotificationsDropped))

	var (
		authzStore  authz.Store       = authz.NewInMemoryStore()
		instStore   institution.Store = institution.NewInMemoryStore()
		credStore   credential.Store  = credential.NewInMemoryStore()
		bolognaStor bologna.Store     = bologna.NewInMemoryStore()
		policyStore policy.Store      = policy.NewInMemoryStore()
		auditStore  audit.Store       = audit.NewInMemoryStore()
		runner      tx.Runner         = tx.NopRunner{}
	)
	if db != nil {
		authzStore = authz.NewPostgres(db)
		instStore = institution.NewPostgres(db)
		credStore = credential.NewPostgres(db)
		bolognaStor = bologna.NewPostgres(db)
		policyStore = policy.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		runner = tx.NewSQLRunner(db)
	}

	authzSvc := authz.NewService(owner, authzStore, dispatcher)
	instSvc := institution.NewService(instStore, authzSvc, dispatcher)

	credOpts := []credential.Option{credential.WithMetrics(m)}
	if rdb != nil {
		credOpts = append(credOpts, credential.WithCache(
			credential.NewRedisVerificationCache(rdb.Client, config.VerificationCacheTTL)))
	}
	credSvc := credential.NewService(credStore, instStore, authzSvc, dispatcher, credOpts...)
	bolognaSvc := bologna.NewService(bolognaStor, credStore, authzSvc, dispatcher)
	policySvc := policy.NewService(policyStore, instStore, authzSvc, dispatcher, policy.WithMetrics(m))
	auditSvc := audit.NewService(auditStore, instStore, authzSvc, dispatcher, runner, audit.WithMetrics(m))

	tokens := jwtauth.NewService(cfg.JWTSigningKey, "credentia")
	router := httptransport.NewRouter(httptransport.Services{
		Authz:        authzSvc,
		Institutions: instSvc,
		Credentials:  credSvc,
		Bologna:      bolognaSvc,
		Policies:     policySvc,
		Audits:       auditSvc,
	}, tokens, log)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		log.Info("starting ledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpserver.Shutdown(srv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
