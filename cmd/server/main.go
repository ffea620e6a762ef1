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

	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"

	"credrelay/internal/holder"
	"credrelay/internal/issuer"
	"credrelay/internal/keys"
	"credrelay/internal/platform/config"
	"credrelay/internal/platform/httpserver"
	"credrelay/internal/platform/logger"
	"credrelay/internal/platform/metrics"
	platformredis "credrelay/internal/platform/redis"
	"credrelay/internal/registry"
	"credrelay/internal/storage"
	httptransport "credrelay/internal/transport/http"
	"credrelay/internal/verifier"
	"credrelay/pkg/platform/audit/publisher"
	auditmemory "credrelay/pkg/platform/audit/store/memory"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Protocol logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuerKeys, err := keys.LoadOrGenerate(cfg.IssuerKeyHex)
	if err != nil {
		return err
	}
	holderKeys, err := keys.LoadOrGenerate(cfg.HolderKeyHex)
	if err != nil {
		return err
	}

	var ledgerOpts []registry.LedgerOption
	if cfg.RegistryLatency > 0 {
		ledgerOpts = append(ledgerOpts, registry.WithLatency(cfg.RegistryLatency))
	}
	ledger := registry.NewLedger(issuerKeys.Address(), ledgerOpts...)

	creds, requests, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	auditPub, auditCleanup, err := buildAuditPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer auditCleanup()

	m := metrics.New()

	iss, err := issuer.New(issuerKeys, ledger, ledger,
		issuer.WithLogger(log),
		issuer.WithAuditPublisher(auditPub),
		issuer.WithMetrics(m))
	if err != nil {
		return err
	}
	if err := iss.EnsureRegistered(ctx); err != nil {
		return err
	}

	hold, err := holder.New(holderKeys, ledger, creds, requests,
		holder.WithLogger(log),
		holder.WithAuditPublisher(auditPub),
		holder.WithMetrics(m))
	if err != nil {
		return err
	}

	ver, err := verifier.New(ledger,
		verifier.WithLogger(log),
		verifier.WithAuditPublisher(auditPub),
		verifier.WithMetrics(m))
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(log,
		httptransport.NewIssuerHandler(iss),
		httptransport.NewWalletHandler(hold),
		httptransport.NewVerifierHandler(ver))
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting credrelay",
		"addr", cfg.Addr,
		"store", cfg.StoreBackend,
		"issuer", iss.ID(),
		"holder", hold.ID())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return httpserver.Shutdown(srv, 10*time.Second)
	})
	return g.Wait()
}

func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (storage.CredentialStore, storage.RequestStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("using redis store", "addr", cfg.RedisAddr)
		cleanup := func() { _ = client.Close() }
		return storage.NewRedisCredentialStore(client.Client), storage.NewRedisRequestStore(client.Client), cleanup, nil

	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := storage.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		log.Info("using postgres store")
		cleanup := func() { _ = db.Close() }
		return storage.NewPostgresCredentialStore(db), storage.NewPostgresRequestStore(db), cleanup, nil

	default:
		log.Info("using in-memory store")
		return storage.NewInMemoryCredentialStore(), storage.NewInMemoryRequestStore(), func() {}, nil
	}
}

func buildAuditPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (*publisher.Publisher, func(), error) {
	opts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(256),
	}
	var sink *publisher.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		topic := cfg.AuditTopic
		if topic == "" {
			topic = publisher.DefaultTopic
		}
		var err error
		sink, err = publisher.NewKafkaSink(ctx, cfg.KafkaBrokers, topic)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, publisher.WithSink(sink))
		log.Info("audit trail mirrored to kafka", "brokers", cfg.KafkaBrokers, "topic", topic)
	}

	pub := publisher.NewPublisher(auditmemory.NewStore(), opts...)
	cleanup := func() {
		pub.Close()
		if sink != nil {
			sink.Close()
		}
	}
	return pub, cleanup, nil
}
