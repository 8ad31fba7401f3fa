package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	approvalauthority "rwaledger/internal/approval/authority"
	approvaldeadline "rwaledger/internal/approval/deadline"
	approvalhandler "rwaledger/internal/approval/handler"
	approvalmetrics "rwaledger/internal/approval/metrics"
	approvalservice "rwaledger/internal/approval/service"
	approvalstore "rwaledger/internal/approval/store"
	"rwaledger/internal/evolution/gate"
	evolutionhandler "rwaledger/internal/evolution/handler"
	evolutionmetrics "rwaledger/internal/evolution/metrics"
	evolutionmodels "rwaledger/internal/evolution/models"
	evolutionservice "rwaledger/internal/evolution/service"
	evolutionstore "rwaledger/internal/evolution/store"
	jwttoken "rwaledger/internal/jwt_token"
	"rwaledger/internal/platform/config"
	"rwaledger/internal/platform/httpserver"
	"rwaledger/internal/platform/kafka"
	kafkaconsumer "rwaledger/internal/platform/kafka/consumer"
	"rwaledger/internal/platform/logger"
	"rwaledger/internal/platform/metrics"
	"rwaledger/internal/platform/outbox"
	"rwaledger/internal/platform/postgres"
	"rwaledger/internal/platform/redis"
	httptransport "rwaledger/internal/transport/http"
	verificationadapters "rwaledger/internal/verification/adapters"
	verificationhandler "rwaledger/internal/verification/handler"
	verificationmetrics "rwaledger/internal/verification/metrics"
	verificationservice "rwaledger/internal/verification/service"
	verificationstore "rwaledger/internal/verification/store"
	verifierhandler "rwaledger/internal/verifier/handler"
	verifiermetrics "rwaledger/internal/verifier/metrics"
	verifiermodels "rwaledger/internal/verifier/models"
	"rwaledger/internal/verifier/seed"
	verifierservice "rwaledger/internal/verifier/service"
	verifierstore "rwaledger/internal/verifier/store"
	"rwaledger/internal/webhook/dispatcher"
	webhookhandler "rwaledger/internal/webhook/handler"
	webhookmetrics "rwaledger/internal/webhook/metrics"
	webhookservice "rwaledger/internal/webhook/service"
	webhookstore "rwaledger/internal/webhook/store"
	audit "rwaledger/pkg/platform/audit"
	auditconsumer "rwaledger/pkg/platform/audit/consumer"
	auditpublisher "rwaledger/pkg/platform/audit/publisher"
	auditmemory "rwaledger/pkg/platform/audit/store/memory"
	auditpg "rwaledger/pkg/platform/audit/store/postgres"
)

const auditBufferSize = 1024

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg, log); err != nil {
				log.Error("server stopped with error", "error", err)
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
}

// infra holds the optional backing services. Nil fields mean the in-memory
// fallback is in use.
type infra struct {
	db    *sql.DB
	redis *redis.Client
}

func (i *infra) Close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		in.db = db
		log.Info("postgres stores enabled")
	} else {
		log.Warn("database URL not set; using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.redis = rc
	return in, nil
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	m := metrics.New()
	reg := m.Registry()

	// audit
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if in.db != nil {
		auditStore = auditpg.New(in.db)
	}
	auditor := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithLogger(log),
		auditpublisher.WithMetrics(auditpublisher.NewMetrics(reg)),
		auditpublisher.WithAsyncBuffer(auditBufferSize),
	)
	defer auditor.Close()

	// webhooks
	var subs webhookservice.Store = webhookstore.NewInMemory()
	if in.db != nil {
		subs = webhookstore.NewPostgres(in.db)
	}
	webhooks, err := webhookservice.New(subs, webhookservice.WithLogger(log))
	if err != nil {
		return err
	}
	events, err := dispatcher.New(subs,
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(webhookmetrics.NewWithRegisterer(reg)),
		dispatcher.WithAuditPublisher(auditor),
		dispatcher.WithWorkers(cfg.Webhook.Workers),
		dispatcher.WithQueueSize(cfg.Webhook.QueueSize),
		dispatcher.WithTimeout(cfg.Webhook.Timeout),
		dispatcher.WithMaxRetries(cfg.Webhook.MaxRetries),
	)
	if err != nil {
		return err
	}

	// verifier registry
	var vStore verifierservice.Store = verifierstore.NewInMemory()
	if in.db != nil {
		vStore = verifierstore.NewPostgres(in.db)
	}
	vOpts := []verifierservice.Option{
		verifierservice.WithLogger(log),
		verifierservice.WithAuditPublisher(auditor),
		verifierservice.WithMetrics(verifiermetrics.NewWithRegisterer(reg)),
		verifierservice.WithReputationPolicy(verifiermodels.ReputationPolicy{
			Base:             cfg.Reputation.Base,
			Diligence:        cfg.Reputation.Diligence,
			Timeliness:       cfg.Reputation.Timeliness,
			MinSummaryLength: cfg.Reputation.MinSummaryLength,
			TimelinessWindow: cfg.Reputation.TimelinessWindow,
		}),
	}
	if in.redis != nil {
		vOpts = append(vOpts, verifierservice.WithLeaderboard(verifierstore.NewRedisLeaderboard(in.redis.Client)))
	}
	verifiers := verifierservice.New(vStore, vOpts...)
	if cfg.Verifier.SeedFile != "" {
		catalogue, err := seed.LoadFile(cfg.Verifier.SeedFile)
		if err != nil {
			return err
		}
		n, err := seed.Apply(ctx, verifiers, catalogue)
		if err != nil {
			return fmt.Errorf("seed verifiers: %w", err)
		}
		log.Info("verifier catalogue applied", "created", n)
	}

	// approvals
	directory, err := loadAuthority(cfg.Approval)
	if err != nil {
		return err
	}
	var aStore approvalservice.Store = approvalstore.NewInMemory()
	aOpts := []approvalservice.Option{
		approvalservice.WithLogger(log),
		approvalservice.WithAuditPublisher(auditor),
		approvalservice.WithMetrics(approvalmetrics.NewWithRegisterer(reg)),
		approvalservice.WithEventPublisher(events),
		approvalservice.WithVotingWindow(cfg.Approval.VotingWindow),
	}
	if in.db != nil {
		aStore = approvalstore.NewPostgres(in.db)
		aOpts = append(aOpts, approvalservice.WithTx(newApprovalPostgresTx(in.db)))
	}
	if in.redis != nil {
		aOpts = append(aOpts, approvalservice.WithDeadlineIndex(approvaldeadline.NewRedisIndex(in.redis.Client)))
	}
	approvals, err := approvalservice.New(aStore, directory, aOpts...)
	if err != nil {
		return err
	}

	// verification requests
	var rStore verificationservice.Store = verificationstore.NewInMemory()
	if in.db != nil {
		rStore = verificationstore.NewPostgres(in.db)
	}
	assigner := verificationadapters.NewVerifierAdapter(verifiers)
	verifications, err := verificationservice.New(rStore, assigner, assigner,
		verificationservice.WithLogger(log),
		verificationservice.WithAuditPublisher(auditor),
		verificationservice.WithMetrics(verificationmetrics.NewWithRegisterer(reg)),
		verificationservice.WithNotifier(verificationadapters.NewWebhookNotifier(events)),
	)
	if err != nil {
		return err
	}
	defer verifications.Wait()

	// evolution
	mode, err := evolutionmodels.ParseVerificationMode(cfg.Evolution.DefaultMode)
	if err != nil {
		return err
	}
	var cStore evolutionservice.Store = evolutionstore.NewInMemory()
	if in.db != nil {
		cStore = evolutionstore.NewPostgres(in.db)
	}
	chains, err := evolutionservice.New(cStore,
		gate.New(mode, gate.WithApprovals(approvals), gate.WithVerifications(verifications)),
		evolutionservice.WithLogger(log),
		evolutionservice.WithAuditPublisher(auditor),
		evolutionservice.WithMetrics(evolutionmetrics.NewWithRegisterer(reg)),
		evolutionservice.WithEventPublisher(events),
		evolutionservice.WithMaxValuationDelta(cfg.Evolution.MaxValuationDelta),
	)
	if err != nil {
		return err
	}

	// http
	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	verifierRoutes := verifierhandler.New(verifiers, log)
	chainRoutes := evolutionhandler.New(chains, log)
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        m,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		AdminToken:     cfg.Auth.AdminToken,
		RequestTimeout: cfg.Server.RequestTimeout,
		API: []httptransport.Routes{
			verifierRoutes,
			verificationhandler.New(verifications, log),
			approvalhandler.New(approvals, log),
			chainRoutes,
		},
		Admin: []httptransport.AdminRoutes{
			verifierRoutes,
			chainRoutes,
			webhookhandler.New(webhooks, log),
		},
		Health: healthChecks(in),
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rwaledger", "addr", srv.Addr(), "version", version)
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return events.Run(gctx)
	})
	g.Go(func() error {
		approvals.RunSweeper(gctx, cfg.Approval.SweepInterval)
		return nil
	})
	if cfg.Kafka.Enabled() && in.db != nil {
		if err := startAuditPipeline(gctx, g, cfg.Kafka, in.db, log); err != nil {
			return err
		}
	}
	return g.Wait()
}

// startAuditPipeline relays the audit outbox to Kafka and materializes the
// topic back into audit_events.
func startAuditPipeline(ctx context.Context, g *errgroup.Group, cfg config.Kafka, db *sql.DB, log *slog.Logger) error {
	kcfg := kafka.Config{Brokers: cfg.Brokers, ClientID: cfg.ClientID}
	if err := kafka.EnsureTopics(ctx, kcfg, 3, 1, cfg.AuditTopic); err != nil {
		return err
	}
	producer, err := kafka.NewProducer(kcfg)
	if err != nil {
		return err
	}
	relay := outbox.NewRelay(db, producer, cfg.AuditTopic, log, outbox.WithInterval(cfg.RelayInterval))
	g.Go(func() error {
		defer producer.Close()
		return ignoreCanceled(relay.Run(ctx))
	})

	router := auditconsumer.NewRouter(log).
		Register(cfg.AuditTopic, auditconsumer.NewMaterializer(auditpg.New(db), log))
	c, err := kafkaconsumer.New(kafkaconsumer.Config{
		Brokers:  cfg.Brokers,
		ClientID: cfg.ClientID,
		GroupID:  cfg.ConsumerGroup,
		Topics:   []string{cfg.AuditTopic},
	}, router, log)
	if err != nil {
		return err
	}
	g.Go(func() error {
		return ignoreCanceled(c.Run(ctx))
	})
	log.Info("audit pipeline started", "topic", cfg.AuditTopic, "brokers", cfg.Brokers)
	return nil
}

func loadAuthority(cfg config.Approval) (*approvalauthority.Directory, error) {
	if cfg.AuthorityFile != "" {
		return approvalauthority.LoadFile(cfg.AuthorityFile, cfg.Admins, cfg.Validators)
	}
	return approvalauthority.NewDirectory(cfg.Admins, cfg.Validators), nil
}

func healthChecks(in *infra) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
