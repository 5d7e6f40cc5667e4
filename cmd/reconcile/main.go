// Command reconcile applies a paid sales control to its owner's monthly quota,
// or reverts a previous application.
//
// Usage:
//
//	reconcile -tenant <uuid> -sales-control <uuid>            reconcile directly
//	reconcile -tenant <uuid> -sales-control <uuid> -undo      unreconcile
//	reconcile -tenant <uuid> -sales-control <uuid> -via-event publish SalesControlPaid instead
//	reconcile -tenant <uuid> -sales-control <uuid> -pay 2026-03-15T10:00:00Z
//	reconcile -automigrate                                    create or update the schema only
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appquota "github.com/crm/backend/internal/application/quota"
	appsales "github.com/crm/backend/internal/application/sales"
	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/sales"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/event"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	configPath     string
	tenantID       string
	salesControlID string
	undo           bool
	viaEvent       bool
	payAt          string
	autoMigrate    bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to a TOML config file (default: ./config.toml or /etc/crm/config.toml)")
	flag.StringVar(&o.tenantID, "tenant", "", "tenant UUID")
	flag.StringVar(&o.salesControlID, "sales-control", "", "sales control UUID")
	flag.BoolVar(&o.undo, "undo", false, "revert a previous reconciliation")
	flag.BoolVar(&o.viaEvent, "via-event", false, "publish SalesControlPaid through the event bus instead of calling the service")
	flag.StringVar(&o.payAt, "pay", "", "mark the sales control paid at this RFC 3339 time, then reconcile")
	flag.BoolVar(&o.autoMigrate, "automigrate", false, "create or update the schema before running")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logConfig(cfg))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error("reconcile failed", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *zap.Logger) error {
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracer provider: %w", err)
	}
	defer shutdown(log, "tracer provider", tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	defer shutdown(log, "meter provider", mp.Shutdown)

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init logger provider: %w", err)
	}
	defer shutdown(log, "logger provider", lp.Shutdown)
	if lp.IsEnabled() {
		logCfg := logConfig(cfg)
		logCfg.Cores = []zapcore.Core{lp.ZapCore(cfg.Telemetry.ServiceName, log.Core())}
		if log, err = logger.New(logCfg); err != nil {
			return fmt.Errorf("init exporting logger: %w", err)
		}
		defer logger.Sync(log)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        telemetry.DBSystemFor(db.DB.Dialector),
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			return fmt.Errorf("register db tracing: %w", err)
		}
	}

	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, mp, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		return fmt.Errorf("register db metrics: %w", err)
	}
	if dbMetrics != nil {
		if sqlDB, err := db.DB.DB(); err == nil {
			dbMetrics.StartPoolStatsCollection(ctx, sqlDB)
		}
		defer dbMetrics.Stop()
	}

	if opts.autoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
		log.Info("Schema migrated")
		if opts.salesControlID == "" {
			return nil
		}
	}

	tenantID, err := uuid.Parse(opts.tenantID)
	if err != nil {
		return fmt.Errorf("invalid -tenant %q: %w", opts.tenantID, err)
	}
	salesControlID, err := uuid.Parse(opts.salesControlID)
	if err != nil {
		return fmt.Errorf("invalid -sales-control %q: %w", opts.salesControlID, err)
	}

	reconcileMetrics, err := telemetry.NewReconciliationMetrics(mp.Meter("quota"))
	if err != nil {
		return fmt.Errorf("init reconciliation metrics: %w", err)
	}

	txScope := persistence.NewGormTransactionScope(db.DB)
	service := appquota.NewReconciliationService(txScope,
		appquota.WithLedgerEnabled(cfg.Reconciliation.LedgerEnabled),
		appquota.WithMetrics(reconcileMetrics),
		appquota.WithLogger(log),
	)

	var outcome quota.ReconcileOutcome
	switch {
	case opts.payAt != "":
		paidAt, perr := time.Parse(time.RFC3339, opts.payAt)
		if perr != nil {
			return fmt.Errorf("invalid -pay %q: %w", opts.payAt, perr)
		}
		// MarkPaid reconciles in its own transaction, so the bus carries no
		// paid handler here.
		payments := appsales.NewPaymentService(txScope, service, log)
		payments.SetEventPublisher(event.NewInMemoryEventBus(log))
		outcome, err = payments.MarkPaid(ctx, tenantID, salesControlID, paidAt)
	case opts.viaEvent:
		outcome, err = reconcileViaEvent(ctx, cfg, db, service, tenantID, salesControlID, log)
	case opts.undo:
		outcome, err = service.Unreconcile(logger.WithTrigger(ctx, logger.TriggerCLI), tenantID, salesControlID)
	default:
		outcome, err = service.Reconcile(logger.WithTrigger(ctx, logger.TriggerCLI), tenantID, salesControlID)
	}
	if err != nil {
		return err
	}

	printOutcome(outcome)
	return nil
}

// reconcileViaEvent delivers SalesControlPaid for an already paid control
// through the bus and the idempotent handler.
func reconcileViaEvent(
	ctx context.Context,
	cfg *config.Config,
	db *persistence.Database,
	service *appquota.ReconciliationService,
	tenantID, salesControlID uuid.UUID,
	log *zap.Logger,
) (quota.ReconcileOutcome, error) {
	control, err := persistence.NewGormSalesControlRepository(db.DB).FindActiveWithLines(ctx, tenantID, salesControlID)
	if err != nil {
		return quota.ReconcileOutcome{}, fmt.Errorf("load sales control: %w", err)
	}
	if !control.IsPaid() {
		return quota.ReconcileOutcome{}, errors.New("sales control is not paid")
	}

	recorder := &outcomeRecorder{inner: service}
	bus, closeBus, err := newEventBus(ctx, cfg, recorder, log)
	if err != nil {
		return quota.ReconcileOutcome{}, err
	}
	defer closeBus()

	if err := bus.Publish(ctx, sales.NewSalesControlPaidEvent(control)); err != nil {
		return quota.ReconcileOutcome{}, err
	}
	if !recorder.called {
		return quota.ReconcileOutcome{}, errors.New("event was already processed")
	}
	return recorder.last, nil
}

// newEventBus wires the paid handler behind the idempotency store.
func newEventBus(
	ctx context.Context,
	cfg *config.Config,
	reconciler appquota.Reconciling,
	log *zap.Logger,
) (shared.EventBus, func(), error) {
	store, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore(ctx, cfg.Reconciliation.IdempotencyBackend)
	if err != nil {
		return nil, nil, fmt.Errorf("create idempotency store: %w", err)
	}

	handler := event.NewIdempotentHandler(
		appquota.NewSalesControlPaidHandler(reconciler, log),
		store,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Reconciliation.IdempotencyTTL,
			Enabled: cfg.Reconciliation.IdempotencyEnabled,
		}),
	)

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(handler)

	return bus, func() {
		if err := store.Close(); err != nil {
			log.Warn("Error closing idempotency store", zap.Error(err))
		}
	}, nil
}

type outcomeRecorder struct {
	inner  appquota.Reconciling
	last   quota.ReconcileOutcome
	called bool
}

func (r *outcomeRecorder) Reconcile(ctx context.Context, tenantID, salesControlID uuid.UUID) (quota.ReconcileOutcome, error) {
	outcome, err := r.inner.Reconcile(ctx, tenantID, salesControlID)
	r.last, r.called = outcome, true
	return outcome, err
}

func logConfig(cfg *config.Config) *logger.Config {
	return &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	}
}

func printOutcome(o quota.ReconcileOutcome) {
	fmt.Printf("status=%s sales_control=%s", o.Status, o.SalesControlID)
	if o.QuotaID != uuid.Nil {
		fmt.Printf(" quota=%s period=%s", o.QuotaID, o.Period)
	}
	fmt.Printf(" matched=%d skipped=%d", o.MatchedLines, o.SkippedLines)
	if o.Mutated() {
		fmt.Printf(" amount=%s achieved=%s", o.AppliedAmount.StringFixed(2), o.QuotaAchieved.StringFixed(2))
		if o.ClampedLines > 0 {
			fmt.Printf(" clamped=%d", o.ClampedLines)
		}
	}
	fmt.Println()
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}
