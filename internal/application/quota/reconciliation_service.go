package quota

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// triggerDirect labels calls that carry no trigger in their context
const triggerDirect = "direct"

// ReconciliationService runs quota reconciliation as a unit of work.
//
// Reconcile and Unreconcile open their own transaction. ReconcileInTx joins a
// transaction the caller already holds, so a payment and its reconciliation
// commit or roll back together.
type ReconciliationService struct {
	txScope       TransactionScope
	ledgerEnabled bool
	metrics       *telemetry.ReconciliationMetrics
	logger        *zap.Logger
}

// ServiceOption configures a ReconciliationService
type ServiceOption func(*ReconciliationService)

// WithLedgerEnabled turns the reconciliation ledger on or off. It is on by default.
// Without it repeated calls accumulate again and Unreconcile is unavailable.
func WithLedgerEnabled(enabled bool) ServiceOption {
	return func(s *ReconciliationService) {
		s.ledgerEnabled = enabled
	}
}

// WithMetrics records every call on m
func WithMetrics(m *telemetry.ReconciliationMetrics) ServiceOption {
	return func(s *ReconciliationService) {
		s.metrics = m
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *ReconciliationService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(txScope TransactionScope, opts ...ServiceOption) *ReconciliationService {
	s := &ReconciliationService{
		txScope:       txScope,
		ledgerEnabled: true,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LedgerEnabled reports whether repeated calls are detected
func (s *ReconciliationService) LedgerEnabled() bool {
	return s.ledgerEnabled
}

func (s *ReconciliationService) reconciler(repos TransactionalRepositories) *quota.Reconciler {
	var opts []quota.ReconcilerOption
	if s.ledgerEnabled {
		opts = append(opts, quota.WithLedger(repos.Ledger()))
	}
	return quota.NewReconciler(repos.SalesControls(), repos.Quotas(), opts...)
}

// ReconcileInTx reconciles a paid sales control using repositories bound to
// the caller's transaction. It never commits.
func (s *ReconciliationService) ReconcileInTx(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID, salesControlID uuid.UUID,
) (quota.ReconcileOutcome, error) {
	return s.run(ctx, telemetry.OperationReconcile, tenantID, salesControlID,
		func(ctx context.Context) (quota.ReconcileOutcome, error) {
			return s.reconciler(repos).Reconcile(ctx, salesControlID, tenantID)
		})
}

// Reconcile reconciles a paid sales control in its own transaction
func (s *ReconciliationService) Reconcile(ctx context.Context, tenantID, salesControlID uuid.UUID) (quota.ReconcileOutcome, error) {
	return s.run(ctx, telemetry.OperationReconcile, tenantID, salesControlID,
		func(ctx context.Context) (quota.ReconcileOutcome, error) {
			var outcome quota.ReconcileOutcome
			err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
				var err error
				outcome, err = s.reconciler(repos).Reconcile(ctx, salesControlID, tenantID)
				return err
			})
			return outcome, err
		})
}

// Unreconcile reverses a recorded reconciliation in its own transaction
func (s *ReconciliationService) Unreconcile(ctx context.Context, tenantID, salesControlID uuid.UUID) (quota.ReconcileOutcome, error) {
	return s.run(ctx, telemetry.OperationUnreconcile, tenantID, salesControlID,
		func(ctx context.Context) (quota.ReconcileOutcome, error) {
			var outcome quota.ReconcileOutcome
			err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
				var err error
				outcome, err = s.reconciler(repos).Unreconcile(ctx, salesControlID, tenantID)
				return err
			})
			return outcome, err
		})
}

func (s *ReconciliationService) run(
	ctx context.Context,
	operation string,
	tenantID, salesControlID uuid.UUID,
	fn func(ctx context.Context) (quota.ReconcileOutcome, error),
) (quota.ReconcileOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", operation)
	defer span.End()

	trigger := logger.GetTrigger(ctx)
	if trigger == "" {
		trigger = triggerDirect
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSalesControlID, salesControlID.String(),
		telemetry.SpanAttrTrigger, trigger,
	)

	ctx = logger.WithTenantID(ctx, tenantID.String())
	ctx = logger.WithSalesControlID(ctx, salesControlID.String())
	log := logger.WithLogger(ctx, s.logger)

	start := time.Now()
	outcome, err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("quota "+operation+" failed", zap.String("operation", operation), zap.Error(err))
		s.metrics.Record(ctx, telemetry.ReconcileSample{
			Operation: operation,
			Outcome:   "ERROR",
			Trigger:   trigger,
			Duration:  elapsed,
		})
		return outcome, err
	}

	annotate(span, outcome)
	telemetry.SetOK(span)

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Stringer("outcome", outcome.Status),
		zap.Int("matched", outcome.MatchedLines),
		zap.Int("skipped", outcome.SkippedLines),
		zap.Duration("duration", elapsed),
	}
	if outcome.Mutated() {
		fields = append(fields,
			zap.String("quota_id", outcome.QuotaID.String()),
			zap.String("amount", outcome.AppliedAmount.String()),
			zap.String("achieved", outcome.QuotaAchieved.String()),
		)
		if outcome.ClampedLines > 0 {
			fields = append(fields, zap.Int("clamped", outcome.ClampedLines))
		}
		log.Info("quota "+operation+" applied", fields...)
	} else {
		log.Debug("quota "+operation+" skipped", fields...)
	}

	s.metrics.Record(ctx, telemetry.ReconcileSample{
		Operation:    operation,
		Outcome:      outcome.Status.String(),
		Trigger:      trigger,
		MatchedLines: outcome.MatchedLines,
		SkippedLines: outcome.SkippedLines,
		Amount:       outcome.AppliedAmount,
		Duration:     elapsed,
	})
	return outcome, nil
}

func annotate(span trace.Span, outcome quota.ReconcileOutcome) {
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOutcome, outcome.Status.String(),
		telemetry.SpanAttrMatchedLines, outcome.MatchedLines,
		telemetry.SpanAttrSkippedLines, outcome.SkippedLines,
		telemetry.SpanAttrAmount, outcome.AppliedAmount.String(),
	)
	if outcome.QuotaID != uuid.Nil {
		telemetry.SetAttributes(span, telemetry.SpanAttrQuotaID, outcome.QuotaID.String())
	}
	if !outcome.Period.IsZero() {
		telemetry.SetAttributes(span, telemetry.SpanAttrPeriod, outcome.Period.String())
	}
}
