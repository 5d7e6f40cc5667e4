package sales

import (
	"context"
	"fmt"
	"time"

	appquota "github.com/crm/backend/internal/application/quota"
	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/sales"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InTxReconciler reconciles a sales control inside a caller's transaction
type InTxReconciler interface {
	ReconcileInTx(ctx context.Context, repos appquota.TransactionalRepositories, tenantID, salesControlID uuid.UUID) (quota.ReconcileOutcome, error)
}

// PaymentService records payments on sales controls
type PaymentService struct {
	txScope        appquota.TransactionScope
	reconciler     InTxReconciler
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(txScope appquota.TransactionScope, reconciler InTxReconciler, log *zap.Logger) *PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{
		txScope:    txScope,
		reconciler: reconciler,
		logger:     log,
	}
}

// SetEventPublisher sets the publisher that receives events after commit
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// MarkPaid sets the payment date of a sales control and reconciles it
// against the assignee's quota in the same transaction. Any error rolls back
// both the payment and the reconciliation. Published SalesControlPaid events
// are marked as reconciled so paid handlers do not apply them again.
func (s *PaymentService) MarkPaid(ctx context.Context, tenantID, salesControlID uuid.UUID, paymentDate time.Time) (quota.ReconcileOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sales", "mark_paid")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSalesControlID, salesControlID.String(),
	)
	ctx = logger.WithTrigger(ctx, logger.TriggerPayment)

	var (
		outcome quota.ReconcileOutcome
		events  []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos appquota.TransactionalRepositories) error {
		control, err := repos.SalesControls().FindActiveWithLines(ctx, tenantID, salesControlID)
		if err != nil {
			return fmt.Errorf("load sales control: %w", err)
		}

		if err := control.MarkPaid(paymentDate); err != nil {
			return err
		}

		if err := repos.SalesControls().SaveWithLock(ctx, control); err != nil {
			return fmt.Errorf("save sales control: %w", err)
		}

		outcome, err = s.reconciler.ReconcileInTx(ctx, repos, tenantID, salesControlID)
		if err != nil {
			return err
		}

		events = control.GetDomainEvents()
		control.ClearDomainEvents()
		for _, e := range events {
			if paid, ok := e.(*sales.SalesControlPaidEvent); ok {
				paid.MarkQuotaReconciled()
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return quota.ReconcileOutcome{}, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, outcome.Status.String())
	telemetry.SetOK(span)

	if s.eventPublisher != nil && len(events) > 0 {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			// The payment is committed; subscribers are expected to be idempotent.
			logger.WithLogger(ctx, s.logger).Warn("failed to publish payment events", zap.Error(err))
		}
	}

	return outcome, nil
}
