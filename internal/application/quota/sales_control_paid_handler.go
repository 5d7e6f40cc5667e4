package quota

import (
	"context"
	"fmt"

	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/sales"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciling is the part of ReconciliationService event handlers call
type Reconciling interface {
	Reconcile(ctx context.Context, tenantID, salesControlID uuid.UUID) (quota.ReconcileOutcome, error)
}

// SalesControlPaidHandler reconciles a sales control when it is paid.
//
// Outcomes such as NO_QUOTA_FOR_PERIOD are logged and swallowed; only
// infrastructure failures are returned, so a redelivery can retry them.
// Events whose payment transaction already reconciled the quota are skipped.
// Wrap it in an idempotent handler when the bus may deliver twice.
type SalesControlPaidHandler struct {
	service Reconciling
	logger  *zap.Logger
}

// NewSalesControlPaidHandler creates a new SalesControlPaidHandler
func NewSalesControlPaidHandler(service Reconciling, log *zap.Logger) *SalesControlPaidHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SalesControlPaidHandler{
		service: service,
		logger:  log,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *SalesControlPaidHandler) EventTypes() []string {
	return []string{sales.EventTypeSalesControlPaid}
}

// Handle reconciles the paid sales control named by the event
func (h *SalesControlPaidHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*sales.SalesControlPaidEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T for %s", event, sales.EventTypeSalesControlPaid)
	}

	ctx = logger.WithTrigger(ctx, logger.TriggerEvent)
	if e.QuotaReconciled {
		logger.WithLogger(ctx, h.logger).Debug("sales control reconciled with its payment, skipping",
			zap.String("event_id", e.EventID().String()),
			zap.String("control_number", e.ControlNumber),
		)
		return nil
	}

	outcome, err := h.service.Reconcile(ctx, e.TenantID(), e.SalesControlID)
	if err != nil {
		return fmt.Errorf("reconcile sales control %s: %w", e.ControlNumber, err)
	}

	logger.WithLogger(ctx, h.logger).Debug("sales control paid event handled",
		zap.String("event_id", e.EventID().String()),
		zap.String("control_number", e.ControlNumber),
		zap.Stringer("outcome", outcome.Status),
	)
	return nil
}

var _ shared.EventHandler = (*SalesControlPaidHandler)(nil)
