package sales

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeSalesControl is the aggregate type name used in events
const AggregateTypeSalesControl = "SalesControl"

// EventTypeSalesControlPaid is raised when a sales control gets its payment date
const EventTypeSalesControlPaid = "SalesControlPaid"

// SalesControlPaidEvent carries what a downstream reconciliation needs to
// locate the control; amounts are re-read from storage, not from the event.
type SalesControlPaidEvent struct {
	shared.BaseDomainEvent
	SalesControlID uuid.UUID       `json:"sales_control_id"`
	ControlNumber  string          `json:"control_number"`
	AssignedTo     uuid.UUID       `json:"assigned_to"`
	PaymentDate    time.Time       `json:"payment_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	// QuotaReconciled is set when the payment transaction already applied
	// the control to its quota.
	QuotaReconciled bool `json:"quota_reconciled"`
}

// NewSalesControlPaidEvent creates a new SalesControlPaidEvent
func NewSalesControlPaidEvent(c *SalesControl) *SalesControlPaidEvent {
	e := &SalesControlPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalesControlPaid, AggregateTypeSalesControl, c.ID, c.TenantID),
		SalesControlID:  c.ID,
		ControlNumber:   c.ControlNumber,
		AssignedTo:      c.AssignedTo,
		TotalAmount:     c.TotalAmount,
	}
	if c.PaymentDate != nil {
		e.PaymentDate = *c.PaymentDate
	}
	return e
}

// MarkQuotaReconciled records that the quota was updated together with the payment
func (e *SalesControlPaidEvent) MarkQuotaReconciled() {
	e.QuotaReconciled = true
}

// EventType returns the event type name
func (e *SalesControlPaidEvent) EventType() string {
	return EventTypeSalesControlPaid
}
