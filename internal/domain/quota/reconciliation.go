package quota

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppliedLine is one amount a reconciliation added to a quota line
type AppliedLine struct {
	QuotaLineID        uuid.UUID
	SalesControlLineID uuid.UUID
	Amount             decimal.Decimal
}

// Reconciliation is the ledger entry written when a paid sales control is
// applied to a quota. There is at most one entry per (tenant, sales control).
type Reconciliation struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	QuotaID        uuid.UUID
	SalesControlID uuid.UUID
	Year           int
	Month          int
	AppliedAmount  decimal.Decimal
	Lines          []AppliedLine
	ReconciledAt   time.Time
}

// NewReconciliation starts an empty ledger entry for a quota and sales control
func NewReconciliation(tenantID, quotaID, salesControlID uuid.UUID, period valueobject.Period) (*Reconciliation, error) {
	if tenantID == uuid.Nil || quotaID == uuid.Nil || salesControlID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RECONCILIATION", "Tenant, quota and sales control IDs are required")
	}
	return &Reconciliation{
		ID:             uuid.New(),
		TenantID:       tenantID,
		QuotaID:        quotaID,
		SalesControlID: salesControlID,
		Year:           period.Year(),
		Month:          period.MonthNumber(),
		AppliedAmount:  decimal.Zero,
		Lines:          make([]AppliedLine, 0),
		ReconciledAt:   time.Now(),
	}, nil
}

// Record adds an applied amount to the entry
func (r *Reconciliation) Record(quotaLineID, salesControlLineID uuid.UUID, amount decimal.Decimal) {
	r.Lines = append(r.Lines, AppliedLine{
		QuotaLineID:        quotaLineID,
		SalesControlLineID: salesControlLineID,
		Amount:             amount,
	})
	r.AppliedAmount = r.AppliedAmount.Add(amount)
}

// Period returns the quota period the entry was applied to
func (r *Reconciliation) Period() valueobject.Period {
	p, err := valueobject.NewPeriod(r.Year, time.Month(r.Month))
	if err != nil {
		return valueobject.Period{}
	}
	return p
}
