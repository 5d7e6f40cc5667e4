package quota

import (
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutcomeStatus tells how a reconcile or unreconcile call ended
type OutcomeStatus string

const (
	OutcomeReconciled        OutcomeStatus = "RECONCILED"
	OutcomeNotFound          OutcomeStatus = "NOT_FOUND"
	OutcomeNoPaymentDate     OutcomeStatus = "NO_PAYMENT_DATE"
	OutcomeNoQuotaForPeriod  OutcomeStatus = "NO_QUOTA_FOR_PERIOD"
	OutcomeAlreadyReconciled OutcomeStatus = "ALREADY_RECONCILED"
	OutcomeNotReconciled     OutcomeStatus = "NOT_RECONCILED"
	OutcomeUnreconciled      OutcomeStatus = "UNRECONCILED"
)

// String returns the string representation of OutcomeStatus
func (s OutcomeStatus) String() string {
	return string(s)
}

// ReconcileOutcome is the result of one Reconcile or Unreconcile call.
// Only RECONCILED and UNRECONCILED mutate the quota.
type ReconcileOutcome struct {
	Status         OutcomeStatus
	SalesControlID uuid.UUID
	QuotaID        uuid.UUID
	Period         valueobject.Period
	MatchedLines   int
	SkippedLines   int
	// ClampedLines counts reverted lines that could not go below zero
	ClampedLines  int
	AppliedAmount decimal.Decimal
	// QuotaAchieved is the quota aggregate after the call, zero when untouched
	QuotaAchieved decimal.Decimal
}

// Mutated reports whether the call changed quota state
func (o ReconcileOutcome) Mutated() bool {
	return o.Status == OutcomeReconciled || o.Status == OutcomeUnreconciled
}

func newOutcome(status OutcomeStatus, salesControlID uuid.UUID) ReconcileOutcome {
	return ReconcileOutcome{
		Status:         status,
		SalesControlID: salesControlID,
		AppliedAmount:  decimal.Zero,
		QuotaAchieved:  decimal.Zero,
	}
}
