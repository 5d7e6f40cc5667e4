package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reconciler applies the lines of a paid sales control to the quota of its
// assigned representative for the payment month.
//
// The reconciler never commits. All reads and writes go through the
// repositories it was built with, which the caller binds to its own
// transaction. Absence of data is reported as an outcome, while only
// infrastructure failures are returned as errors.
//
// Without a ledger every call accumulates again, so the caller must invoke
// Reconcile at most once per sales control. With a ledger a repeated call
// yields ALREADY_RECONCILED.
type Reconciler struct {
	salesControls SalesControlReader
	quotas        QuotaRepository
	ledger        ReconciliationLedger
}

// ReconcilerOption is a functional option for configuring Reconciler
type ReconcilerOption func(*Reconciler)

// WithLedger records every reconciliation so repeated calls are detected and
// so Unreconcile can reverse the exact applied amounts.
func WithLedger(ledger ReconciliationLedger) ReconcilerOption {
	return func(r *Reconciler) {
		r.ledger = ledger
	}
}

// NewReconciler creates a reconciler over the given repositories
func NewReconciler(salesControls SalesControlReader, quotas QuotaRepository, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		salesControls: salesControls,
		quotas:        quotas,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasLedger reports whether the reconciler tracks applied sales controls
func (r *Reconciler) HasLedger() bool {
	return r.ledger != nil
}

// Reconcile adds every sales control line amount to the matching quota line
// of the representative's quota for the payment month and recomputes the
// quota aggregate. Lines whose product line is not budgeted are skipped.
func (r *Reconciler) Reconcile(ctx context.Context, salesControlID, tenantID uuid.UUID) (ReconcileOutcome, error) {
	outcome := newOutcome(OutcomeNotFound, salesControlID)

	sc, err := r.salesControls.FindActiveWithLines(ctx, tenantID, salesControlID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return outcome, nil
		}
		return outcome, fmt.Errorf("load sales control: %w", err)
	}

	period, ok := sc.Period()
	if !ok {
		outcome.Status = OutcomeNoPaymentDate
		return outcome, nil
	}
	outcome.Period = period

	q, err := r.quotas.FindForPeriodForUpdate(ctx, tenantID, sc.AssignedTo, period)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return outcome, fmt.Errorf("load quota for %s: %w", period, err)
		}
		// A recorded reconciliation outranks a quota deleted since.
		entry, err := r.findApplied(ctx, tenantID, salesControlID)
		if err != nil {
			return outcome, err
		}
		outcome.Status = OutcomeNoQuotaForPeriod
		if entry != nil {
			outcome.Status = OutcomeAlreadyReconciled
			outcome.QuotaID = entry.QuotaID
		}
		return outcome, nil
	}
	outcome.QuotaID = q.ID

	// Checked under the quota row lock so concurrent calls for the same
	// sales control serialize here.
	prior, err := r.findApplied(ctx, tenantID, salesControlID)
	if err != nil {
		return outcome, err
	}
	if prior != nil {
		outcome.Status = OutcomeAlreadyReconciled
		outcome.QuotaAchieved = q.AchievedAmount
		return outcome, nil
	}

	entry, err := NewReconciliation(tenantID, q.ID, salesControlID, period)
	if err != nil {
		return outcome, err
	}

	applied := decimal.Zero
	for _, scLine := range sc.Lines {
		qLine, matched := q.ApplyAchievement(scLine.ProductLineID, scLine.Amount)
		if !matched {
			outcome.SkippedLines++
			continue
		}
		outcome.MatchedLines++
		applied = applied.Add(scLine.Amount)
		entry.Record(qLine.ID, scLine.ID, scLine.Amount)
	}
	q.RecomputeAggregates()

	if err := r.quotas.SaveAchievement(ctx, q); err != nil {
		return outcome, fmt.Errorf("save quota achievement: %w", err)
	}

	if r.ledger != nil {
		if err := r.ledger.Append(ctx, entry); err != nil {
			return outcome, fmt.Errorf("append reconciliation ledger: %w", err)
		}
	}

	outcome.Status = OutcomeReconciled
	outcome.AppliedAmount = applied
	outcome.QuotaAchieved = q.AchievedAmount
	return outcome, nil
}

// findApplied returns the ledger entry for the sales control, or nil when
// there is none or no ledger is configured.
func (r *Reconciler) findApplied(ctx context.Context, tenantID, salesControlID uuid.UUID) (*Reconciliation, error) {
	if r.ledger == nil {
		return nil, nil
	}
	entry, err := r.ledger.Find(ctx, tenantID, salesControlID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("check reconciliation ledger: %w", err)
	}
	return entry, nil
}

// Unreconcile reverses a recorded reconciliation by subtracting the exact
// amounts it applied and removing its ledger entry. It requires a ledger.
func (r *Reconciler) Unreconcile(ctx context.Context, salesControlID, tenantID uuid.UUID) (ReconcileOutcome, error) {
	outcome := newOutcome(OutcomeNotReconciled, salesControlID)

	if r.ledger == nil {
		return outcome, shared.NewDomainError("LEDGER_REQUIRED", "Unreconcile requires a reconciliation ledger")
	}

	entry, err := r.ledger.Find(ctx, tenantID, salesControlID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return outcome, nil
		}
		return outcome, fmt.Errorf("load reconciliation ledger: %w", err)
	}
	outcome.Period = entry.Period()
	outcome.QuotaID = entry.QuotaID

	q, err := r.quotas.FindByIDForUpdate(ctx, tenantID, entry.QuotaID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			outcome.Status = OutcomeNoQuotaForPeriod
			return outcome, nil
		}
		return outcome, fmt.Errorf("load quota %s: %w", entry.QuotaID, err)
	}

	reverted := decimal.Zero
	for _, line := range entry.Lines {
		removed, found := q.RevertAchievement(line.QuotaLineID, line.Amount)
		if !found {
			outcome.SkippedLines++
			continue
		}
		outcome.MatchedLines++
		if removed.LessThan(line.Amount) {
			outcome.ClampedLines++
		}
		reverted = reverted.Add(removed)
	}
	q.RecomputeAggregates()

	if err := r.quotas.SaveAchievement(ctx, q); err != nil {
		return outcome, fmt.Errorf("save quota achievement: %w", err)
	}
	if err := r.ledger.Remove(ctx, tenantID, entry.ID); err != nil {
		return outcome, fmt.Errorf("remove reconciliation ledger entry: %w", err)
	}

	outcome.Status = OutcomeUnreconciled
	outcome.AppliedAmount = reverted
	outcome.QuotaAchieved = q.AchievedAmount
	return outcome, nil
}
