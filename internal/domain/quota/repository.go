package quota

import (
	"context"

	"github.com/crm/backend/internal/domain/sales"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// QuotaRepository loads and stores quotas. Every method is tenant scoped and
// ignores soft-deleted rows. Absent rows are reported as shared.ErrNotFound.
type QuotaRepository interface {
	// FindForPeriodForUpdate loads the live quota of a user for a period with
	// its lines and holds a row lock on it until the surrounding transaction ends.
	FindForPeriodForUpdate(ctx context.Context, tenantID, userID uuid.UUID, period valueobject.Period) (*Quota, error)

	// FindByIDForUpdate loads a live quota by ID with its lines and a row lock
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Quota, error)

	// Save inserts or fully replaces a quota and its lines
	Save(ctx context.Context, quota *Quota) error

	// SaveAchievement writes line achieved amounts and the quota aggregate,
	// bumping the version. A stale version yields shared.ErrConcurrencyConflict.
	SaveAchievement(ctx context.Context, quota *Quota) error
}

// ReconciliationLedger records which sales controls were applied to which quota
type ReconciliationLedger interface {
	// Find returns the entry for a sales control or shared.ErrNotFound
	Find(ctx context.Context, tenantID, salesControlID uuid.UUID) (*Reconciliation, error)
	Append(ctx context.Context, entry *Reconciliation) error
	Remove(ctx context.Context, tenantID, id uuid.UUID) error
}

// SalesControlReader is the read side of sales.SalesControlRepository the
// reconciler needs.
type SalesControlReader interface {
	FindActiveWithLines(ctx context.Context, tenantID, id uuid.UUID) (*sales.SalesControl, error)
}
