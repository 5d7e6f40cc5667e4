package sales

import (
	"context"

	"github.com/google/uuid"
)

// SalesControlRepository defines persistence for sales controls.
// Every read is tenant scoped and skips soft-deleted rows.
type SalesControlRepository interface {
	// FindActiveWithLines loads a non-deleted sales control with its lines.
	// Returns shared.ErrNotFound when no such control exists for the tenant.
	FindActiveWithLines(ctx context.Context, tenantID, id uuid.UUID) (*SalesControl, error)

	// Save creates or updates a sales control and its lines
	Save(ctx context.Context, control *SalesControl) error

	// SaveWithLock updates the control header with a version check
	SaveWithLock(ctx context.Context, control *SalesControl) error

	// SoftDelete marks a control deleted for the tenant
	SoftDelete(ctx context.Context, tenantID, id uuid.UUID) error
}
