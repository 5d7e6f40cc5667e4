package quota

import (
	"context"

	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/sales"
)

// TransactionScope runs a unit of work. All repositories handed to fn share
// one database transaction; fn returning an error rolls it back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to a transaction.
//
//   - SalesControls: the SalesControl aggregate. Reconciliation only reads it.
//   - Quotas: the Quota aggregate. Finders lock the quota row.
//   - Ledger: append-only record of applied sales controls.
type TransactionalRepositories interface {
	SalesControls() sales.SalesControlRepository
	Quotas() quota.QuotaRepository
	Ledger() quota.ReconciliationLedger
}
