package persistence

import (
	"context"
	"database/sql"

	appquota "github.com/crm/backend/internal/application/quota"
	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/sales"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Transactions run at READ COMMITTED; the quota row lock provides the
// isolation reconciliation needs.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appquota.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewTransactionalRepositories(tx))
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// NewTransactionalRepositories binds all repositories to tx
func NewTransactionalRepositories(tx *gorm.DB) appquota.TransactionalRepositories {
	return &gormTransactionalRepositories{tx: tx}
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// SalesControls returns the sales control repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SalesControls() sales.SalesControlRepository {
	return NewGormSalesControlRepository(r.tx)
}

// Quotas returns the quota repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Quotas() quota.QuotaRepository {
	return NewGormQuotaRepository(r.tx)
}

// Ledger returns the reconciliation ledger scoped to the current transaction.
func (r *gormTransactionalRepositories) Ledger() quota.ReconciliationLedger {
	return NewGormReconciliationLedger(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appquota.TransactionScope = (*GormTransactionScope)(nil)
