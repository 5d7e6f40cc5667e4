package quota_test

import (
	"context"
	"testing"
	"time"

	appquota "github.com/crm/backend/internal/application/quota"
	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/sales"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	productLineA = testutil.NewTestUUID("product-line-a")
	productLineB = testutil.NewTestUUID("product-line-b")
	productLineC = testutil.NewTestUUID("product-line-c")

	paidAt = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	march  = valueobject.PeriodOf(paidAt)
)

// fixture is a SQLite database with one representative and helpers to seed it
type fixture struct {
	db       *gorm.DB
	txScope  *persistence.GormTransactionScope
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &fixture{
		db:       db,
		txScope:  persistence.NewGormTransactionScope(db),
		tenantID: testutil.TestTenantID(),
		userID:   testutil.TestUserID(),
	}
}

func (f *fixture) service(opts ...appquota.ServiceOption) *appquota.ReconciliationService {
	return appquota.NewReconciliationService(f.txScope, opts...)
}

// seedQuota budgets product lines A (1000) and B (500) for the period
func (f *fixture) seedQuota(t *testing.T, period valueobject.Period) *quota.Quota {
	t.Helper()
	q, err := quota.NewQuota(f.tenantID, f.userID, period)
	require.NoError(t, err)
	_, err = q.AddLine(productLineA, decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = q.AddLine(productLineB, decimal.NewFromInt(500))
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormQuotaRepository(f.db).Save(context.Background(), q))
	return q
}

// seedSalesControl sells A for 100 and C for 50, paid on paymentDate unless nil
func (f *fixture) seedSalesControl(t *testing.T, number string, paymentDate *time.Time) *sales.SalesControl {
	t.Helper()
	sc, err := sales.NewSalesControl(f.tenantID, number, f.userID, "Acme Corp")
	require.NoError(t, err)
	_, err = sc.AddLine(productLineA, "Widgets", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = sc.AddLine(productLineC, "Gadgets", decimal.NewFromInt(50))
	require.NoError(t, err)
	if paymentDate != nil {
		require.NoError(t, sc.MarkPaid(*paymentDate))
		sc.ClearDomainEvents()
	}
	require.NoError(t, persistence.NewGormSalesControlRepository(f.db).Save(context.Background(), sc))
	return sc
}

func (f *fixture) loadQuota(t *testing.T, id uuid.UUID) *quota.Quota {
	t.Helper()
	q, err := persistence.NewGormQuotaRepository(f.db).FindByIDForUpdate(context.Background(), f.tenantID, id)
	require.NoError(t, err)
	return q
}

func achievedOf(t *testing.T, q *quota.Quota, productLineID uuid.UUID) decimal.Decimal {
	t.Helper()
	line, ok := q.LineForProductLine(productLineID)
	require.True(t, ok, "product line %s not budgeted", productLineID)
	return line.AchievedAmount
}

func paid(t time.Time) *time.Time {
	return &t
}
