package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/persistence/tenant"
	"github.com/crm/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testPeriod = valueobject.PeriodOf(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

func createTestQuota(t *testing.T, tenantID uuid.UUID, period valueobject.Period, productLines ...uuid.UUID) *quota.Quota {
	t.Helper()
	q, err := quota.NewQuota(tenantID, testutil.TestUserID(), period)
	require.NoError(t, err)
	for _, pl := range productLines {
		_, err := q.AddLine(pl, decimal.NewFromInt(1000))
		require.NoError(t, err)
	}
	return q
}

func softDeleteQuota(t *testing.T, db *gorm.DB, q *quota.Quota) {
	t.Helper()
	require.NoError(t, db.Scopes(tenant.TenantScope(q.TenantID)).
		Where("id = ?", q.ID).
		Delete(&models.QuotaModel{}).Error)
}

func TestGormQuotaRepository_FindForPeriodForUpdate(t *testing.T) {
	ctx := context.Background()
	tenantID := testutil.TestTenantID()
	lineA, lineB := uuid.New(), uuid.New()

	t.Run("loads the quota with its lines", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		q := createTestQuota(t, tenantID, testPeriod, lineA, lineB)
		require.NoError(t, repo.Save(ctx, q))

		found, err := repo.FindForPeriodForUpdate(ctx, tenantID, q.UserID, testPeriod)
		require.NoError(t, err)

		assert.Equal(t, q.ID, found.ID)
		assert.Equal(t, testPeriod, found.Period())
		require.Len(t, found.Lines, 2)
		assert.ElementsMatch(t,
			[]uuid.UUID{lineA, lineB},
			[]uuid.UUID{found.Lines[0].ProductLineID, found.Lines[1].ProductLineID},
		)
		assert.True(t, found.TargetAmount.Equal(decimal.NewFromInt(2000)))
		assert.Equal(t, 1, found.Version)
	})

	t.Run("other period", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		q := createTestQuota(t, tenantID, testPeriod, lineA)
		require.NoError(t, repo.Save(ctx, q))

		april, err := valueobject.NewPeriod(2026, time.April)
		require.NoError(t, err)
		_, err = repo.FindForPeriodForUpdate(ctx, tenantID, q.UserID, april)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("other tenant", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		q := createTestQuota(t, tenantID, testPeriod, lineA)
		require.NoError(t, repo.Save(ctx, q))

		_, err := repo.FindForPeriodForUpdate(ctx, testutil.OtherTenantID(), q.UserID, testPeriod)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByIDForUpdate(ctx, testutil.OtherTenantID(), q.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("deleted quota is ignored and may be replaced", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		old := createTestQuota(t, tenantID, testPeriod, lineA)
		require.NoError(t, repo.Save(ctx, old))
		softDeleteQuota(t, db, old)

		_, err := repo.FindForPeriodForUpdate(ctx, tenantID, old.UserID, testPeriod)
		require.ErrorIs(t, err, shared.ErrNotFound)

		replacement := createTestQuota(t, tenantID, testPeriod, lineB)
		require.NoError(t, repo.Save(ctx, replacement))

		found, err := repo.FindForPeriodForUpdate(ctx, tenantID, old.UserID, testPeriod)
		require.NoError(t, err)
		assert.Equal(t, replacement.ID, found.ID)
	})

	t.Run("second live quota for the period is rejected", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		require.NoError(t, repo.Save(ctx, createTestQuota(t, tenantID, testPeriod, lineA)))

		err := repo.Save(ctx, createTestQuota(t, tenantID, testPeriod, lineB))
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("nil tenant fails the statement", func(t *testing.T) {
		repo := NewGormQuotaRepository(testutil.NewSQLiteDB(t))
		_, err := repo.FindByIDForUpdate(ctx, uuid.Nil, uuid.New())
		assert.ErrorIs(t, err, tenant.ErrTenantIDRequired)
	})
}

func TestGormQuotaRepository_SaveAchievement(t *testing.T) {
	ctx := context.Background()
	tenantID := testutil.TestTenantID()
	lineA, lineB := uuid.New(), uuid.New()

	t.Run("writes lines and aggregate and bumps version", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		q := createTestQuota(t, tenantID, testPeriod, lineA, lineB)
		require.NoError(t, repo.Save(ctx, q))

		loaded, err := repo.FindByIDForUpdate(ctx, tenantID, q.ID)
		require.NoError(t, err)
		_, ok := loaded.ApplyAchievement(lineB, decimal.RequireFromString("12.3456"))
		require.True(t, ok)
		require.NoError(t, repo.SaveAchievement(ctx, loaded))
		assert.Equal(t, 2, loaded.Version)

		stored, err := repo.FindByIDForUpdate(ctx, tenantID, q.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Version)
		line, _ := stored.LineForProductLine(lineB)
		assert.True(t, line.AchievedAmount.Equal(decimal.RequireFromString("12.3456")))
		assert.True(t, stored.AchievedAmount.Equal(decimal.RequireFromString("12.3456")))
		assert.True(t, stored.IsConsistent())
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		q := createTestQuota(t, tenantID, testPeriod, lineA)
		require.NoError(t, repo.Save(ctx, q))

		first, err := repo.FindByIDForUpdate(ctx, tenantID, q.ID)
		require.NoError(t, err)
		second, err := repo.FindByIDForUpdate(ctx, tenantID, q.ID)
		require.NoError(t, err)

		first.ApplyAchievement(lineA, decimal.NewFromInt(10))
		require.NoError(t, repo.SaveAchievement(ctx, first))

		second.ApplyAchievement(lineA, decimal.NewFromInt(20))
		err = repo.SaveAchievement(ctx, second)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		stored, err := repo.FindByIDForUpdate(ctx, tenantID, q.ID)
		require.NoError(t, err)
		assert.True(t, stored.AchievedAmount.Equal(decimal.NewFromInt(10)))
	})

	t.Run("other tenant cannot write", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormQuotaRepository(db)
		q := createTestQuota(t, tenantID, testPeriod, lineA)
		require.NoError(t, repo.Save(ctx, q))

		q.TenantID = testutil.OtherTenantID()
		q.ApplyAchievement(lineA, decimal.NewFromInt(10))
		assert.ErrorIs(t, repo.SaveAchievement(ctx, q), shared.ErrConcurrencyConflict)
	})
}

func TestGormQuotaRepository_Save(t *testing.T) {
	ctx := context.Background()
	tenantID := testutil.TestTenantID()
	lineA, lineB := uuid.New(), uuid.New()

	db := testutil.NewSQLiteDB(t)
	repo := NewGormQuotaRepository(db)
	q := createTestQuota(t, tenantID, testPeriod, lineA, lineB)
	require.NoError(t, repo.Save(ctx, q))

	// Dropping a line from the aggregate removes it from storage.
	q.Lines = q.Lines[:1]
	q.RecomputeAggregates()
	require.NoError(t, repo.Save(ctx, q))

	stored, err := repo.FindByIDForUpdate(ctx, tenantID, q.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, lineA, stored.Lines[0].ProductLineID)
	assert.True(t, stored.TargetAmount.Equal(decimal.NewFromInt(1000)))
}

func TestGormQuotaRepository_LockedQuerySQL(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	repo := NewGormQuotaRepository(mdb.DB)
	tenantID := testutil.TestTenantID()
	userID := testutil.TestUserID()
	quotaID := uuid.New()
	now := time.Now()

	// Statement scopes run last, so the tenant predicate follows the caller's conditions.
	mdb.Mock.ExpectQuery(`SELECT \* FROM "quotas" WHERE \(user_id = \$1 AND year = \$2 AND month = \$3\) AND tenant_id = \$4 AND "quotas"\."deleted_at" IS NULL ORDER BY created_at ASC.* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "user_id", "year", "month", "target_amount", "achieved_amount", "version", "created_at", "updated_at"}).
			AddRow(quotaID.String(), tenantID.String(), userID.String(), 2026, 3, "0", "0", 1, now, now))
	mdb.Mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "quota_lines" WHERE "quota_lines"."quota_id" = $1`)).
		WithArgs(quotaID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "quota_id", "product_line_id"}))

	found, err := repo.FindForPeriodForUpdate(context.Background(), tenantID, userID, testPeriod)
	require.NoError(t, err)
	assert.Equal(t, quotaID, found.ID)
	mdb.ExpectationsWereMet(t)
}

func TestGormQuotaRepository_SaveAchievementSQL(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	repo := NewGormQuotaRepository(mdb.DB)
	q := createTestQuota(t, testutil.TestTenantID(), testPeriod)

	mdb.Mock.ExpectBegin()
	mdb.Mock.ExpectExec(`UPDATE "quotas" SET .* WHERE \(id = \$\d+ AND version = \$\d+\) AND tenant_id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mdb.Mock.ExpectRollback()

	err := repo.SaveAchievement(context.Background(), q)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, q.Version)
	mdb.ExpectationsWereMet(t)
}
