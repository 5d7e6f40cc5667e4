package persistence

import (
	"context"
	"testing"

	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/persistence/tenant"
	"github.com/crm/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func TestOpenDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("migrates and reports pool stats", func(t *testing.T) {
		db, err := OpenDatabase(sqlite.Open(":memory:"))
		require.NoError(t, err)
		sqlDB, err := db.DB.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = db.Close() })

		require.NoError(t, db.AutoMigrate(ctx))
		// Migrating twice is harmless.
		require.NoError(t, db.AutoMigrate(ctx))

		for _, m := range models.All() {
			assert.True(t, db.DB.Migrator().HasTable(m))
		}
		assert.True(t, db.DB.Migrator().HasIndex(&models.QuotaModel{}, "idx_quotas_live_period"))

		require.NoError(t, db.Ping(ctx))
		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
		assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
	})

	t.Run("tenant guard rejects unscoped queries", func(t *testing.T) {
		db, err := OpenDatabase(sqlite.Open(":memory:"), WithTenantGuard(true))
		require.NoError(t, err)
		sqlDB, err := db.DB.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = db.Close() })
		require.NoError(t, db.AutoMigrate(ctx))

		var quotas []models.QuotaModel
		err = db.DB.WithContext(ctx).Find(&quotas).Error
		assert.ErrorIs(t, err, tenant.ErrTenantPredicateMissing)

		err = db.DB.WithContext(ctx).Scopes(tenant.TenantScope(testutil.TestTenantID())).Find(&quotas).Error
		assert.NoError(t, err)
	})

	t.Run("without the guard unscoped queries run", func(t *testing.T) {
		db, err := OpenDatabase(sqlite.Open(":memory:"), WithTenantGuard(false))
		require.NoError(t, err)
		sqlDB, err := db.DB.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = db.Close() })
		require.NoError(t, db.AutoMigrate(ctx))

		var quotas []models.QuotaModel
		assert.NoError(t, db.DB.WithContext(ctx).Find(&quotas).Error)
	})
}

func TestConnectionStats_Struct(t *testing.T) {
	stats := ConnectionStats{
		OpenConnections: 10,
		InUse:           6,
		Idle:            4,
	}
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}
