package tenant

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type ownedRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid"`
	Name      string
	CreatedAt time.Time
}

func (ownedRow) TableName() string { return "owned_rows" }

type sharedRow struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string
}

func (sharedRow) TableName() string { return "shared_rows" }

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestTenantScope(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()

	tenantID := uuid.New()

	t.Run("adds tenant predicate", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "owned_rows" WHERE tenant_id = $1`)).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var rows []ownedRow
		err := db.Scopes(TenantScope(tenantID)).Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil tenant fails the statement", func(t *testing.T) {
		var rows []ownedRow
		err := db.Scopes(TenantScope(uuid.Nil)).Find(&rows).Error
		assert.ErrorIs(t, err, ErrTenantIDRequired)
	})
}

func TestForTenant(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "owned_rows" WHERE tenant_id = $1`)).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

	var rows []ownedRow
	require.NoError(t, ForTenant(context.Background(), db, tenantID).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()
	require.NoError(t, EnableTenantGuard(db))

	tenantID := uuid.New()

	t.Run("rejects unscoped read of tenant table", func(t *testing.T) {
		var rows []ownedRow
		err := db.Where("name = ?", "x").Find(&rows).Error
		assert.ErrorIs(t, err, ErrTenantPredicateMissing)
	})

	t.Run("allows scoped read", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "owned_rows" WHERE tenant_id = \$1 AND name = \$2`).
			WithArgs(tenantID, "x").
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var rows []ownedRow
		err := db.Scopes(TenantScope(tenantID)).Where("name = ?", "x").Find(&rows).Error
		require.NoError(t, err)
	})

	t.Run("rejects unscoped update", func(t *testing.T) {
		err := db.Model(&ownedRow{}).Where("id = ?", uuid.New()).Update("name", "y").Error
		assert.ErrorIs(t, err, ErrTenantPredicateMissing)
	})

	t.Run("tenant predicate inside OR does not count", func(t *testing.T) {
		var rows []ownedRow
		err := db.Where("name = ?", "x").Or("tenant_id = ?", tenantID).Find(&rows).Error
		assert.ErrorIs(t, err, ErrTenantPredicateMissing)
	})

	t.Run("ignores tables without tenant column", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "shared_rows"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

		var rows []sharedRow
		require.NoError(t, db.Find(&rows).Error)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
