// Package tenant provides multi-tenant database scoping for GORM.
//
// Repositories apply TenantScope explicitly to every query on a tenant-owned
// table. EnableTenantGuard registers callbacks that reject any query on such a
// table that reaches the database without a tenant_id predicate.
//
// Usage:
//
//	db.WithContext(ctx).Scopes(tenant.TenantScope(tenantID)).First(&quota)
package tenant

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when a tenant ID is required but empty
var ErrTenantIDRequired = errors.New("tenant_id is required")

// Column is the tenant column every tenant-owned table carries
const Column = "tenant_id"

// TenantScope applies tenant filtering to GORM queries.
// A nil tenant ID fails the statement instead of matching nothing silently.
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(Column+" = ?", tenantID)
	}
}

// ForTenant returns a session bound to ctx and scoped to tenantID.
// The tenant ID is also attached to the context so GORM logs carry it.
func ForTenant(ctx context.Context, db *gorm.DB, tenantID uuid.UUID) *gorm.DB {
	ctx = logger.WithTenantID(ctx, tenantID.String())
	return db.WithContext(ctx).Scopes(TenantScope(tenantID))
}
