// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain/FromDomain convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, TenantAggregateModel)
// - sales.go: Sales control and its lines
// - quota.go: Quota, quota lines and the reconciliation ledger
package models

// All returns every model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&SalesControlModel{},
		&SalesControlLineModel{},
		&QuotaModel{},
		&QuotaLineModel{},
		&QuotaReconciliationModel{},
		&QuotaReconciliationLineModel{},
	}
}
