package persistence

import (
	"context"
	"errors"

	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReconciliationLedger implements quota.ReconciliationLedger using GORM.
// A unique index on (tenant_id, sales_control_id) backs the one-entry rule.
type GormReconciliationLedger struct {
	db *gorm.DB
}

// NewGormReconciliationLedger creates a new GormReconciliationLedger
func NewGormReconciliationLedger(db *gorm.DB) *GormReconciliationLedger {
	return &GormReconciliationLedger{db: db}
}

// Find returns the ledger entry of a sales control
func (l *GormReconciliationLedger) Find(ctx context.Context, tenantID, salesControlID uuid.UUID) (*quota.Reconciliation, error) {
	var model models.QuotaReconciliationModel
	if err := l.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Preload("Lines").
		Where("sales_control_id = ?", salesControlID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Append stores a new entry with its lines. A second entry for the same
// sales control yields shared.ErrAlreadyExists.
func (l *GormReconciliationLedger) Append(ctx context.Context, entry *quota.Reconciliation) error {
	model := models.QuotaReconciliationModelFromDomain(entry)
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Remove deletes an entry and its lines
func (l *GormReconciliationLedger) Remove(ctx context.Context, tenantID, id uuid.UUID) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Scopes(tenant.TenantScope(tenantID)).
			Where("id = ?", id).
			Delete(&models.QuotaReconciliationModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return tx.Where("reconciliation_id = ?", id).
			Delete(&models.QuotaReconciliationLineModel{}).Error
	})
}

// Ensure GormReconciliationLedger implements ReconciliationLedger
var _ quota.ReconciliationLedger = (*GormReconciliationLedger)(nil)
