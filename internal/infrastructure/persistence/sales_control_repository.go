package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crm/backend/internal/domain/sales"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSalesControlRepository implements sales.SalesControlRepository using GORM
type GormSalesControlRepository struct {
	db *gorm.DB
}

// NewGormSalesControlRepository creates a new GormSalesControlRepository
func NewGormSalesControlRepository(db *gorm.DB) *GormSalesControlRepository {
	return &GormSalesControlRepository{db: db}
}

// FindActiveWithLines finds a live sales control of the tenant with its lines
func (r *GormSalesControlRepository) FindActiveWithLines(ctx context.Context, tenantID, id uuid.UUID) (*sales.SalesControl, error) {
	var model models.SalesControlModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a sales control and inserts any new lines
func (r *GormSalesControlRepository) Save(ctx context.Context, control *sales.SalesControl) error {
	model := models.SalesControlModelFromDomain(control)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(tenant.TenantScope(control.TenantID)).
			Omit(clause.Associations).
			Save(model).Error; err != nil {
			return err
		}
		return insertSalesControlLines(tx, model.Lines)
	})
}

// SaveWithLock updates the header with optimistic locking (version check)
// and inserts any new lines. Lines are never updated.
func (r *GormSalesControlRepository) SaveWithLock(ctx context.Context, control *sales.SalesControl) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var currentVersion int
		if err := tx.Model(&models.SalesControlModel{}).
			Scopes(tenant.TenantScope(control.TenantID)).
			Where("id = ?", control.ID).
			Select("version").
			Scan(&currentVersion).Error; err != nil {
			return err
		}
		if currentVersion == 0 {
			return shared.ErrNotFound
		}
		if currentVersion != control.Version {
			return shared.NewDomainError("CONCURRENCY_CONFLICT", "The sales control has been modified by another user")
		}

		nextVersion := control.Version + 1
		updatedAt := time.Now()

		result := tx.Model(&models.SalesControlModel{}).
			Scopes(tenant.TenantScope(control.TenantID)).
			Where("id = ? AND version = ?", control.ID, currentVersion).
			Updates(map[string]interface{}{
				"customer_name": control.CustomerName,
				"assigned_to":   control.AssignedTo,
				"total_amount":  control.TotalAmount,
				"status":        control.Status,
				"payment_date":  control.PaymentDate,
				"version":       nextVersion,
				"updated_at":    updatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("CONCURRENCY_CONFLICT", "The sales control has been modified by another user")
		}

		lines := make([]models.SalesControlLineModel, len(control.Lines))
		for i := range control.Lines {
			lines[i].FromDomain(&control.Lines[i])
			lines[i].SalesControlID = control.ID
		}
		if err := insertSalesControlLines(tx, lines); err != nil {
			return err
		}

		control.Version = nextVersion
		control.UpdatedAt = updatedAt
		return nil
	})
}

// SoftDelete marks a sales control deleted for the tenant
func (r *GormSalesControlRepository) SoftDelete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Where("id = ?", id).
		Delete(&models.SalesControlModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func insertSalesControlLines(tx *gorm.DB, lines []models.SalesControlLineModel) error {
	if len(lines) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lines).Error
}

// Ensure GormSalesControlRepository implements SalesControlRepository
var _ sales.SalesControlRepository = (*GormSalesControlRepository)(nil)
