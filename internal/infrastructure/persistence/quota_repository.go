package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crm/backend/internal/domain/quota"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormQuotaRepository implements quota.QuotaRepository using GORM.
// The ForUpdate finders take a row lock (SELECT ... FOR UPDATE) that is held
// until the surrounding transaction ends. SQLite ignores the lock clause.
type GormQuotaRepository struct {
	db *gorm.DB
}

// NewGormQuotaRepository creates a new GormQuotaRepository
func NewGormQuotaRepository(db *gorm.DB) *GormQuotaRepository {
	return &GormQuotaRepository{db: db}
}

func (r *GormQuotaRepository) lockedQuery(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(tenant.TenantScope(tenantID)).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

// FindForPeriodForUpdate finds the live quota of a user for a period.
// Should duplicates exist, the oldest row wins.
func (r *GormQuotaRepository) FindForPeriodForUpdate(ctx context.Context, tenantID, userID uuid.UUID, period valueobject.Period) (*quota.Quota, error) {
	var model models.QuotaModel
	if err := r.lockedQuery(ctx, tenantID).
		Where("user_id = ? AND year = ? AND month = ?", userID, period.Year(), period.MonthNumber()).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a live quota by ID
func (r *GormQuotaRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*quota.Quota, error) {
	var model models.QuotaModel
	if err := r.lockedQuery(ctx, tenantID).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or replaces a quota with its lines. Lines missing from the
// aggregate are removed.
func (r *GormQuotaRepository) Save(ctx context.Context, q *quota.Quota) error {
	model := models.QuotaModelFromDomain(q)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(tenant.TenantScope(q.TenantID)).
			Omit(clause.Associations).
			Save(model).Error; err != nil {
			return err
		}

		lineIDs := make([]uuid.UUID, len(model.Lines))
		for i := range model.Lines {
			lineIDs[i] = model.Lines[i].ID
		}
		stale := tx.Where("quota_id = ?", q.ID)
		if len(lineIDs) > 0 {
			stale = stale.Where("id NOT IN ?", lineIDs)
		}
		if err := stale.Delete(&models.QuotaLineModel{}).Error; err != nil {
			return err
		}

		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_amount", "achieved_amount", "updated_at"}),
		}).Create(&model.Lines).Error
	})
}

// SaveAchievement writes each line's achieved amount and the quota
// aggregates, guarded by the quota version. On success q.Version is bumped.
func (r *GormQuotaRepository) SaveAchievement(ctx context.Context, q *quota.Quota) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nextVersion := q.Version + 1
		updatedAt := time.Now()

		result := tx.Model(&models.QuotaModel{}).
			Scopes(tenant.TenantScope(q.TenantID)).
			Where("id = ? AND version = ?", q.ID, q.Version).
			Updates(map[string]interface{}{
				"achieved_amount": q.AchievedAmount,
				"target_amount":   q.TargetAmount,
				"version":         nextVersion,
				"updated_at":      updatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		for i := range q.Lines {
			line := &q.Lines[i]
			res := tx.Model(&models.QuotaLineModel{}).
				Where("id = ? AND quota_id = ?", line.ID, q.ID).
				Updates(map[string]interface{}{
					"achieved_amount": line.AchievedAmount,
					"updated_at":      line.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return shared.NewDomainError("QUOTA_LINE_NOT_FOUND", "Quota line no longer exists")
			}
		}

		q.Version = nextVersion
		q.UpdatedAt = updatedAt
		return nil
	})
}

// Ensure GormQuotaRepository implements QuotaRepository
var _ quota.QuotaRepository = (*GormQuotaRepository)(nil)
