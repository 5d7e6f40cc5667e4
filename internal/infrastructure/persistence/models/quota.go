package models

import (
	"time"

	"github.com/crm/backend/internal/domain/quota"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuotaModel is the persistence model for the Quota aggregate root.
// Uniqueness of the live (tenant, user, year, month) row is a partial index
// created by AutoMigrate.
type QuotaModel struct {
	TenantAggregateModel
	UserID         uuid.UUID        `gorm:"type:uuid;not null;index"`
	Year           int              `gorm:"not null"`
	Month          int              `gorm:"not null"`
	TargetAmount   decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	AchievedAmount decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Lines          []QuotaLineModel `gorm:"foreignKey:QuotaID;references:ID"`
}

// TableName returns the table name for GORM
func (QuotaModel) TableName() string {
	return "quotas"
}

// ToDomain converts the persistence model to a domain Quota.
func (m *QuotaModel) ToDomain() *quota.Quota {
	q := &quota.Quota{
		UserID:         m.UserID,
		Year:           m.Year,
		Month:          m.Month,
		TargetAmount:   m.TargetAmount,
		AchievedAmount: m.AchievedAmount,
		Lines:          make([]quota.QuotaLine, len(m.Lines)),
	}
	m.PopulateTenantAggregateRoot(&q.TenantAggregateRoot)
	for i := range m.Lines {
		q.Lines[i] = *m.Lines[i].ToDomain()
	}
	return q
}

// FromDomain populates the persistence model from a domain Quota.
func (m *QuotaModel) FromDomain(q *quota.Quota) {
	m.FromDomainTenantAggregateRoot(q.TenantAggregateRoot)
	m.UserID = q.UserID
	m.Year = q.Year
	m.Month = q.Month
	m.TargetAmount = q.TargetAmount
	m.AchievedAmount = q.AchievedAmount
	m.Lines = make([]QuotaLineModel, len(q.Lines))
	for i := range q.Lines {
		m.Lines[i].FromDomain(&q.Lines[i])
		m.Lines[i].QuotaID = q.ID
	}
}

// QuotaModelFromDomain creates a new persistence model from domain Quota.
func QuotaModelFromDomain(q *quota.Quota) *QuotaModel {
	m := &QuotaModel{}
	m.FromDomain(q)
	return m
}

// QuotaLineModel is the persistence model for QuotaLine.
type QuotaLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	QuotaID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_quota_line_product,priority:1"`
	ProductLineID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_quota_line_product,priority:2"`
	TargetAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AchievedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (QuotaLineModel) TableName() string {
	return "quota_lines"
}

// ToDomain converts the persistence model to a domain QuotaLine.
func (m *QuotaLineModel) ToDomain() *quota.QuotaLine {
	return &quota.QuotaLine{
		ID:             m.ID,
		QuotaID:        m.QuotaID,
		ProductLineID:  m.ProductLineID,
		TargetAmount:   m.TargetAmount,
		AchievedAmount: m.AchievedAmount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain QuotaLine.
func (m *QuotaLineModel) FromDomain(l *quota.QuotaLine) {
	m.ID = l.ID
	m.QuotaID = l.QuotaID
	m.ProductLineID = l.ProductLineID
	m.TargetAmount = l.TargetAmount
	m.AchievedAmount = l.AchievedAmount
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}

// QuotaReconciliationModel is the ledger row for one applied sales control.
type QuotaReconciliationModel struct {
	ID             uuid.UUID                      `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:idx_quota_reconciliation_sales_control,priority:1"`
	SalesControlID uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:idx_quota_reconciliation_sales_control,priority:2"`
	QuotaID        uuid.UUID                      `gorm:"type:uuid;not null;index"`
	Year           int                            `gorm:"not null"`
	Month          int                            `gorm:"not null"`
	AppliedAmount  decimal.Decimal                `gorm:"type:decimal(18,4);not null;default:0"`
	ReconciledAt   time.Time                      `gorm:"not null"`
	Lines          []QuotaReconciliationLineModel `gorm:"foreignKey:ReconciliationID;references:ID"`
}

// TableName returns the table name for GORM
func (QuotaReconciliationModel) TableName() string {
	return "quota_reconciliations"
}

// ToDomain converts the persistence model to a domain Reconciliation.
func (m *QuotaReconciliationModel) ToDomain() *quota.Reconciliation {
	r := &quota.Reconciliation{
		ID:             m.ID,
		TenantID:       m.TenantID,
		QuotaID:        m.QuotaID,
		SalesControlID: m.SalesControlID,
		Year:           m.Year,
		Month:          m.Month,
		AppliedAmount:  m.AppliedAmount,
		ReconciledAt:   m.ReconciledAt,
		Lines:          make([]quota.AppliedLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		r.Lines[i] = quota.AppliedLine{
			QuotaLineID:        l.QuotaLineID,
			SalesControlLineID: l.SalesControlLineID,
			Amount:             l.Amount,
		}
	}
	return r
}

// QuotaReconciliationModelFromDomain creates a new persistence model from a ledger entry.
func QuotaReconciliationModelFromDomain(r *quota.Reconciliation) *QuotaReconciliationModel {
	m := &QuotaReconciliationModel{
		ID:             r.ID,
		TenantID:       r.TenantID,
		SalesControlID: r.SalesControlID,
		QuotaID:        r.QuotaID,
		Year:           r.Year,
		Month:          r.Month,
		AppliedAmount:  r.AppliedAmount,
		ReconciledAt:   r.ReconciledAt,
		Lines:          make([]QuotaReconciliationLineModel, len(r.Lines)),
	}
	for i, l := range r.Lines {
		m.Lines[i] = QuotaReconciliationLineModel{
			ID:                 uuid.New(),
			ReconciliationID:   r.ID,
			QuotaLineID:        l.QuotaLineID,
			SalesControlLineID: l.SalesControlLineID,
			Amount:             l.Amount,
		}
	}
	return m
}

// QuotaReconciliationLineModel is one applied amount of a ledger row.
type QuotaReconciliationLineModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReconciliationID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	QuotaLineID        uuid.UUID       `gorm:"type:uuid;not null"`
	SalesControlLineID uuid.UUID       `gorm:"type:uuid;not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (QuotaReconciliationLineModel) TableName() string {
	return "quota_reconciliation_lines"
}
