package models

import (
	"time"

	"github.com/crm/backend/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesControlModel is the persistence model for the SalesControl aggregate root.
type SalesControlModel struct {
	TenantAggregateModel
	ControlNumber string                  `gorm:"type:varchar(50);not null;index"`
	CustomerName  string                  `gorm:"type:varchar(200)"`
	AssignedTo    uuid.UUID               `gorm:"type:uuid;not null;index"`
	Lines         []SalesControlLineModel `gorm:"foreignKey:SalesControlID;references:ID"`
	TotalAmount   decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	Status        sales.ControlStatus     `gorm:"type:varchar(20);not null;default:'PENDING'"`
	PaymentDate   *time.Time              `gorm:"index"`
}

// TableName returns the table name for GORM
func (SalesControlModel) TableName() string {
	return "sales_controls"
}

// ToDomain converts the persistence model to a domain SalesControl.
func (m *SalesControlModel) ToDomain() *sales.SalesControl {
	sc := &sales.SalesControl{
		ControlNumber: m.ControlNumber,
		CustomerName:  m.CustomerName,
		AssignedTo:    m.AssignedTo,
		TotalAmount:   m.TotalAmount,
		Status:        m.Status,
		PaymentDate:   m.PaymentDate,
		Lines:         make([]sales.SalesControlLine, len(m.Lines)),
	}
	m.PopulateTenantAggregateRoot(&sc.TenantAggregateRoot)
	for i := range m.Lines {
		sc.Lines[i] = *m.Lines[i].ToDomain()
	}
	return sc
}

// FromDomain populates the persistence model from a domain SalesControl.
func (m *SalesControlModel) FromDomain(sc *sales.SalesControl) {
	m.FromDomainTenantAggregateRoot(sc.TenantAggregateRoot)
	m.ControlNumber = sc.ControlNumber
	m.CustomerName = sc.CustomerName
	m.AssignedTo = sc.AssignedTo
	m.TotalAmount = sc.TotalAmount
	m.Status = sc.Status
	m.PaymentDate = sc.PaymentDate
	m.Lines = make([]SalesControlLineModel, len(sc.Lines))
	for i := range sc.Lines {
		m.Lines[i].FromDomain(&sc.Lines[i])
		m.Lines[i].SalesControlID = sc.ID
	}
}

// SalesControlModelFromDomain creates a new persistence model from domain SalesControl.
func SalesControlModelFromDomain(sc *sales.SalesControl) *SalesControlModel {
	m := &SalesControlModel{}
	m.FromDomain(sc)
	return m
}

// SalesControlLineModel is the persistence model for SalesControlLine.
// Lines are insert-only.
type SalesControlLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SalesControlID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductLineID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description    string          `gorm:"type:varchar(200)"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesControlLineModel) TableName() string {
	return "sales_control_lines"
}

// ToDomain converts the persistence model to a domain SalesControlLine.
func (m *SalesControlLineModel) ToDomain() *sales.SalesControlLine {
	return &sales.SalesControlLine{
		ID:             m.ID,
		SalesControlID: m.SalesControlID,
		ProductLineID:  m.ProductLineID,
		Description:    m.Description,
		Amount:         m.Amount,
		CreatedAt:      m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SalesControlLine.
func (m *SalesControlLineModel) FromDomain(l *sales.SalesControlLine) {
	m.ID = l.ID
	m.SalesControlID = l.SalesControlID
	m.ProductLineID = l.ProductLineID
	m.Description = l.Description
	m.Amount = l.Amount
	m.CreatedAt = l.CreatedAt
}
