package sales

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ControlStatus represents the payment status of a sales control
type ControlStatus string

const (
	ControlStatusPending ControlStatus = "PENDING"
	ControlStatusPaid    ControlStatus = "PAID"
)

// IsValid checks if the status is a known ControlStatus
func (s ControlStatus) IsValid() bool {
	switch s {
	case ControlStatusPending, ControlStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of ControlStatus
func (s ControlStatus) String() string {
	return string(s)
}

// SalesControlLine is one product line of a sales control.
// Lines are immutable once created; nothing in the domain mutates them.
type SalesControlLine struct {
	ID             uuid.UUID
	SalesControlID uuid.UUID
	ProductLineID  uuid.UUID
	Description    string
	Amount         decimal.Decimal
	CreatedAt      time.Time
}

// NewSalesControlLine creates a validated sales control line
func NewSalesControlLine(salesControlID, productLineID uuid.UUID, description string, amount decimal.Decimal) (*SalesControlLine, error) {
	if productLineID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT_LINE", "Product line ID cannot be empty")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Line amount cannot be negative")
	}
	return &SalesControlLine{
		ID:             uuid.New(),
		SalesControlID: salesControlID,
		ProductLineID:  productLineID,
		Description:    description,
		Amount:         amount,
		CreatedAt:      time.Now(),
	}, nil
}

// SalesControl is a purchase order placed with a sales representative.
// It becomes an immutable reconciliation input once its payment date is set.
type SalesControl struct {
	shared.TenantAggregateRoot
	ControlNumber string
	CustomerName  string
	AssignedTo    uuid.UUID // sales representative credited with the sale
	Lines         []SalesControlLine
	TotalAmount   decimal.Decimal
	Status        ControlStatus
	PaymentDate   *time.Time
}

// NewSalesControl creates a pending sales control
func NewSalesControl(tenantID uuid.UUID, controlNumber string, assignedTo uuid.UUID, customerName string) (*SalesControl, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if controlNumber == "" {
		return nil, shared.NewDomainError("INVALID_CONTROL_NUMBER", "Control number cannot be empty")
	}
	if len(controlNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_CONTROL_NUMBER", "Control number cannot exceed 50 characters")
	}
	if assignedTo == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ASSIGNEE", "Assigned sales representative cannot be empty")
	}

	return &SalesControl{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ControlNumber:       controlNumber,
		CustomerName:        customerName,
		AssignedTo:          assignedTo,
		Lines:               make([]SalesControlLine, 0),
		TotalAmount:         decimal.Zero,
		Status:              ControlStatusPending,
	}, nil
}

// AddLine appends a product line. Only pending controls accept new lines.
func (c *SalesControl) AddLine(productLineID uuid.UUID, description string, amount decimal.Decimal) (*SalesControlLine, error) {
	if c.Status != ControlStatusPending {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add lines to a paid sales control")
	}

	line, err := NewSalesControlLine(c.ID, productLineID, description, amount)
	if err != nil {
		return nil, err
	}

	c.Lines = append(c.Lines, *line)
	c.TotalAmount = c.TotalAmount.Add(line.Amount)
	c.Touch()

	return line, nil
}

// MarkPaid records the payment date and moves the control to PAID.
// A control can only be marked paid once; the SalesControlPaid event it raises
// is what triggers quota reconciliation.
func (c *SalesControl) MarkPaid(paymentDate time.Time) error {
	if c.Status == ControlStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Sales control is already paid")
	}
	if paymentDate.IsZero() {
		return shared.NewDomainError("INVALID_PAYMENT_DATE", "Payment date cannot be empty")
	}
	if len(c.Lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Cannot mark a sales control without lines as paid")
	}

	paid := paymentDate
	c.PaymentDate = &paid
	c.Status = ControlStatusPaid
	c.Touch()

	c.AddDomainEvent(NewSalesControlPaidEvent(c))
	return nil
}

// IsPaid reports whether a payment date has been recorded
func (c *SalesControl) IsPaid() bool {
	return c.PaymentDate != nil
}

// Period returns the calendar period of the payment date.
// The second return value is false when the control has no payment date.
func (c *SalesControl) Period() (valueobject.Period, bool) {
	if c.PaymentDate == nil {
		return valueobject.Period{}, false
	}
	return valueobject.PeriodOf(*c.PaymentDate), true
}

// LineCount returns the number of lines
func (c *SalesControl) LineCount() int {
	return len(c.Lines)
}
