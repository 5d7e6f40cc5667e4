package quota

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuotaLine is the target and running achievement for one product line
type QuotaLine struct {
	ID             uuid.UUID
	QuotaID        uuid.UUID
	ProductLineID  uuid.UUID
	TargetAmount   decimal.Decimal
	AchievedAmount decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewQuotaLine creates a quota line with zero achievement
func NewQuotaLine(quotaID, productLineID uuid.UUID, target decimal.Decimal) (*QuotaLine, error) {
	if productLineID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT_LINE", "Product line ID cannot be empty")
	}
	if target.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TARGET", "Target amount cannot be negative")
	}
	now := time.Now()
	return &QuotaLine{
		ID:             uuid.New(),
		QuotaID:        quotaID,
		ProductLineID:  productLineID,
		TargetAmount:   target,
		AchievedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Quota is a monthly sales target for one representative, broken down by
// product line. AchievedAmount and TargetAmount are derived from the lines.
//
// At most one live quota exists per (tenant, user, year, month) and at most
// one line per product line inside a quota.
type Quota struct {
	shared.TenantAggregateRoot
	UserID         uuid.UUID
	Year           int
	Month          int
	TargetAmount   decimal.Decimal
	AchievedAmount decimal.Decimal
	Lines          []QuotaLine
}

// NewQuota creates an empty quota for a representative and period
func NewQuota(tenantID, userID uuid.UUID, period valueobject.Period) (*Quota, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if period.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Quota period cannot be empty")
	}

	return &Quota{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		UserID:              userID,
		Year:                period.Year(),
		Month:               period.MonthNumber(),
		TargetAmount:        decimal.Zero,
		AchievedAmount:      decimal.Zero,
		Lines:               make([]QuotaLine, 0),
	}, nil
}

// Period returns the calendar period the quota covers
func (q *Quota) Period() valueobject.Period {
	p, err := valueobject.NewPeriod(q.Year, time.Month(q.Month))
	if err != nil {
		return valueobject.Period{}
	}
	return p
}

// AddLine budgets a product line. A product line may appear only once.
func (q *Quota) AddLine(productLineID uuid.UUID, target decimal.Decimal) (*QuotaLine, error) {
	if _, ok := q.LineForProductLine(productLineID); ok {
		return nil, shared.NewDomainError("DUPLICATE_PRODUCT_LINE", "Product line already budgeted in this quota")
	}

	line, err := NewQuotaLine(q.ID, productLineID, target)
	if err != nil {
		return nil, err
	}

	q.Lines = append(q.Lines, *line)
	q.RecomputeAggregates()
	q.Touch()

	return &q.Lines[len(q.Lines)-1], nil
}

// LineForProductLine finds the line budgeting productLineID
func (q *Quota) LineForProductLine(productLineID uuid.UUID) (*QuotaLine, bool) {
	for i := range q.Lines {
		if q.Lines[i].ProductLineID == productLineID {
			return &q.Lines[i], true
		}
	}
	return nil, false
}

// LineByID finds a line by its own ID
func (q *Quota) LineByID(lineID uuid.UUID) (*QuotaLine, bool) {
	for i := range q.Lines {
		if q.Lines[i].ID == lineID {
			return &q.Lines[i], true
		}
	}
	return nil, false
}

// ApplyAchievement adds amount to the line budgeting productLineID and
// recomputes the aggregates. It returns the touched line, or false when the
// product line is not budgeted, in which case nothing changes.
func (q *Quota) ApplyAchievement(productLineID uuid.UUID, amount decimal.Decimal) (*QuotaLine, bool) {
	line, ok := q.LineForProductLine(productLineID)
	if !ok {
		return nil, false
	}

	now := time.Now()
	line.AchievedAmount = line.AchievedAmount.Add(amount)
	line.UpdatedAt = now
	q.RecomputeAggregates()
	q.UpdatedAt = now

	return line, true
}

// RevertAchievement subtracts amount from a line, never going below zero.
// It returns the amount actually removed and whether the line exists.
func (q *Quota) RevertAchievement(lineID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, bool) {
	line, ok := q.LineByID(lineID)
	if !ok {
		return decimal.Zero, false
	}

	removed := decimal.Min(amount, line.AchievedAmount)
	if removed.IsNegative() {
		removed = decimal.Zero
	}

	now := time.Now()
	line.AchievedAmount = line.AchievedAmount.Sub(removed)
	line.UpdatedAt = now
	q.RecomputeAggregates()
	q.UpdatedAt = now

	return removed, true
}

// RecomputeAggregates rebuilds the quota totals from the full line set
func (q *Quota) RecomputeAggregates() {
	q.AchievedAmount = RecomputeAchieved(q.Lines)
	q.TargetAmount = RecomputeTarget(q.Lines)
}

// AchievementRate returns achieved/target, or zero when there is no target
func (q *Quota) AchievementRate() decimal.Decimal {
	if q.TargetAmount.IsZero() {
		return decimal.Zero
	}
	return q.AchievedAmount.Div(q.TargetAmount).Round(4)
}

// IsConsistent reports whether the stored aggregate equals the sum of its lines
func (q *Quota) IsConsistent() bool {
	return q.AchievedAmount.Equal(RecomputeAchieved(q.Lines))
}

// RecomputeAchieved sums the achieved amount over every line
func RecomputeAchieved(lines []QuotaLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.AchievedAmount)
	}
	return total
}

// RecomputeTarget sums the target amount over every line
func RecomputeTarget(lines []QuotaLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TargetAmount)
	}
	return total
}
