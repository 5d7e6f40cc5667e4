package valueobject

import (
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// Period is a calendar month of a calendar year. There is no fiscal-year
// remapping: January is always month 1 of its own year.
type Period struct {
	year  int
	month time.Month
}

// NewPeriod creates a period, validating the month range
func NewPeriod(year int, month time.Month) (Period, error) {
	if year <= 0 {
		return Period{}, shared.NewDomainError("INVALID_PERIOD", "Year must be positive")
	}
	if month < time.January || month > time.December {
		return Period{}, shared.NewDomainError("INVALID_PERIOD", "Month must be between 1 and 12")
	}
	return Period{year: year, month: month}, nil
}

// PeriodOf returns the calendar period containing t, read in t's own location
func PeriodOf(t time.Time) Period {
	return Period{year: t.Year(), month: t.Month()}
}

// Year returns the calendar year
func (p Period) Year() int {
	return p.year
}

// Month returns the calendar month
func (p Period) Month() time.Month {
	return p.month
}

// MonthNumber returns the month as 1..12
func (p Period) MonthNumber() int {
	return int(p.month)
}

// IsZero reports whether the period was never set
func (p Period) IsZero() bool {
	return p.year == 0 && p.month == 0
}

// Equals compares two periods
func (p Period) Equals(other Period) bool {
	return p.year == other.year && p.month == other.month
}

// Start returns the first instant of the period in loc
func (p Period) Start(loc *time.Location) time.Time {
	return time.Date(p.year, p.month, 1, 0, 0, 0, 0, loc)
}

// Contains reports whether t falls inside the period
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t).Equals(p)
}

// String formats the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.year, int(p.month))
}
