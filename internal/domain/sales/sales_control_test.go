package sales

import (
	"errors"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestControl(t *testing.T) *SalesControl {
	t.Helper()
	c, err := NewSalesControl(uuid.New(), "SC-2024-0001", uuid.New(), "Acme Corp")
	require.NoError(t, err)
	return c
}

func TestNewSalesControl(t *testing.T) {
	t.Run("creates pending control", func(t *testing.T) {
		tenantID := uuid.New()
		repID := uuid.New()

		c, err := NewSalesControl(tenantID, "SC-1", repID, "Acme")
		require.NoError(t, err)

		assert.Equal(t, tenantID, c.TenantID)
		assert.Equal(t, repID, c.AssignedTo)
		assert.Equal(t, ControlStatusPending, c.Status)
		assert.Nil(t, c.PaymentDate)
		assert.True(t, c.TotalAmount.IsZero())
		assert.Equal(t, 1, c.Version)
	})

	t.Run("rejects empty control number", func(t *testing.T) {
		_, err := NewSalesControl(uuid.New(), "", uuid.New(), "Acme")
		assert.Error(t, err)
	})

	t.Run("rejects missing assignee", func(t *testing.T) {
		_, err := NewSalesControl(uuid.New(), "SC-1", uuid.Nil, "Acme")
		assert.Error(t, err)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		_, err := NewSalesControl(uuid.Nil, "SC-1", uuid.New(), "Acme")
		assert.Error(t, err)
	})
}

func TestSalesControl_AddLine(t *testing.T) {
	t.Run("adds line and updates total", func(t *testing.T) {
		c := newTestControl(t)

		_, err := c.AddLine(uuid.New(), "Widgets", decimal.NewFromInt(100))
		require.NoError(t, err)
		_, err = c.AddLine(uuid.New(), "Gadgets", decimal.NewFromFloat(50.25))
		require.NoError(t, err)

		assert.Equal(t, 2, c.LineCount())
		assert.True(t, c.TotalAmount.Equal(decimal.NewFromFloat(150.25)))
		assert.Equal(t, c.ID, c.Lines[0].SalesControlID)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		c := newTestControl(t)
		_, err := c.AddLine(uuid.New(), "Refund", decimal.NewFromInt(-1))
		assert.Error(t, err)
	})

	t.Run("rejects empty product line", func(t *testing.T) {
		c := newTestControl(t)
		_, err := c.AddLine(uuid.Nil, "Nothing", decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("rejects lines after payment", func(t *testing.T) {
		c := newTestControl(t)
		_, err := c.AddLine(uuid.New(), "Widgets", decimal.NewFromInt(10))
		require.NoError(t, err)
		require.NoError(t, c.MarkPaid(time.Now()))

		_, err = c.AddLine(uuid.New(), "Late", decimal.NewFromInt(10))
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})
}

func TestSalesControl_MarkPaid(t *testing.T) {
	t.Run("records payment date and raises event", func(t *testing.T) {
		c := newTestControl(t)
		_, err := c.AddLine(uuid.New(), "Widgets", decimal.NewFromInt(100))
		require.NoError(t, err)

		paidAt := time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
		require.NoError(t, c.MarkPaid(paidAt))

		assert.Equal(t, ControlStatusPaid, c.Status)
		require.NotNil(t, c.PaymentDate)
		assert.True(t, c.PaymentDate.Equal(paidAt))
		assert.True(t, c.IsPaid())

		events := c.GetDomainEvents()
		require.Len(t, events, 1)
		paid, ok := events[0].(*SalesControlPaidEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeSalesControlPaid, paid.EventType())
		assert.Equal(t, c.ID, paid.SalesControlID)
		assert.Equal(t, c.TenantID, paid.TenantID())
		assert.True(t, paid.TotalAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("cannot be paid twice", func(t *testing.T) {
		c := newTestControl(t)
		_, err := c.AddLine(uuid.New(), "Widgets", decimal.NewFromInt(100))
		require.NoError(t, err)
		require.NoError(t, c.MarkPaid(time.Now()))

		err = c.MarkPaid(time.Now())
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		assert.Len(t, c.GetDomainEvents(), 1)
	})

	t.Run("requires lines", func(t *testing.T) {
		c := newTestControl(t)
		assert.Error(t, c.MarkPaid(time.Now()))
	})

	t.Run("requires a date", func(t *testing.T) {
		c := newTestControl(t)
		_, err := c.AddLine(uuid.New(), "Widgets", decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.Error(t, c.MarkPaid(time.Time{}))
	})
}

func TestSalesControl_Period(t *testing.T) {
	c := newTestControl(t)

	_, ok := c.Period()
	assert.False(t, ok)

	paidAt := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	c.PaymentDate = &paidAt

	p, ok := c.Period()
	require.True(t, ok)
	assert.Equal(t, 2024, p.Year())
	assert.Equal(t, time.December, p.Month())
}
