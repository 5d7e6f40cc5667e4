package quota

import (
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPeriod(t *testing.T, year int, month time.Month) valueobject.Period {
	t.Helper()
	p, err := valueobject.NewPeriod(year, month)
	require.NoError(t, err)
	return p
}

func newTestQuota(t *testing.T, tenantID, userID uuid.UUID, targets map[uuid.UUID]int64) *Quota {
	t.Helper()
	q, err := NewQuota(tenantID, userID, mustPeriod(t, 2024, time.March))
	require.NoError(t, err)
	for productLineID, target := range targets {
		_, err := q.AddLine(productLineID, decimal.NewFromInt(target))
		require.NoError(t, err)
	}
	return q
}

func TestNewQuota(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	period := mustPeriod(t, 2024, time.March)

	t.Run("creates empty quota", func(t *testing.T) {
		q, err := NewQuota(tenantID, userID, period)
		require.NoError(t, err)
		assert.Equal(t, tenantID, q.TenantID)
		assert.Equal(t, userID, q.UserID)
		assert.Equal(t, 2024, q.Year)
		assert.Equal(t, 3, q.Month)
		assert.True(t, q.AchievedAmount.IsZero())
		assert.True(t, q.TargetAmount.IsZero())
		assert.Equal(t, 1, q.GetVersion())
		assert.True(t, q.Period().Equals(period))
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		_, err := NewQuota(uuid.Nil, userID, period)
		assert.Error(t, err)
	})

	t.Run("rejects missing user", func(t *testing.T) {
		_, err := NewQuota(tenantID, uuid.Nil, period)
		assert.Error(t, err)
	})

	t.Run("rejects zero period", func(t *testing.T) {
		_, err := NewQuota(tenantID, userID, valueobject.Period{})
		assert.Error(t, err)
	})
}

func TestQuota_AddLine(t *testing.T) {
	q := newTestQuota(t, uuid.New(), uuid.New(), nil)
	productLineA := uuid.New()

	line, err := q.AddLine(productLineA, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, q.ID, line.QuotaID)
	assert.True(t, q.TargetAmount.Equal(decimal.NewFromInt(500)))

	t.Run("rejects duplicate product line", func(t *testing.T) {
		_, err := q.AddLine(productLineA, decimal.NewFromInt(10))
		assert.Error(t, err)
		assert.Len(t, q.Lines, 1)
	})

	t.Run("rejects negative target", func(t *testing.T) {
		_, err := q.AddLine(uuid.New(), decimal.NewFromInt(-1))
		assert.Error(t, err)
	})
}

func TestQuota_ApplyAchievement(t *testing.T) {
	productLineA := uuid.New()
	productLineB := uuid.New()
	q := newTestQuota(t, uuid.New(), uuid.New(), map[uuid.UUID]int64{productLineA: 1000, productLineB: 400})

	t.Run("adds to matching line", func(t *testing.T) {
		line, ok := q.ApplyAchievement(productLineA, decimal.NewFromInt(100))
		require.True(t, ok)
		assert.True(t, line.AchievedAmount.Equal(decimal.NewFromInt(100)))
		assert.True(t, q.AchievedAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("accumulates monotonically", func(t *testing.T) {
		_, ok := q.ApplyAchievement(productLineA, decimal.RequireFromString("25.50"))
		require.True(t, ok)
		line, _ := q.LineForProductLine(productLineA)
		assert.True(t, line.AchievedAmount.Equal(decimal.RequireFromString("125.50")))
	})

	t.Run("unbudgeted product line is not applied", func(t *testing.T) {
		before := q.AchievedAmount
		line, ok := q.ApplyAchievement(uuid.New(), decimal.NewFromInt(50))
		assert.False(t, ok)
		assert.Nil(t, line)
		assert.True(t, q.AchievedAmount.Equal(before))
	})

	t.Run("aggregate equals sum of lines", func(t *testing.T) {
		_, _ = q.ApplyAchievement(productLineB, decimal.NewFromInt(40))
		assert.True(t, q.IsConsistent())
		assert.True(t, q.AchievedAmount.Equal(decimal.RequireFromString("165.50")))
	})
}

func TestQuota_RevertAchievement(t *testing.T) {
	productLineA := uuid.New()
	q := newTestQuota(t, uuid.New(), uuid.New(), map[uuid.UUID]int64{productLineA: 1000})
	line, _ := q.ApplyAchievement(productLineA, decimal.NewFromInt(100))
	lineID := line.ID

	t.Run("subtracts amount", func(t *testing.T) {
		removed, ok := q.RevertAchievement(lineID, decimal.NewFromInt(30))
		require.True(t, ok)
		assert.True(t, removed.Equal(decimal.NewFromInt(30)))
		assert.True(t, q.AchievedAmount.Equal(decimal.NewFromInt(70)))
	})

	t.Run("clamps at zero", func(t *testing.T) {
		removed, ok := q.RevertAchievement(lineID, decimal.NewFromInt(500))
		require.True(t, ok)
		assert.True(t, removed.Equal(decimal.NewFromInt(70)))
		assert.True(t, q.AchievedAmount.IsZero())
	})

	t.Run("unknown line", func(t *testing.T) {
		_, ok := q.RevertAchievement(uuid.New(), decimal.NewFromInt(1))
		assert.False(t, ok)
	})
}

func TestRecomputeAchieved(t *testing.T) {
	lines := []QuotaLine{
		{AchievedAmount: decimal.RequireFromString("10.25")},
		{AchievedAmount: decimal.RequireFromString("0")},
		{AchievedAmount: decimal.RequireFromString("89.75")},
	}
	assert.True(t, RecomputeAchieved(lines).Equal(decimal.NewFromInt(100)))
	assert.True(t, RecomputeAchieved(nil).IsZero())
}

func TestQuota_AchievementRate(t *testing.T) {
	productLineA := uuid.New()
	q := newTestQuota(t, uuid.New(), uuid.New(), map[uuid.UUID]int64{productLineA: 400})
	_, _ = q.ApplyAchievement(productLineA, decimal.NewFromInt(100))
	assert.True(t, q.AchievementRate().Equal(decimal.RequireFromString("0.25")))

	empty := newTestQuota(t, uuid.New(), uuid.New(), nil)
	assert.True(t, empty.AchievementRate().IsZero())
}
