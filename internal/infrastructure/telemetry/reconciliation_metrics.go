package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Reconciliation operations used as the "operation" label.
const (
	OperationReconcile   = "reconcile"
	OperationUnreconcile = "unreconcile"
)

// AttrOperation labels which reconciliation operation produced a sample.
var AttrOperation = attribute.Key("operation")

// ReconcileSample is one finished reconcile or unreconcile call.
type ReconcileSample struct {
	Operation    string
	Outcome      string
	Trigger      string
	MatchedLines int
	SkippedLines int
	Amount       decimal.Decimal
	Duration     time.Duration
}

// ReconciliationMetrics holds the instruments for quota reconciliation.
// A nil *ReconciliationMetrics records nothing.
type ReconciliationMetrics struct {
	reconcileTotal *Counter
	matchedTotal   *Counter
	skippedTotal   *Counter
	amountTotal    *FloatCounter
	duration       *Histogram
}

// NewReconciliationMetrics creates the reconciliation instruments on meter.
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   ReconciliationMetrics
		err error
	)

	m.reconcileTotal, err = NewCounter(meter,
		"crm_quota_reconcile_total",
		"Reconciliation calls by operation and outcome",
		"{call}",
	)
	if err != nil {
		return nil, err
	}

	m.matchedTotal, err = NewCounter(meter,
		"crm_quota_lines_matched_total",
		"Sales control lines applied to a quota line",
		"{line}",
	)
	if err != nil {
		return nil, err
	}

	m.skippedTotal, err = NewCounter(meter,
		"crm_quota_lines_skipped_total",
		"Sales control lines with no matching quota line",
		"{line}",
	)
	if err != nil {
		return nil, err
	}

	m.amountTotal, err = NewFloatCounter(meter,
		"crm_quota_achieved_amount_total",
		"Amount added to or removed from quota achievement",
		"{amount}",
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "crm_quota_reconcile_duration_seconds",
		Description: "Latency of one reconciliation unit of work",
		Unit:        "s",
		Boundaries:  ReconcileDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// Record records one finished call.
func (m *ReconciliationMetrics) Record(ctx context.Context, s ReconcileSample) {
	if m == nil {
		return
	}

	op := AttrOperation.String(s.Operation)
	m.reconcileTotal.Inc(ctx, op, AttrOutcome.String(s.Outcome), AttrTrigger.String(s.Trigger))
	m.duration.RecordDuration(ctx, s.Duration, op)

	if s.MatchedLines > 0 {
		m.matchedTotal.Add(ctx, int64(s.MatchedLines), op)
	}
	if s.SkippedLines > 0 {
		m.skippedTotal.Add(ctx, int64(s.SkippedLines), op)
	}
	if s.Amount.IsPositive() {
		m.amountTotal.Add(ctx, s.Amount.InexactFloat64(), op)
	}
}
