package metrictype

import (
	"context"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
)

// CounterMetric counts occurrences
type CounterMetric struct {
	base
}

// NewCounter creates a counter metric handle
func NewCounter(ctx *core.Context, meta types.CommonMetricData) *CounterMetric {
	return &CounterMetric{base: newBase(ctx, meta, types.MetricTypeCounter)}
}

// Add increases the counter by amount. Non-positive amounts are counted as
// invalid_value errors.
func (m *CounterMetric) Add(amount int64) {
	m.launch(func(context.Context) error {
		return m.AddUndispatched(amount)
	})
}

// AddUndispatched adds amount from inside an already dispatched task
func (m *CounterMetric) AddUndispatched(amount int64) error {
	if !m.shouldRecord() {
		return nil
	}
	if verr := metricvalue.CounterAmount(amount); verr != nil {
		return m.recordError(verr)
	}

	return m.ctx.Metrics.Transform(m.recordingMeta(), m.metricType, func(old any) any {
		current, err := metricvalue.Validate(m.metricType, old)
		if err != nil {
			return amount
		}
		return metricvalue.AddToCounter(current.(int64), amount)
	})
}

// TestGetValue returns the stored count in ping
func (m *CounterMetric) TestGetValue(ping string) (int64, bool) {
	n, ok := m.testGetValue(ping).(int64)
	return n, ok
}
