package metrictype

import (
	"context"
	"time"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
)

// DatetimeMetric records a point in time at a given resolution
type DatetimeMetric struct {
	base
	unit metricvalue.TimeUnit
}

// NewDatetime creates a datetime metric handle
func NewDatetime(ctx *core.Context, meta types.CommonMetricData, unit metricvalue.TimeUnit) *DatetimeMetric {
	return &DatetimeMetric{base: newBase(ctx, meta, types.MetricTypeDatetime), unit: unit}
}

// Set records t, or the current time if t is zero
func (m *DatetimeMetric) Set(t time.Time) {
	if t.IsZero() {
		t = m.ctx.Clock.Now()
	}
	m.launch(func(context.Context) error {
		return m.SetUndispatched(t)
	})
}

// SetUndispatched records t from inside an already dispatched task
func (m *DatetimeMetric) SetUndispatched(t time.Time) error {
	if !m.shouldRecord() {
		return nil
	}
	return m.ctx.Metrics.Record(m.recordingMeta(), m.metricType, metricvalue.Datetime(t, m.unit))
}

// TestGetValue returns the stored datetime in its payload form
func (m *DatetimeMetric) TestGetValue(ping string) (string, bool) {
	v, ok := m.testGetValue(ping).(string)
	return v, ok
}

// TimespanMetric measures one duration per ping
type TimespanMetric struct {
	base
	unit metricvalue.TimeUnit
	// start is only touched from dispatched tasks
	start *int64
}

// NewTimespan creates a timespan metric handle
func NewTimespan(ctx *core.Context, meta types.CommonMetricData, unit metricvalue.TimeUnit) *TimespanMetric {
	return &TimespanMetric{base: newBase(ctx, meta, types.MetricTypeTimespan), unit: unit}
}

// Start begins measuring. Starting twice is an invalid_state error.
func (m *TimespanMetric) Start() {
	now := m.ctx.Monotonic.Nanos()
	m.launch(func(context.Context) error {
		if !m.shouldRecord() {
			return nil
		}
		if m.start != nil {
			return m.recordError(metricvalue.NewValidationError(types.ErrorTypeInvalidState,
				"Timespan already started"))
		}
		m.start = &now
		return nil
	})
}

// Stop ends the measurement and records the elapsed time
func (m *TimespanMetric) Stop() {
	now := m.ctx.Monotonic.Nanos()
	m.launch(func(context.Context) error {
		if !m.shouldRecord() {
			m.start = nil
			return nil
		}
		if m.start == nil {
			return m.recordError(metricvalue.NewValidationError(types.ErrorTypeInvalidState,
				"Timespan not running"))
		}
		elapsed := time.Duration(now - *m.start)
		m.start = nil
		return m.setRaw(elapsed)
	})
}

// Cancel aborts a running measurement without recording anything
func (m *TimespanMetric) Cancel() {
	m.launch(func(context.Context) error {
		m.start = nil
		return nil
	})
}

// SetRawNanos records an externally measured duration
func (m *TimespanMetric) SetRawNanos(elapsed int64) {
	m.launch(func(context.Context) error {
		if !m.shouldRecord() {
			return nil
		}
		if m.start != nil {
			return m.recordError(metricvalue.NewValidationError(types.ErrorTypeInvalidState,
				"Timespan already running, raw value not recorded"))
		}
		return m.setRaw(time.Duration(elapsed))
	})
}

func (m *TimespanMetric) setRaw(elapsed time.Duration) error {
	meta := m.recordingMeta()
	for _, ping := range meta.SendInPings {
		if m.ctx.Metrics.HasMetric(meta.EffectiveLifetime(), ping, m.metricType, meta.Identifier()) {
			return m.recordError(metricvalue.NewValidationError(types.ErrorTypeInvalidState,
				"Timespan value already recorded, not overwriting"))
		}
	}

	value, verr := metricvalue.Timespan(elapsed, m.unit)
	if verr != nil {
		return m.recordError(verr)
	}
	return m.ctx.Metrics.Record(meta, m.metricType, value)
}

// TestGetValue returns the recorded duration in the metric's unit
func (m *TimespanMetric) TestGetValue(ping string) (int64, bool) {
	v, ok := m.testGetValue(ping).(map[string]any)
	if !ok {
		return 0, false
	}
	n, ok := v["value"].(int64)
	return n, ok
}
