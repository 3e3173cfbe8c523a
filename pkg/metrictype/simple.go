package metrictype

import (
	"context"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
	"github.com/google/uuid"
)

// BooleanMetric records a flag
type BooleanMetric struct {
	base
}

// NewBoolean creates a boolean metric handle
func NewBoolean(ctx *core.Context, meta types.CommonMetricData) *BooleanMetric {
	return &BooleanMetric{base: newBase(ctx, meta, types.MetricTypeBoolean)}
}

// Set records value
func (m *BooleanMetric) Set(value bool) {
	m.launch(func(context.Context) error {
		if !m.shouldRecord() {
			return nil
		}
		return m.ctx.Metrics.Record(m.recordingMeta(), m.metricType, value)
	})
}

// TestGetValue returns the stored flag in ping
func (m *BooleanMetric) TestGetValue(ping string) (bool, bool) {
	v, ok := m.testGetValue(ping).(bool)
	return v, ok
}

// StringMetric records a short string, truncated to 100 characters
type StringMetric struct {
	base
}

// NewString creates a string metric handle
func NewString(ctx *core.Context, meta types.CommonMetricData) *StringMetric {
	return &StringMetric{base: newBase(ctx, meta, types.MetricTypeString)}
}

// Set records value. Longer values are truncated and an invalid_overflow
// error is counted.
func (m *StringMetric) Set(value string) {
	m.launch(func(context.Context) error {
		return m.SetUndispatched(value)
	})
}

// SetUndispatched records value from inside an already dispatched task
func (m *StringMetric) SetUndispatched(value string) error {
	if !m.shouldRecord() {
		return nil
	}
	truncated, verr := metricvalue.String(value)
	if verr != nil {
		if err := m.recordError(verr); err != nil {
			return err
		}
	}
	return m.ctx.Metrics.Record(m.recordingMeta(), m.metricType, truncated)
}

// TestGetValue returns the stored string in ping
func (m *StringMetric) TestGetValue(ping string) (string, bool) {
	v, ok := m.testGetValue(ping).(string)
	return v, ok
}

// QuantityMetric records a non-negative number
type QuantityMetric struct {
	base
}

// NewQuantity creates a quantity metric handle
func NewQuantity(ctx *core.Context, meta types.CommonMetricData) *QuantityMetric {
	return &QuantityMetric{base: newBase(ctx, meta, types.MetricTypeQuantity)}
}

// Set records value. Negative values are counted as invalid_value errors.
func (m *QuantityMetric) Set(value int64) {
	m.launch(func(context.Context) error {
		if !m.shouldRecord() {
			return nil
		}
		if verr := metricvalue.Quantity(value); verr != nil {
			return m.recordError(verr)
		}
		return m.ctx.Metrics.Record(m.recordingMeta(), m.metricType, value)
	})
}

// TestGetValue returns the stored quantity in ping
func (m *QuantityMetric) TestGetValue(ping string) (int64, bool) {
	v, ok := m.testGetValue(ping).(int64)
	return v, ok
}

// UUIDMetric records a UUID
type UUIDMetric struct {
	base
}

// NewUUID creates a UUID metric handle
func NewUUID(ctx *core.Context, meta types.CommonMetricData) *UUIDMetric {
	return &UUIDMetric{base: newBase(ctx, meta, types.MetricTypeUUID)}
}

// Set records value. Strings that are not UUIDs are counted as invalid_value errors.
func (m *UUIDMetric) Set(value string) {
	m.launch(func(context.Context) error {
		return m.SetUndispatched(value)
	})
}

// SetUndispatched records value from inside an already dispatched task
func (m *UUIDMetric) SetUndispatched(value string) error {
	if !m.shouldRecord() {
		return nil
	}
	canonical, verr := metricvalue.UUID(value)
	if verr != nil {
		return m.recordError(verr)
	}
	return m.ctx.Metrics.Record(m.recordingMeta(), m.metricType, canonical)
}

// GenerateAndSet records a new random UUID and returns it
func (m *UUIDMetric) GenerateAndSet() string {
	value := uuid.NewString()
	m.Set(value)
	return value
}

// TestGetValue returns the stored UUID in ping
func (m *UUIDMetric) TestGetValue(ping string) (string, bool) {
	v, ok := m.testGetValue(ping).(string)
	return v, ok
}

// URLMetric records a URL
type URLMetric struct {
	base
}

// NewURL creates a URL metric handle
func NewURL(ctx *core.Context, meta types.CommonMetricData) *URLMetric {
	return &URLMetric{base: newBase(ctx, meta, types.MetricTypeURL)}
}

// Set records value
func (m *URLMetric) Set(value string) {
	m.launch(func(context.Context) error {
		if !m.shouldRecord() {
			return nil
		}
		valid, verr := metricvalue.URL(value)
		if verr != nil {
			return m.recordError(verr)
		}
		return m.ctx.Metrics.Record(m.recordingMeta(), m.metricType, valid)
	})
}

// TestGetValue returns the stored URL in ping
func (m *URLMetric) TestGetValue(ping string) (string, bool) {
	v, ok := m.testGetValue(ping).(string)
	return v, ok
}
