package metrictype

import (
	"context"
	"strings"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/events"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
)

// MaxExtraValueLength is the longest string extra value kept
const MaxExtraValueLength = 500

// EventMetric records timestamped occurrences with optional extras
type EventMetric struct {
	base
	allowedExtraKeys map[string]bool
}

// NewEvent creates an event metric handle. Only the listed extra keys are
// accepted; with no keys listed every key is.
func NewEvent(ctx *core.Context, meta types.CommonMetricData, allowedExtraKeys ...string) *EventMetric {
	m := &EventMetric{base: newBase(ctx, meta, types.MetricTypeEvent)}
	if len(allowedExtraKeys) > 0 {
		m.allowedExtraKeys = make(map[string]bool, len(allowedExtraKeys))
		for _, key := range allowedExtraKeys {
			m.allowedExtraKeys[key] = true
		}
	}
	return m
}

// Record records one occurrence. The timestamp is taken now, not when the
// task runs.
func (m *EventMetric) Record(extra map[string]any) {
	timestamp := m.ctx.Monotonic.Millis()
	m.launch(func(ctx context.Context) error {
		return m.RecordUndispatched(ctx, timestamp, extra)
	})
}

// RecordUndispatched records an occurrence from inside an already dispatched task
func (m *EventMetric) RecordUndispatched(ctx context.Context, timestamp int64, extra map[string]any) error {
	if !m.shouldRecord() {
		return nil
	}

	validated, verr := m.validateExtra(extra)
	if verr != nil {
		if err := m.recordError(verr); err != nil {
			return err
		}
		if verr.Type != types.ErrorTypeInvalidOverflow {
			return nil
		}
	}

	event := events.RecordedEvent{
		Category:  m.meta.Category,
		Name:      m.meta.Name,
		Timestamp: timestamp,
		Extra:     validated,
	}
	return m.ctx.Events.Record(ctx, m.meta, event)
}

func (m *EventMetric) validateExtra(extra map[string]any) (map[string]any, *metricvalue.ValidationError) {
	if len(extra) == 0 {
		return nil, nil
	}

	var overflow *metricvalue.ValidationError
	out := make(map[string]any, len(extra))
	for key, value := range extra {
		if strings.HasPrefix(key, "#glean") || (m.allowedExtraKeys != nil && !m.allowedExtraKeys[key]) {
			return nil, metricvalue.NewValidationError(types.ErrorTypeInvalidValue, "Invalid extra key %q", key)
		}
		switch v := value.(type) {
		case string:
			truncated, verr := metricvalue.TruncateString(v, MaxExtraValueLength)
			if verr != nil {
				overflow = verr
			}
			out[key] = truncated
		case bool, int, int64, float64:
			out[key] = v
		default:
			return nil, metricvalue.NewValidationError(types.ErrorTypeInvalidType, "Extra %q has unsupported type %T", key, value)
		}
	}
	return out, overflow
}

// TestGetValue returns the events recorded in ping with reserved extras removed
func (m *EventMetric) TestGetValue(ping string) []events.RecordedEvent {
	var out []events.RecordedEvent
	<-m.ctx.Dispatcher.TestLaunch(func(context.Context) error {
		for _, event := range m.ctx.Events.GetEvents(m.firstPing(ping), m.meta) {
			delete(event.Extra, events.ExtraKeyExecutionCounter)
			if len(event.Extra) == 0 {
				event.Extra = nil
			}
			out = append(out, event)
		}
		return nil
	})
	return out
}
