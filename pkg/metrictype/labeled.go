package metrictype

import (
	"sync"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/types"
)

// maxCachedSubmetrics bounds the handles a labeled metric keeps around
const maxCachedSubmetrics = MaxLabels * 4

// LabeledMetric hands out one submetric per label. With static labels,
// unknown labels map to OtherLabel right away; dynamic labels are checked
// against storage when the submetric records.
type LabeledMetric[T any] struct {
	ctx        *core.Context
	meta       types.CommonMetricData
	metricType types.MetricType
	labels     map[string]bool
	build      func(base) T

	mu         sync.Mutex
	submetrics map[string]T
}

func newLabeled[T any](ctx *core.Context, meta types.CommonMetricData, metricType types.MetricType, labels []string, build func(base) T) *LabeledMetric[T] {
	l := &LabeledMetric[T]{
		ctx:        ctx,
		meta:       meta,
		metricType: metricType,
		build:      build,
		submetrics: make(map[string]T),
	}
	if len(labels) > 0 {
		l.labels = make(map[string]bool, len(labels))
		for _, label := range labels {
			l.labels[label] = true
		}
	}
	return l
}

// NewLabeledCounter creates a labeled counter
func NewLabeledCounter(ctx *core.Context, meta types.CommonMetricData, labels ...string) *LabeledMetric[*CounterMetric] {
	return newLabeled(ctx, meta, types.MetricTypeLabeledCounter, labels, func(b base) *CounterMetric {
		return &CounterMetric{base: b}
	})
}

// NewLabeledBoolean creates a labeled boolean
func NewLabeledBoolean(ctx *core.Context, meta types.CommonMetricData, labels ...string) *LabeledMetric[*BooleanMetric] {
	return newLabeled(ctx, meta, types.MetricTypeLabeledBoolean, labels, func(b base) *BooleanMetric {
		return &BooleanMetric{base: b}
	})
}

// NewLabeledString creates a labeled string
func NewLabeledString(ctx *core.Context, meta types.CommonMetricData, labels ...string) *LabeledMetric[*StringMetric] {
	return newLabeled(ctx, meta, types.MetricTypeLabeledString, labels, func(b base) *StringMetric {
		return &StringMetric{base: b}
	})
}

// Get returns the submetric for label
func (l *LabeledMetric[T]) Get(label string) T {
	dynamic := l.labels == nil
	if !dynamic && !l.labels[label] {
		label = OtherLabel
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if sub, ok := l.submetrics[label]; ok {
		return sub
	}

	meta := l.meta
	meta.DynamicLabel = label
	b := newBase(l.ctx, meta, l.metricType)
	b.dynamic = dynamic
	sub := l.build(b)

	if len(l.submetrics) < maxCachedSubmetrics {
		l.submetrics[label] = sub
	}
	return sub
}

// TestGetNumRecordedErrors returns the errors counted against the labeled metric
func (l *LabeledMetric[T]) TestGetNumRecordedErrors(errorType types.ErrorType, ping string) int64 {
	b := newBase(l.ctx, l.meta, l.metricType)
	return b.TestGetNumRecordedErrors(errorType, ping)
}
