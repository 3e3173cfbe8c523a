package metrictype

import (
	"context"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
)

const (
	// MaxLabels is how many distinct dynamic labels a labeled metric keeps
	MaxLabels = 16
	// MaxLabelLength is the longest dynamic label accepted
	MaxLabelLength = 111
	// OtherLabel collects values recorded under rejected labels
	OtherLabel = "__other__"
)

// base carries what every metric handle needs
type base struct {
	ctx        *core.Context
	meta       types.CommonMetricData
	metricType types.MetricType
	// dynamic is set on labeled submetrics whose label must be validated
	// against storage when recording
	dynamic bool
}

func newBase(ctx *core.Context, meta types.CommonMetricData, metricType types.MetricType) base {
	return base{ctx: ctx, meta: meta, metricType: metricType}
}

// shouldRecord is evaluated inside tasks, after initialization has set the upload flag
func (b *base) shouldRecord() bool {
	return b.ctx.UploadEnabled() && !b.meta.Disabled
}

func (b *base) launch(task func(ctx context.Context) error) {
	b.ctx.Dispatcher.Launch(task)
}

// recordingMeta returns the metadata to write with, resolving dynamic labels
func (b *base) recordingMeta() types.CommonMetricData {
	if !b.dynamic {
		return b.meta
	}
	return b.resolveDynamicLabel(true)
}

// resolveDynamicLabel keeps a label that is already stored, or accepts a new
// one if it is valid and the label budget is not used up. Anything else is
// redirected to OtherLabel.
func (b *base) resolveDynamicLabel(recordErrors bool) types.CommonMetricData {
	meta := b.meta
	label := meta.DynamicLabel
	lifetime := meta.EffectiveLifetime()
	key := meta.Identifier()

	for _, ping := range meta.SendInPings {
		if b.ctx.Metrics.HasMetric(lifetime, ping, b.metricType, key) {
			return meta
		}
	}

	used := 0
	for _, ping := range meta.SendInPings {
		used = max(used, b.ctx.Metrics.CountByBaseIdentifier(lifetime, ping, b.metricType, meta.BaseIdentifier()))
	}

	var verr *metricvalue.ValidationError
	switch {
	case len(label) > MaxLabelLength:
		verr = metricvalue.NewValidationError(types.ErrorTypeInvalidLabel,
			"Label length %d exceeds maximum of %d", len(label), MaxLabelLength)
	case !printableASCII(label):
		verr = metricvalue.NewValidationError(types.ErrorTypeInvalidLabel,
			"Label must be printable ASCII, got %q", label)
	case used >= MaxLabels:
		meta.DynamicLabel = OtherLabel
	}

	if verr != nil {
		meta.DynamicLabel = OtherLabel
		if recordErrors {
			_ = b.recordError(verr)
		}
	}
	return meta
}

func printableASCII(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// recordError counts a validation failure against the metric. Errors of
// labeled submetrics are counted against the labeled metric.
func (b *base) recordError(verr *metricvalue.ValidationError) error {
	return b.ctx.Errors.RecordValidation(b.meta, verr)
}

func (b *base) firstPing(ping string) string {
	if ping == "" && len(b.meta.SendInPings) > 0 {
		return b.meta.SendInPings[0]
	}
	return ping
}

// testGetValue reads the payload value once every queued task has run
func (b *base) testGetValue(ping string) any {
	var value any
	<-b.ctx.Dispatcher.TestLaunch(func(context.Context) error {
		meta := b.meta
		if b.dynamic {
			meta = b.resolveDynamicLabel(false)
		}
		value = b.ctx.Metrics.GetMetric(b.firstPing(ping), meta, b.metricType)
		return nil
	})
	return value
}

// TestGetNumRecordedErrors returns the number of errors of errorType
// recorded against this metric in ping (the first ping if empty)
func (b *base) TestGetNumRecordedErrors(errorType types.ErrorType, ping string) int64 {
	var n int64
	<-b.ctx.Dispatcher.TestLaunch(func(context.Context) error {
		n = b.ctx.Errors.TestGetNumRecordedErrors(b.meta, errorType, b.firstPing(ping))
		return nil
	})
	return n
}
