package database

import (
	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
	"github.com/rs/zerolog"
)

// ErrorCategory is the category of the labeled counters that count recording errors
const ErrorCategory = "glean.error"

// ErrorManager counts recording errors as labeled counters
// "glean.error.<type>" with the offending metric's identifier as label.
// The counters travel in the same pings as the offending metric.
type ErrorManager struct {
	metrics *MetricsDatabase
	logger  zerolog.Logger
}

// NewErrorManager creates an error manager backed by the metrics database
func NewErrorManager(metrics *MetricsDatabase) *ErrorManager {
	return &ErrorManager{
		metrics: metrics,
		logger:  log.WithComponent("error_manager"),
	}
}

// errorMetric returns the labeled counter submetric for metric and errorType
func errorMetric(metric types.CommonMetricData, errorType types.ErrorType) types.CommonMetricData {
	return types.CommonMetricData{
		Category:     ErrorCategory,
		Name:         string(errorType),
		SendInPings:  metric.SendInPings,
		Lifetime:     types.LifetimePing,
		DynamicLabel: metric.BaseIdentifier(),
	}
}

// Record adds n errors of errorType against metric
func (m *ErrorManager) Record(metric types.CommonMetricData, errorType types.ErrorType, message string, n int64) error {
	m.logger.Warn().
		Str("metric", metric.Identifier()).
		Str("error_type", string(errorType)).
		Msg(message)

	if n <= 0 {
		return nil
	}
	return m.metrics.Transform(errorMetric(metric, errorType), types.MetricTypeLabeledCounter, func(old any) any {
		current, err := metricvalue.Validate(types.MetricTypeLabeledCounter, old)
		if err != nil {
			return n
		}
		return metricvalue.AddToCounter(current.(int64), n)
	})
}

// RecordValidation records a validation failure. A nil error is a no-op.
func (m *ErrorManager) RecordValidation(metric types.CommonMetricData, verr *metricvalue.ValidationError) error {
	if verr == nil {
		return nil
	}
	return m.Record(metric, verr.Type, verr.Message, 1)
}

// TestGetNumRecordedErrors returns how many errors of errorType were
// recorded against metric in ping. ping defaults to the metric's first ping.
func (m *ErrorManager) TestGetNumRecordedErrors(metric types.CommonMetricData, errorType types.ErrorType, ping string) int64 {
	if ping == "" && len(metric.SendInPings) > 0 {
		ping = metric.SendInPings[0]
	}
	value := m.metrics.GetMetric(ping, errorMetric(metric, errorType), types.MetricTypeLabeledCounter)
	if n, ok := value.(int64); ok {
		return n
	}
	return 0
}
