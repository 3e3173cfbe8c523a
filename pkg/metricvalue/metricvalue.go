package metricvalue

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cuemby/glean/pkg/types"
	"github.com/google/uuid"
)

const (
	// MaxStringLength is the longest string metric value kept, in characters
	MaxStringLength = 100
	// MaxURLLength is the longest URL metric value accepted, in characters
	MaxURLLength = 8192
	// MaxCounterValue is where counters saturate
	MaxCounterValue = math.MaxInt32
)

// ValidationError describes why a value was rejected. It is recorded as a
// counted error metric instead of being returned to the application.
type ValidationError struct {
	Type    types.ErrorType
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError creates a ValidationError
func NewValidationError(errorType types.ErrorType, format string, args ...any) *ValidationError {
	return &ValidationError{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// CounterAmount validates an amount to add to a counter
func CounterAmount(amount int64) *ValidationError {
	if amount <= 0 {
		return NewValidationError(types.ErrorTypeInvalidValue, "Added negative or zero value %d", amount)
	}
	return nil
}

// AddToCounter returns old+amount, saturating at MaxCounterValue
func AddToCounter(old, amount int64) int64 {
	if old > MaxCounterValue-amount {
		return MaxCounterValue
	}
	return old + amount
}

// Quantity validates a quantity value
func Quantity(value int64) *ValidationError {
	if value < 0 {
		return NewValidationError(types.ErrorTypeInvalidValue, "Set negative value %d", value)
	}
	return nil
}

// TruncateString shortens s to at most max characters. The returned error
// is non-nil when truncation happened; the truncated value is still usable.
func TruncateString(s string, max int) (string, *ValidationError) {
	if utf8.RuneCountInString(s) <= max {
		return s, nil
	}
	runes := []rune(s)
	return string(runes[:max]), NewValidationError(types.ErrorTypeInvalidOverflow,
		"Value length %d exceeds maximum of %d", len(runes), max)
}

// String validates and truncates a string metric value
func String(value string) (string, *ValidationError) {
	return TruncateString(value, MaxStringLength)
}

// UUID validates a UUID and returns its canonical lowercase form
func UUID(value string) (string, *ValidationError) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", NewValidationError(types.ErrorTypeInvalidValue, "%q is not a valid UUID", value)
	}
	return parsed.String(), nil
}

// URL validates a URL metric value
func URL(value string) (string, *ValidationError) {
	if utf8.RuneCountInString(value) > MaxURLLength {
		return "", NewValidationError(types.ErrorTypeInvalidOverflow,
			"URL length exceeds maximum of %d", MaxURLLength)
	}
	if strings.HasPrefix(strings.ToLower(value), "data:") {
		return "", NewValidationError(types.ErrorTypeInvalidValue, "URL metric does not support data URLs")
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" {
		return "", NewValidationError(types.ErrorTypeInvalidValue, "%q is not a valid URL", value)
	}
	return value, nil
}

// Datetime builds the stored form of a datetime metric
func Datetime(t time.Time, unit TimeUnit) map[string]any {
	return map[string]any{
		"date":     t.Format(time.RFC3339Nano),
		"timeUnit": string(unit),
	}
}

// Timespan builds the stored form of a timespan metric from an elapsed duration
func Timespan(elapsed time.Duration, unit TimeUnit) (map[string]any, *ValidationError) {
	if elapsed < 0 {
		return nil, NewValidationError(types.ErrorTypeInvalidValue, "Timespan was negative")
	}
	return map[string]any{
		"time_unit": string(unit),
		"value":     unit.Convert(elapsed),
	}, nil
}

// Validate checks a stored value of the given type and returns its payload
// form. Values that do not have the expected shape are reported as errors
// so that the caller can delete them and treat them as absent.
func Validate(metricType types.MetricType, stored any) (any, error) {
	switch metricType {
	case types.MetricTypeCounter, types.MetricTypeLabeledCounter:
		n, ok := integer(stored)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("invalid counter value %v", stored)
		}
		return n, nil

	case types.MetricTypeQuantity:
		n, ok := integer(stored)
		if !ok || n < 0 {
			return nil, fmt.Errorf("invalid quantity value %v", stored)
		}
		return n, nil

	case types.MetricTypeBoolean, types.MetricTypeLabeledBoolean:
		b, ok := stored.(bool)
		if !ok {
			return nil, fmt.Errorf("invalid boolean value %v", stored)
		}
		return b, nil

	case types.MetricTypeString, types.MetricTypeLabeledString:
		s, ok := stored.(string)
		if !ok || utf8.RuneCountInString(s) > MaxStringLength {
			return nil, fmt.Errorf("invalid string value %v", stored)
		}
		return s, nil

	case types.MetricTypeUUID:
		s, ok := stored.(string)
		if !ok {
			return nil, fmt.Errorf("invalid uuid value %v", stored)
		}
		if _, verr := UUID(s); verr != nil {
			return nil, verr
		}
		return s, nil

	case types.MetricTypeURL:
		s, ok := stored.(string)
		if !ok {
			return nil, fmt.Errorf("invalid url value %v", stored)
		}
		if _, verr := URL(s); verr != nil {
			return nil, verr
		}
		return s, nil

	case types.MetricTypeDatetime:
		m, ok := stored.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid datetime value %v", stored)
		}
		date, _ := m["date"].(string)
		unit, err := ParseTimeUnit(m["timeUnit"])
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, date)
		if err != nil {
			return nil, fmt.Errorf("invalid datetime value: %w", err)
		}
		return FormatDatetime(t, unit), nil

	case types.MetricTypeTimespan:
		m, ok := stored.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid timespan value %v", stored)
		}
		unit, err := ParseTimeUnit(m["time_unit"])
		if err != nil {
			return nil, err
		}
		n, ok := integer(m["value"])
		if !ok || n < 0 {
			return nil, fmt.Errorf("invalid timespan value %v", m["value"])
		}
		return map[string]any{"time_unit": string(unit), "value": n}, nil

	default:
		return nil, fmt.Errorf("unsupported metric type %q", metricType)
	}
}

// integer accepts the numeric shapes a stored value can take
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
