package metricvalue

import (
	"strings"
	"testing"
	"time"

	"github.com/cuemby/glean/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCounter tests counter amount validation and saturation
func TestCounter(t *testing.T) {
	assert.Nil(t, CounterAmount(1))

	verr := CounterAmount(0)
	require.NotNil(t, verr)
	assert.Equal(t, types.ErrorTypeInvalidValue, verr.Type)
	assert.NotNil(t, CounterAmount(-5))

	assert.Equal(t, int64(3), AddToCounter(1, 2))
	assert.Equal(t, int64(MaxCounterValue), AddToCounter(MaxCounterValue-1, 10))
}

// TestString tests truncation of long strings
func TestString(t *testing.T) {
	value, verr := String("short")
	assert.Nil(t, verr)
	assert.Equal(t, "short", value)

	value, verr = String(strings.Repeat("é", MaxStringLength+5))
	require.NotNil(t, verr)
	assert.Equal(t, types.ErrorTypeInvalidOverflow, verr.Type)
	assert.Equal(t, MaxStringLength, len([]rune(value)))
}

// TestUUID tests UUID validation
func TestUUID(t *testing.T) {
	value, verr := UUID("C0FFEEC0-FFEE-C0FF-EEC0-FFEEC0FFEEC0")
	assert.Nil(t, verr)
	assert.Equal(t, "c0ffeec0-ffee-c0ff-eec0-ffeec0ffeec0", value)

	_, verr = UUID("not-a-uuid")
	require.NotNil(t, verr)
	assert.Equal(t, types.ErrorTypeInvalidValue, verr.Type)
}

// TestURL tests URL validation rules
func TestURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		errType types.ErrorType
	}{
		{name: "valid", value: "https://example.com/path?q=1"},
		{name: "custom scheme", value: "glean://settings"},
		{name: "no scheme", value: "example.com", errType: types.ErrorTypeInvalidValue},
		{name: "data url", value: "data:text/plain;base64,SGVsbG8=", errType: types.ErrorTypeInvalidValue},
		{name: "too long", value: "https://" + strings.Repeat("a", MaxURLLength), errType: types.ErrorTypeInvalidOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verr := URL(tt.value)
			if tt.errType == "" {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			assert.Equal(t, tt.errType, verr.Type)
		})
	}
}

// TestTimespan tests conversion into the reported unit
func TestTimespan(t *testing.T) {
	stored, verr := Timespan(1500*time.Millisecond, TimeUnitSecond)
	require.Nil(t, verr)
	assert.Equal(t, map[string]any{"time_unit": "second", "value": int64(1)}, stored)

	_, verr = Timespan(-time.Second, TimeUnitSecond)
	assert.NotNil(t, verr)
}

// TestFormatDatetime tests truncation of the ISO-8601 form
func TestFormatDatetime(t *testing.T) {
	zone := time.FixedZone("", 2*60*60)
	ts := time.Date(2026, 10, 18, 10, 30, 45, 123456789, zone)

	assert.Equal(t, "2026-10-18T10:30:45.123+02:00", FormatDatetime(ts, TimeUnitMillisecond))
	assert.Equal(t, "2026-10-18T10:30:45+02:00", FormatDatetime(ts, TimeUnitSecond))
	assert.Equal(t, "2026-10-18T10:30+02:00", FormatDatetime(ts, TimeUnitMinute))
	assert.Equal(t, "2026-10-18+02:00", FormatDatetime(ts, TimeUnitDay))
}

// TestValidate tests validation of stored values
func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		metricType types.MetricType
		stored     any
		want       any
		wantErr    bool
	}{
		{name: "counter", metricType: types.MetricTypeCounter, stored: float64(4), want: int64(4)},
		{name: "counter zero", metricType: types.MetricTypeCounter, stored: float64(0), wantErr: true},
		{name: "counter fraction", metricType: types.MetricTypeCounter, stored: 1.5, wantErr: true},
		{name: "counter string", metricType: types.MetricTypeCounter, stored: "4", wantErr: true},
		{name: "labeled counter", metricType: types.MetricTypeLabeledCounter, stored: float64(2), want: int64(2)},
		{name: "quantity zero", metricType: types.MetricTypeQuantity, stored: float64(0), want: int64(0)},
		{name: "boolean", metricType: types.MetricTypeBoolean, stored: true, want: true},
		{name: "boolean wrong", metricType: types.MetricTypeBoolean, stored: "true", wantErr: true},
		{name: "string", metricType: types.MetricTypeString, stored: "hi", want: "hi"},
		{name: "string too long", metricType: types.MetricTypeString, stored: strings.Repeat("x", 101), wantErr: true},
		{name: "uuid", metricType: types.MetricTypeUUID, stored: "c0ffeec0-ffee-c0ff-eec0-ffeec0ffeec0", want: "c0ffeec0-ffee-c0ff-eec0-ffeec0ffeec0"},
		{name: "url", metricType: types.MetricTypeURL, stored: "https://glean.test", want: "https://glean.test"},
		{
			name:       "datetime",
			metricType: types.MetricTypeDatetime,
			stored:     map[string]any{"date": "2026-10-18T10:30:45.123456789Z", "timeUnit": "second"},
			want:       "2026-10-18T10:30:45+00:00",
		},
		{
			name:       "datetime bad unit",
			metricType: types.MetricTypeDatetime,
			stored:     map[string]any{"date": "2026-10-18T10:30:45Z", "timeUnit": "fortnight"},
			wantErr:    true,
		},
		{
			name:       "timespan",
			metricType: types.MetricTypeTimespan,
			stored:     map[string]any{"time_unit": "millisecond", "value": float64(42)},
			want:       map[string]any{"time_unit": "millisecond", "value": int64(42)},
		},
		{name: "event", metricType: types.MetricTypeEvent, stored: []any{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.metricType, tt.stored)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
