package metrictype

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/glean/pkg/clock"
	"github.com/cuemby/glean/pkg/config"
	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func newTestContext(t *testing.T) (*core.Context, *clock.FakeClock) {
	t.Helper()
	cfg := config.Default()
	cfg.ApplicationID = "glean-test"

	fake := clock.Fake(testStart)
	ctx := core.NewWithStores(cfg, fake, core.MemoryStores())
	ctx.SetUploadEnabled(true)
	ctx.Dispatcher.FlushInit(nil)
	t.Cleanup(func() {
		<-ctx.Dispatcher.Shutdown()
		ctx.Close()
	})
	return ctx, fake
}

func meta(name string) types.CommonMetricData {
	return types.CommonMetricData{Category: "test", Name: name, SendInPings: []string{"store1", "store2"}}
}

// TestCounterMetric tests adding, validation and the upload gate
func TestCounterMetric(t *testing.T) {
	ctx, _ := newTestContext(t)
	counter := NewCounter(ctx, meta("clicks"))

	counter.Add(1)
	counter.Add(2)
	counter.Add(0)
	counter.Add(-3)

	value, ok := counter.TestGetValue("")
	require.True(t, ok)
	assert.Equal(t, int64(3), value)
	value, _ = counter.TestGetValue("store2")
	assert.Equal(t, int64(3), value)
	assert.Equal(t, int64(2), counter.TestGetNumRecordedErrors(types.ErrorTypeInvalidValue, ""))

	ctx.SetUploadEnabled(false)
	counter.Add(10)
	value, _ = counter.TestGetValue("")
	assert.Equal(t, int64(3), value)
}

// TestDisabledMetric tests that disabled metrics record nothing
func TestDisabledMetric(t *testing.T) {
	ctx, _ := newTestContext(t)
	m := meta("disabled")
	m.Disabled = true
	counter := NewCounter(ctx, m)

	counter.Add(1)
	_, ok := counter.TestGetValue("")
	assert.False(t, ok)
}

// TestStringMetric tests truncation of long strings
func TestStringMetric(t *testing.T) {
	ctx, _ := newTestContext(t)
	str := NewString(ctx, meta("name"))

	str.Set(strings.Repeat("a", 150))
	value, ok := str.TestGetValue("")
	require.True(t, ok)
	assert.Len(t, value, metricvalue.MaxStringLength)
	assert.Equal(t, int64(1), str.TestGetNumRecordedErrors(types.ErrorTypeInvalidOverflow, ""))
}

// TestSimpleMetrics tests boolean, quantity, uuid and url handles
func TestSimpleMetrics(t *testing.T) {
	ctx, _ := newTestContext(t)

	flag := NewBoolean(ctx, meta("flag"))
	flag.Set(true)
	b, ok := flag.TestGetValue("")
	require.True(t, ok)
	assert.True(t, b)

	quantity := NewQuantity(ctx, meta("width"))
	quantity.Set(42)
	quantity.Set(-1)
	q, _ := quantity.TestGetValue("")
	assert.Equal(t, int64(42), q)
	assert.Equal(t, int64(1), quantity.TestGetNumRecordedErrors(types.ErrorTypeInvalidValue, ""))

	id := NewUUID(ctx, meta("id"))
	generated := id.GenerateAndSet()
	u, _ := id.TestGetValue("")
	assert.Equal(t, generated, u)
	id.Set("nope")
	assert.Equal(t, int64(1), id.TestGetNumRecordedErrors(types.ErrorTypeInvalidValue, ""))

	link := NewURL(ctx, meta("link"))
	link.Set("https://glean.test/page")
	link.Set("data:text/plain,hi")
	l, _ := link.TestGetValue("")
	assert.Equal(t, "https://glean.test/page", l)
	assert.Equal(t, int64(1), link.TestGetNumRecordedErrors(types.ErrorTypeInvalidValue, ""))
}

// TestDatetimeMetric tests recording at a resolution
func TestDatetimeMetric(t *testing.T) {
	ctx, _ := newTestContext(t)
	dt := NewDatetime(ctx, meta("installed"), metricvalue.TimeUnitMinute)

	dt.Set(time.Time{})
	value, ok := dt.TestGetValue("")
	require.True(t, ok)
	assert.Equal(t, "2026-10-18T10:00+00:00", value)
}

// TestTimespanMetric tests start, stop and the state errors
func TestTimespanMetric(t *testing.T) {
	ctx, fake := newTestContext(t)
	span := NewTimespan(ctx, meta("load"), metricvalue.TimeUnitMillisecond)

	span.Start()
	require.NoError(t, ctx.Dispatcher.TestBlockOnQueue(t.Context()))
	fake.Advance(250 * time.Millisecond)
	span.Stop()

	value, ok := span.TestGetValue("")
	require.True(t, ok)
	assert.Equal(t, int64(250), value)

	// Stopping without a start and overwriting are both invalid
	span.Stop()
	span.SetRawNanos(int64(time.Second))
	value, _ = span.TestGetValue("")
	assert.Equal(t, int64(250), value)
	assert.Equal(t, int64(2), span.TestGetNumRecordedErrors(types.ErrorTypeInvalidState, ""))
}

// TestTimespanCancel tests that a cancelled measurement records nothing
func TestTimespanCancel(t *testing.T) {
	ctx, fake := newTestContext(t)
	span := NewTimespan(ctx, meta("cancelled"), metricvalue.TimeUnitSecond)

	span.Start()
	fake.Advance(time.Second)
	span.Cancel()
	span.Stop()

	_, ok := span.TestGetValue("")
	assert.False(t, ok)
	assert.Equal(t, int64(1), span.TestGetNumRecordedErrors(types.ErrorTypeInvalidState, ""))
}

// TestEventMetric tests recording events with extras
func TestEventMetric(t *testing.T) {
	ctx, fake := newTestContext(t)
	click := NewEvent(ctx, meta("click"), "button", "count")

	fake.Advance(1500 * time.Millisecond)
	click.Record(map[string]any{"button": "ok", "count": 2})
	click.Record(map[string]any{"unknown": "x"})
	click.Record(map[string]any{"button": strings.Repeat("b", MaxExtraValueLength+1)})

	recorded := click.TestGetValue("")
	require.Len(t, recorded, 2)
	assert.Equal(t, int64(1500), recorded[0].Timestamp)
	assert.Equal(t, "ok", recorded[0].Extra["button"])
	assert.Len(t, recorded[1].Extra["button"], MaxExtraValueLength)

	assert.Equal(t, int64(1), click.TestGetNumRecordedErrors(types.ErrorTypeInvalidValue, ""))
	assert.Equal(t, int64(1), click.TestGetNumRecordedErrors(types.ErrorTypeInvalidOverflow, ""))
}

// TestLabeledStaticLabels tests that unknown static labels go to __other__
func TestLabeledStaticLabels(t *testing.T) {
	ctx, _ := newTestContext(t)
	labeled := NewLabeledCounter(ctx, meta("by_button"), "ok", "cancel")

	labeled.Get("ok").Add(1)
	labeled.Get("ok").Add(1)
	labeled.Get("help").Add(5)

	ok, _ := labeled.Get("ok").TestGetValue("")
	other, _ := labeled.Get(OtherLabel).TestGetValue("")
	assert.Equal(t, int64(2), ok)
	assert.Equal(t, int64(5), other)
	assert.Same(t, labeled.Get("ok"), labeled.Get("ok"))
}

// TestLabeledDynamicLabels tests the label budget and label validation
func TestLabeledDynamicLabels(t *testing.T) {
	ctx, _ := newTestContext(t)
	labeled := NewLabeledCounter(ctx, meta("by_host"))

	for i := 0; i < MaxLabels+3; i++ {
		labeled.Get(fmt.Sprintf("host%d", i)).Add(1)
	}
	labeled.Get("host0").Add(1)
	labeled.Get(strings.Repeat("x", MaxLabelLength+1)).Add(1)
	labeled.Get("bad\nlabel").Add(1)

	first, _ := labeled.Get("host0").TestGetValue("")
	assert.Equal(t, int64(2), first)

	other := NewCounter(ctx, types.CommonMetricData{
		Category: "test", Name: "by_host", SendInPings: []string{"store1", "store2"}, DynamicLabel: OtherLabel,
	})
	other.metricType = types.MetricTypeLabeledCounter
	value, _ := other.TestGetValue("")
	assert.Equal(t, int64(5), value)

	assert.Equal(t, int64(2), labeled.TestGetNumRecordedErrors(types.ErrorTypeInvalidLabel, ""))
}

// TestLabeledBooleanAndString tests the other labeled kinds
func TestLabeledBooleanAndString(t *testing.T) {
	ctx, _ := newTestContext(t)

	flags := NewLabeledBoolean(ctx, meta("features"))
	flags.Get("dark_mode").Set(true)
	v, ok := flags.Get("dark_mode").TestGetValue("")
	require.True(t, ok)
	assert.True(t, v)

	names := NewLabeledString(ctx, meta("names"), "first")
	names.Get("first").Set("ada")
	s, _ := names.Get("first").TestGetValue("")
	assert.Equal(t, "ada", s)
}
