/*
Package metrictype provides the recording API: one handle type per metric
kind.

Every recording call captures what must be captured synchronously (event
timestamps, timespan start and stop times) and dispatches the rest. The
task checks, when it runs, that upload is enabled and the metric is not
disabled, validates the value and writes it through the databases in
pkg/core. Nothing is returned to the caller; invalid values become counted
errors (see TestGetNumRecordedErrors).

# Handles

	CounterMetric    Add(n)                      counter
	BooleanMetric    Set(bool)                   boolean
	StringMetric     Set(string)                 string (max 100 chars)
	QuantityMetric   Set(int64)                  quantity (>= 0)
	UUIDMetric       Set(string), GenerateAndSet uuid
	URLMetric        Set(string)                 url (max 8192 chars)
	DatetimeMetric   Set(time.Time)              datetime
	TimespanMetric   Start, Stop, Cancel, ...    timespan
	EventMetric      Record(extra)               event
	LabeledMetric[T] Get(label) T                labeled_counter/boolean/string

# Labels

	labeled := metrictype.NewLabeledCounter(ctx, meta)           // dynamic
	labeled.Get("wifi").Add(1)

	static := metrictype.NewLabeledCounter(ctx, meta, "ok", "cancel")
	static.Get("help").Add(1)                                    // __other__

Dynamic labels are validated when the submetric records: a label already
stored is kept; otherwise it must be printable ASCII of at most 111
characters (else invalid_label) and the metric may hold at most 16 labels.
Anything rejected is recorded under "__other__".

# Tests

TestGetValue and TestGetNumRecordedErrors run as dispatcher test tasks, so
they observe every call made before them.
*/
package metrictype
