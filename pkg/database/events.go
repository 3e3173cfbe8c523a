package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/glean/pkg/events"
	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metrics"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/storage"
	"github.com/cuemby/glean/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// EventsPingName is the ping that carries events by default
	EventsPingName = "events"
	// DefaultMaxEvents is how many events the events ping holds before it is sent
	DefaultMaxEvents = 500

	// ReasonStartup is used when leftover events are found at startup
	ReasonStartup = "startup"
	// ReasonMaxCapacity is used when the events ping reaches MaxEvents
	ReasonMaxCapacity = "max_capacity"
)

// SubmitFunc submits a ping inline, from inside an already dispatched task
type SubmitFunc func(ctx context.Context, ping, reason string) error

// ExecutionCounterMetric returns the per-ping counter of process starts
func ExecutionCounterMetric(pings []string) types.CommonMetricData {
	return types.CommonMetricData{
		Category:    "glean.internal.metrics",
		Name:        "execution_counter",
		SendInPings: pings,
		Lifetime:    types.LifetimePing,
	}
}

// RestartedMetric returns the metric restart markers are recorded as
func RestartedMetric(pings []string) types.CommonMetricData {
	return types.CommonMetricData{
		Category:    events.RestartedCategory,
		Name:        events.RestartedName,
		SendInPings: pings,
		Lifetime:    types.LifetimePing,
	}
}

// EventsDatabase keeps an append-only list of events per ping and turns
// it into a single ordered timeline when the ping is assembled.
type EventsDatabase struct {
	store     storage.Store
	metrics   *MetricsDatabase
	errors    *ErrorManager
	startTime time.Time
	maxEvents int
	submit    SubmitFunc

	initialized bool
	logger      zerolog.Logger
}

// NewEventsDatabase creates an events database. startTime is the
// wall-clock start of this execution and anchors its restart markers.
func NewEventsDatabase(store storage.Store, metricsDB *MetricsDatabase, errs *ErrorManager, startTime time.Time, maxEvents int) *EventsDatabase {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &EventsDatabase{
		store:     store,
		metrics:   metricsDB,
		errors:    errs,
		startTime: startTime,
		maxEvents: maxEvents,
		logger:    log.WithComponent("events_database"),
	}
}

// SetSubmitter sets the function used for startup and max_capacity submissions
func (db *EventsDatabase) SetSubmitter(fn SubmitFunc) {
	db.submit = fn
}

// Initialize opens a new execution for every ping that has stored events.
// It must run before any event of this execution is recorded.
func (db *EventsDatabase) Initialize(ctx context.Context) error {
	if db.initialized {
		return nil
	}

	pings, err := db.storedPings()
	if err != nil {
		return err
	}

	// Leftovers in the events ping mean the previous run ended without sending it
	stored, err := db.store.Get([]string{EventsPingName})
	if err != nil {
		return err
	}
	if list, ok := stored.([]any); ok && len(list) > 0 {
		db.submitPing(ctx, EventsPingName, ReasonStartup)
	}

	for _, ping := range pings {
		counter, err := db.incrementExecutionCounter(ping)
		if err != nil {
			return err
		}
		if _, err := db.append(ping, events.NewRestartMarker(db.startTime, counter)); err != nil {
			return err
		}
	}

	db.initialized = true
	return nil
}

func (db *EventsDatabase) storedPings() ([]string, error) {
	root, err := db.store.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read events store: %w", err)
	}
	byPing, _ := root.(map[string]any)

	pings := make([]string, 0, len(byPing))
	for ping := range byPing {
		pings = append(pings, ping)
	}
	sort.Strings(pings)
	return pings, nil
}

// Record appends event to every ping metric is sent in
func (db *EventsDatabase) Record(ctx context.Context, metric types.CommonMetricData, event events.RecordedEvent) error {
	for _, ping := range metric.SendInPings {
		counter, ok := db.executionCounter(ping)
		if !ok {
			if err := db.metrics.Record(ExecutionCounterMetric([]string{ping}), types.MetricTypeCounter, int64(1)); err != nil {
				return err
			}
			counter = 1
			if _, err := db.append(ping, events.NewRestartMarker(db.startTime, counter)); err != nil {
				return err
			}
		}

		count, err := db.append(ping, event.WithExecutionCounter(counter))
		if err != nil {
			return err
		}
		metrics.EventsRecorded.WithLabelValues(ping).Inc()

		if ping == EventsPingName && count >= db.maxEvents {
			db.submitPing(ctx, EventsPingName, ReasonMaxCapacity)
		}
	}
	return nil
}

func (db *EventsDatabase) executionCounter(ping string) (int64, bool) {
	value := db.metrics.GetMetric(ping, ExecutionCounterMetric([]string{ping}), types.MetricTypeCounter)
	counter, ok := value.(int64)
	return counter, ok && counter > 0
}

func (db *EventsDatabase) incrementExecutionCounter(ping string) (int64, error) {
	var counter int64
	err := db.metrics.Transform(ExecutionCounterMetric([]string{ping}), types.MetricTypeCounter, func(old any) any {
		current, err := metricvalue.Validate(types.MetricTypeCounter, old)
		if err != nil {
			counter = 1
		} else {
			counter = metricvalue.AddToCounter(current.(int64), 1)
		}
		return counter
	})
	return counter, err
}

// append adds one event to the stored list of ping and returns the new length
func (db *EventsDatabase) append(ping string, event events.RecordedEvent) (int, error) {
	var count int
	err := db.store.Update([]string{ping}, func(old any) any {
		list, ok := old.([]any)
		if !ok {
			list = nil
		}
		list = append(list, event.Stored())
		count = len(list)
		return list
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record event in %s: %w", ping, err)
	}
	return count, nil
}

func (db *EventsDatabase) submitPing(ctx context.Context, ping, reason string) {
	if db.submit == nil {
		db.logger.Warn().Str("ping", ping).Str("reason", reason).Msg("No submitter configured, ping not sent")
		return
	}
	if err := db.submit(ctx, ping, reason); err != nil {
		db.logger.Error().Err(err).Str("ping", ping).Str("reason", reason).Msg("Failed to submit ping")
	}
}

// GetEvents returns the stored events of metric in ping, in recording
// order, without restart markers. Used by test helpers.
func (db *EventsDatabase) GetEvents(ping string, metric types.CommonMetricData) []events.RecordedEvent {
	var out []events.RecordedEvent
	for _, event := range db.load(ping) {
		if event.Category == metric.Category && event.Name == metric.Name {
			out = append(out, event)
		}
	}
	return out
}

func (db *EventsDatabase) load(ping string) []events.RecordedEvent {
	stored, err := db.store.Get([]string{ping})
	if err != nil {
		db.logger.Error().Err(err).Str("ping", ping).Msg("Failed to read events")
		return nil
	}
	if stored == nil {
		return nil
	}

	list, ok := stored.([]any)
	if !ok {
		db.logger.Warn().Str("ping", ping).Msg("Unexpected events data found in storage, deleting")
		if err := db.store.Delete([]string{ping}); err != nil {
			db.logger.Error().Err(err).Msg("Failed to delete invalid events data")
		}
		return nil
	}

	out := make([]events.RecordedEvent, 0, len(list))
	for _, entry := range list {
		event, err := events.FromStored(entry)
		if err != nil {
			db.logger.Warn().Err(err).Str("ping", ping).Msg("Dropping invalid stored event")
			continue
		}
		out = append(out, event)
	}
	return out
}

// PreparePingEvents returns the payload form of the events stored for
// ping, reconciled across restarts. With clear set the stored events are
// removed. Returns nil when there is nothing to send.
func (db *EventsDatabase) PreparePingEvents(ping string, clear bool) ([]map[string]any, error) {
	stored := db.load(ping)
	if clear {
		if err := db.ClearPing(ping); err != nil {
			return nil, err
		}
	}
	if len(stored) == 0 {
		return nil, nil
	}

	reconciled := db.reconcile(ping, stored)

	payload := make([]map[string]any, 0, len(reconciled))
	for _, event := range reconciled {
		if event.IsRestartMarker() {
			continue
		}
		payload = append(payload, event.Payload())
	}
	if len(payload) == 0 {
		return nil, nil
	}
	return payload, nil
}

// reconcile sorts the events of every execution into one timeline.
// Timestamps of the first execution are rebased to start at its first
// event; later executions are shifted by the wall-clock distance between
// their restart markers, clamped so the timeline never goes backwards.
func (db *EventsDatabase) reconcile(ping string, stored []events.RecordedEvent) []events.RecordedEvent {
	sorted := make([]events.RecordedEvent, len(stored))
	copy(sorted, stored)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := executionOf(sorted[i]), executionOf(sorted[j])
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	lastRestart, err := sorted[0].ReferenceTime()
	if err == nil {
		sorted = sorted[1:]
	} else {
		lastRestart = db.startTime
	}

	var firstEventOffset int64
	if len(sorted) > 0 {
		firstEventOffset = sorted[0].Timestamp
	}

	var restartedOffset int64
	for i, event := range sorted {
		if restart, err := event.ReferenceTime(); err == nil {
			candidate := restartedOffset + restart.Sub(lastRestart).Milliseconds()
			lastRestart = restart

			// The first epoch may have left nothing but its marker; offsets
			// then have a floor of zero.
			floor := int64(0)
			if i > 0 {
				floor = sorted[i-1].Timestamp + 1
			}
			if candidate < floor {
				restartedOffset = floor
				metrics.EventRestartClamps.Inc()
				verr := metricvalue.NewValidationError(types.ErrorTypeInvalidValue,
					"Invalid time offset between application sessions found for ping %q. Ignoring.", ping)
				if recErr := db.errors.RecordValidation(RestartedMetric([]string{ping}), verr); recErr != nil {
					db.logger.Error().Err(recErr).Msg("Failed to record restart offset error")
				}
			} else {
				restartedOffset = candidate
			}
		}

		var adjusted int64
		if executionOf(event) == 1 {
			adjusted = event.Timestamp - firstEventOffset
		} else {
			adjusted = event.Timestamp + restartedOffset
		}
		sorted[i] = event.WithTimestamp(adjusted)
	}

	for len(sorted) > 0 && sorted[len(sorted)-1].IsRestartMarker() {
		sorted = sorted[:len(sorted)-1]
	}
	return sorted
}

// executionOf treats untagged events as belonging to the first execution
func executionOf(event events.RecordedEvent) int64 {
	if counter, ok := event.ExecutionCounter(); ok && counter > 0 {
		return counter
	}
	return 1
}

// ClearPing removes the stored events of ping
func (db *EventsDatabase) ClearPing(ping string) error {
	return db.store.Delete([]string{ping})
}

// ClearAll removes every stored event
func (db *EventsDatabase) ClearAll() error {
	return db.store.Delete(nil)
}
