package events

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	// ExtraKeyExecutionCounter tags an event with the execution it was recorded in
	ExtraKeyExecutionCounter = "#glean_execution_counter"
	// ExtraKeyReferenceTime carries the wall-clock start of an execution on restart markers
	ExtraKeyReferenceTime = "#glean_reference_time"

	// RestartedCategory and RestartedName identify the restart marker event
	RestartedCategory = "glean"
	RestartedName     = "restarted"
)

// ErrNotRestartMarker is returned when reading a reference time from a regular event
var ErrNotRestartMarker = errors.New("event is not a restart marker")

// RecordedEvent is one event occurrence as kept in the events store.
// Timestamp is in milliseconds since the start of the execution it was
// recorded in. Extra values are strings, numbers or booleans.
type RecordedEvent struct {
	Category  string
	Name      string
	Timestamp int64
	Extra     map[string]any
}

// NewRestartMarker builds the synthetic event that opens an execution
func NewRestartMarker(referenceTime time.Time, executionCounter int64) RecordedEvent {
	return RecordedEvent{
		Category:  RestartedCategory,
		Name:      RestartedName,
		Timestamp: 0,
		Extra: map[string]any{
			ExtraKeyReferenceTime:    referenceTime.UTC().Format(time.RFC3339Nano),
			ExtraKeyExecutionCounter: executionCounter,
		},
	}
}

// Identifier returns "category.name"
func (e RecordedEvent) Identifier() string {
	if e.Category == "" {
		return e.Name
	}
	return e.Category + "." + e.Name
}

// IsRestartMarker reports whether this is a well-formed restart marker
func (e RecordedEvent) IsRestartMarker() bool {
	_, err := e.ReferenceTime()
	return err == nil
}

// ReferenceTime parses the wall-clock reference time of a restart marker
func (e RecordedEvent) ReferenceTime() (time.Time, error) {
	if e.Category != RestartedCategory || e.Name != RestartedName {
		return time.Time{}, ErrNotRestartMarker
	}
	raw, ok := e.Extra[ExtraKeyReferenceTime].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("restart marker without reference time: %w", ErrNotRestartMarker)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference time %q: %w", raw, err)
	}
	return t, nil
}

// ExecutionCounter returns the execution the event was recorded in, or
// false when the event has not been tagged.
func (e RecordedEvent) ExecutionCounter() (int64, bool) {
	switch v := e.Extra[ExtraKeyExecutionCounter].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// WithExecutionCounter returns a copy tagged with the given execution counter
func (e RecordedEvent) WithExecutionCounter(counter int64) RecordedEvent {
	out := e.clone()
	if out.Extra == nil {
		out.Extra = make(map[string]any, 1)
	}
	out.Extra[ExtraKeyExecutionCounter] = counter
	return out
}

// WithTimestamp returns a copy carrying a different timestamp
func (e RecordedEvent) WithTimestamp(timestamp int64) RecordedEvent {
	out := e.clone()
	out.Timestamp = timestamp
	return out
}

func (e RecordedEvent) clone() RecordedEvent {
	out := e
	if e.Extra != nil {
		out.Extra = make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Stored returns the JSON-shaped form kept in the events store
func (e RecordedEvent) Stored() map[string]any {
	stored := map[string]any{
		"category":  e.Category,
		"name":      e.Name,
		"timestamp": e.Timestamp,
	}
	if len(e.Extra) > 0 {
		extra := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = v
		}
		stored["extra"] = extra
	}
	return stored
}

// Payload returns the form sent in pings: reserved keys are removed and
// every extra value is stringified.
func (e RecordedEvent) Payload() map[string]any {
	payload := map[string]any{
		"category":  e.Category,
		"name":      e.Name,
		"timestamp": e.Timestamp,
	}
	extra := make(map[string]string)
	for k, v := range e.Extra {
		if k == ExtraKeyExecutionCounter || k == ExtraKeyReferenceTime {
			continue
		}
		extra[k] = stringify(v)
	}
	if len(extra) > 0 {
		payload["extra"] = extra
	}
	return payload
}

// FromStored parses one entry of the events store
func FromStored(v any) (RecordedEvent, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return RecordedEvent{}, fmt.Errorf("event entry is %T, not an object", v)
	}

	category, _ := m["category"].(string)
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return RecordedEvent{}, errors.New("event entry has no name")
	}

	var timestamp int64
	switch ts := m["timestamp"].(type) {
	case float64:
		if ts < 0 || ts != math.Trunc(ts) {
			return RecordedEvent{}, fmt.Errorf("invalid event timestamp %v", ts)
		}
		timestamp = int64(ts)
	case int64:
		if ts < 0 {
			return RecordedEvent{}, fmt.Errorf("invalid event timestamp %v", ts)
		}
		timestamp = ts
	default:
		return RecordedEvent{}, fmt.Errorf("invalid event timestamp %v", m["timestamp"])
	}

	event := RecordedEvent{Category: category, Name: name, Timestamp: timestamp}
	if raw, present := m["extra"]; present && raw != nil {
		extra, ok := raw.(map[string]any)
		if !ok {
			return RecordedEvent{}, fmt.Errorf("event extra is %T, not an object", raw)
		}
		event.Extra = make(map[string]any, len(extra))
		for k, value := range extra {
			switch value.(type) {
			case string, float64, int64, int, bool:
				event.Extra[k] = value
			default:
				return RecordedEvent{}, fmt.Errorf("event extra %q has unsupported type %T", k, value)
			}
		}
	}
	return event, nil
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(value, 10)
	case int:
		return strconv.Itoa(value)
	default:
		return fmt.Sprint(value)
	}
}
