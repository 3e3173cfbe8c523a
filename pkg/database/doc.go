/*
Package database implements the metric, event, error and pending-ping
databases of the Glean client on top of pkg/storage.

None of these types lock anything: every mutation runs inside a dispatcher
task, which already guarantees that only one runs at a time.

# Layout

	userLifetimeMetrics / pingLifetimeMetrics / appLifetimeMetrics
	  └── <ping> ── <metric type> ── <identifier> = value
	                                  "test.clicks"          = 3
	                                  "test.errors/disk"     = 1   (labeled)

	events
	  └── <ping> = [ {category, name, timestamp, extra}, ... ]

	pendingPings
	  └── <document id> = {collectionDate, path, payload, headers}

# Event Reconciliation

Event timestamps count milliseconds since the start of the execution that
recorded them. Each execution opens with a glean.restarted marker carrying
its wall-clock start time, and every event is tagged with an execution
counter. PreparePingEvents merges them:

	stored (three executions)              payload
	┌───────────────────────────┐          ┌──────────────┐
	│ marker  c=1  ref=10:00:00  │          │              │
	│ a       c=1  ts=100        │  ─────►  │ a  ts=0      │
	│ b       c=1  ts=200        │          │ b  ts=100    │
	│ marker  c=2  ref=10:00:10  │          │              │
	│ c       c=2  ts=50         │          │ c  ts=10050  │
	│ marker  c=3  ref=10:00:20  │          │ (trailing    │
	│                            │          │  marker cut) │
	└───────────────────────────┘          └──────────────┘

  1. Sort by (execution counter, timestamp)
  2. The leading marker anchors the first execution
  3. The first execution is rebased so its first event is at 0
  4. Later executions are shifted by the wall-clock distance between
     markers. If that would not move forward (the clock went backwards),
     the offset is clamped to one past the previous event and an
     invalid_value error is counted against glean.restarted
  5. Trailing markers are dropped
  6. Remaining markers and reserved extras are dropped from the payload

# Errors

ErrorManager counts recording errors as labeled counters
"glean.error.<type>" labeled with the offending metric, sent in the same
pings as that metric. Corrupt stored values are deleted when read and
treated as absent; they are logged, never returned.
*/
package database
