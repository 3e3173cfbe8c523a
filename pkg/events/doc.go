/*
Package events defines recorded telemetry events and a broker for ping
lifecycle notifications.

# Recorded Events

A RecordedEvent is one occurrence of an event metric. Its timestamp is
milliseconds since the start of the execution that recorded it, so values
from different process runs are not comparable on their own. Two reserved
extra keys make them comparable again:

	#glean_execution_counter  which execution recorded the event (1 = current)
	#glean_reference_time     wall-clock start of an execution (markers only)

Every execution opens with a restart marker, the synthetic event
"glean.restarted" with timestamp 0. The events database uses the markers'
reference times to rebase all executions onto one timeline and then drops
them. Payload() strips both reserved keys and stringifies the remaining
extras:

	stored                                    payload
	┌──────────────────────────────────┐      ┌──────────────────────────┐
	│ category: "ui"                    │      │ category: "ui"            │
	│ name: "click"                     │ ───► │ name: "click"             │
	│ timestamp: 1200                   │      │ timestamp: 1200           │
	│ extra: {button: "ok",             │      │ extra: {button: "ok"}     │
	│   #glean_execution_counter: 2}    │      │                           │
	└──────────────────────────────────┘      └──────────────────────────┘

# Lifecycle Notifications

The Broker is an in-memory pub/sub bus. The ping maker publishes
ping.submitted, the upload manager publishes ping.uploaded, ping.retrying,
ping.dropped and upload.throttled. Publishing never blocks; slow subscribers
miss notifications rather than stall uploads.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	for n := range sub {
		if n.Type == events.NotificationPingUploaded {
			fmt.Println("sent", n.DocumentID)
		}
	}
*/
package events
