/*
Package pings defines ping types and the maker that assembles them.

A ping is collected on the dispatcher, stored in the pending pings database
and picked up by the upload manager:

	PingType.Submit(reason)
	        │
	        ▼  (dispatched task)
	Maker.CollectAndStorePing
	        ├── metrics section   MetricsDatabase.GetPingMetrics(ping, clear)
	        ├── events section    EventsDatabase.PreparePingEvents(ping, clear)
	        ├── ping_info         seq, start_time, end_time, reason
	        ├── client_info       glean_client_info storage, flattened
	        ▼
	PingsDatabase.RecordPing  ──►  upload manager

Pings with neither metrics nor events are skipped unless they are declared
send-if-empty. While upload is disabled only the deletion-request ping is
assembled.
*/
package pings
