/*
Package core holds the Context shared by the components of one Glean client.

There is no process-wide registry. The facade builds a Context once and
hands it to metric handles, ping types and the upload manager:

	┌──────────────────────── core.Context ─────────────────────┐
	│  Config       Clock / Monotonic        Broker             │
	│  Dispatcher   Metrics  Events  Pings   Errors             │
	│  upload enabled / initialized / debug options (guarded)   │
	└───────────────────────────────────────────────────────────┘
	        ▲                 ▲                     ▲
	   metrictype.*       pings.Maker          upload.Manager

New opens the configured storage backend (memory or bolt). Tests that want
to control the stores use NewWithStores.
*/
package core
