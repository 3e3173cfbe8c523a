/*
Package api implements a local ingestion collector: a stand-in for the
telemetry endpoint that pings are uploaded to, used for development and
end-to-end tests.

	 glean client                       collector process
	┌────────────────┐   HTTP POST    ┌───────────────────────────────┐
	│ HTTPUploader   │──/submit/...──▶│ HealthServer  /submit/        │
	│                │                │               /health /ready  │
	│ GRPCUploader   │──Ingestion/───▶│ Server        /metrics        │
	└────────────────┘    Submit      │        │                      │
	                                  │        ▼                      │
	                                  │   Collector (gunzip, JSON,    │
	                                  │   keep last N, JSON lines)    │
	                                  └───────────────────────────────┘

Both transports end in Collector.Receive, which returns the HTTP status the
client sees. Over gRPC that status is mapped back onto a status code with
upload.CodeFromHTTPStatus, so a client classifies results the same way on
either transport.
*/
package api
