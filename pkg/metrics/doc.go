/*
Package metrics provides Prometheus self-instrumentation for the Glean client.

These are not the telemetry metrics an application records (see pkg/metrictype);
they describe the client itself: how many dispatcher tasks ran, how many
events were appended, how uploads went. Embedding applications that already
run a Prometheus endpoint get this for free through the default registry.

# Architecture

	┌──────────────────── SELF METRICS ────────────────────────┐
	│                                                            │
	│  dispatcher ──► glean_dispatcher_tasks_total{outcome}      │
	│             ──► glean_dispatcher_tasks_dropped_total{reason}│
	│             ──► glean_dispatcher_queue_length              │
	│                                                            │
	│  events db  ──► glean_events_recorded_total{ping}          │
	│             ──► glean_events_restart_clamps_total          │
	│                                                            │
	│  ping maker ──► glean_pings_submitted_total{ping}          │
	│                                                            │
	│  upload     ──► glean_upload_attempts_total{result}        │
	│             ──► glean_upload_duration_seconds              │
	│             ──► glean_upload_body_bytes                    │
	│             ──► glean_upload_throttled_total               │
	│             ──► glean_pings_pending                        │
	│                                                            │
	│  collector  ──► glean_collector_pings_received_total       │
	│                                                            │
	│  Collector (15s ticker) samples a Source into the gauges   │
	│  and the health registry (/health, /ready, /live).         │
	└────────────────────────────────────────────────────────┘

# Outcome Labels

glean_dispatcher_tasks_total:
  - success: task returned nil
  - failure: task returned an error or panicked (logged, swallowed)

glean_dispatcher_tasks_dropped_total:
  - shutdown: enqueued after shutdown
  - preinit_full: pre-initialization queue at capacity
  - cleared: discarded by Clear or Shutdown

glean_upload_attempts_total:
  - success, recoverable_failure, unrecoverable_failure

# Health

A Registry keeps the last error reported per component (nil is healthy).
Health covers every component; Readiness covers only the critical set and
counts a critical component that never reported as not ready. The
package-level functions (SetComponentStatus, GetHealth, GetReadiness, ...)
use a default registry whose critical set is "storage", "dispatcher" and
"upload"; the collector command replaces it with SetCriticalComponents.

# Usage

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())

	timer := metrics.NewTimer()
	result := upload()
	timer.ObserveDuration(metrics.UploadDuration)
*/
package metrics
