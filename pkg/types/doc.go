/*
Package types defines the data structures shared by every Glean package.

The types package is the leaf of the dependency graph. It holds the metric
metadata that every recording call carries, the lifetime and error taxonomy
used by the databases, and the ping records that travel from the ping maker
through the pending pings store to the upload manager.

# Core Types

Metric metadata:
  - CommonMetricData: name, category, destination pings, lifetime, disabled flag
  - Lifetime: ping, user or application reset policy
  - MetricType: storage and payload key of a metric kind ("counter", "labeled_string", ...)

Errors:
  - ErrorType: invalid_value, invalid_label, invalid_state, invalid_overflow,
    invalid_type. Errors of these kinds are never returned to the caller;
    they are counted in the glean.error.* labeled counters.

Pings:
  - PingRecord: collection date, submission path, JSON payload and headers
  - QueuedPing: a PingRecord plus its document identifier and retry count
  - UploadResult: HTTP status (if any) and the success / recoverable /
    unrecoverable classification of a single attempt

# Identifiers

A metric is stored under its identifier:

	category.name            regular metric
	category.name/label      submetric of a labeled metric

Use CombineIdentifierAndLabel and SplitIdentifierAndLabel rather than
formatting the strings by hand.

# Usage

	metric := types.CommonMetricData{
		Category:    "browser",
		Name:        "tabs_opened",
		SendInPings: []string{"metrics"},
		Lifetime:    types.LifetimePing,
	}
	metric.Identifier() // "browser.tabs_opened"
*/
package types
