/*
Package log provides structured logging for the Glean client using zerolog.

The log package wraps zerolog with a package-level Logger, a small Config for
level and output format, and helpers that derive component loggers. Every
Glean component keeps its own child logger so that output can be filtered by
the "component" field.

# Architecture

	┌──────────────────── LOGGING ─────────────────────────────┐
	│                                                            │
	│  log.Init(Config{Level, JSONOutput, Output})               │
	│          │                                                 │
	│          ▼                                                 │
	│  Logger (zerolog.Logger, stderr by default)                │
	│          │                                                 │
	│          ├── WithComponent("dispatcher")                   │
	│          ├── WithComponent("events_database")              │
	│          ├── WithComponent("upload")                       │
	│          │         └── WithPingID(logger, id)              │
	│          └── WithComponent("ping_maker")                   │
	│                    └── WithPing(logger, "events")          │
	└────────────────────────────────────────────────────────┘

# Log Levels

Debug:
  - Task execution, upload task vending, rate limiter state
  - Example: "Throttled upload, waiting"

Info:
  - Ping submission, successful uploads, ping payloads when LogPings is on
  - Example: "Ping successfully sent"

Warn:
  - Dropped tasks, invalid stored data, recoverable upload failures
  - Example: "Unable to enqueue task, pre-init queue is full"

Error:
  - Task failures, storage errors, initialization failure

Nothing in the client logs at fatal level; recording never terminates the
host application.

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stderr,
	})

Component Loggers:

	logger := log.WithComponent("upload")
	logger.Info().Str("document_id", id).Int("status", 200).Msg("Ping successfully sent")

	pingLogger := log.WithPing(logger, "events")
	pingLogger.Debug().Int("events", 12).Msg("Collected events")

Output:

	{"level":"info","component":"upload","document_id":"5d1c...","status":200,"time":"2026-10-18T10:30:00Z","message":"Ping successfully sent"}
*/
package log
