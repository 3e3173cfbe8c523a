/*
Package config loads and validates Glean client configuration from YAML.

Parse decodes over Default(), so a file only needs the fields it changes.
Durations use Go syntax ("60s", "1m30s").

	applicationId: org.example.app      # sanitized to org-example-app
	appDisplayVersion: "1.2.3"
	channel: nightly
	serverEndpoint: https://incoming.telemetry.mozilla.org
	maxEvents: 500
	debug:
	  logPings: false
	  debugViewTag: my-debug-tag        # [a-zA-Z0-9-]{1,20}
	  sourceTags: [automation]          # at most 5, none starting with "glean"
	upload:
	  rateLimitInterval: 60s
	  rateLimitMaxCount: 40
	  maxRecoverableFailures: 3
	  maxWaitAttempts: 3
	  maxPingBodySize: 1048576
	  requestTimeout: 10s
	  transport: http                   # or grpc, with grpcTarget
	storage:
	  backend: memory                   # or bolt, with dataDir
	dispatcher:
	  maxPreInitQueueSize: 100
	log:
	  level: info
	  json: false

Every validation failure wraps ErrInvalidConfig.
*/
package config
