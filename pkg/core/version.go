package core

import (
	"fmt"
	"runtime"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// TelemetryAgent is the X-Telemetry-Agent header value sent with every ping
func TelemetryAgent() string {
	return fmt.Sprintf("Glean/%s (Go on %s)", Version, runtime.GOOS)
}
