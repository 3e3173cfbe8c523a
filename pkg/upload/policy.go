package upload

import (
	"github.com/cuemby/glean/pkg/config"
)

// Policy bounds how hard the manager tries within one uploading window
type Policy struct {
	// MaxRecoverableFailures ends the window after this many retryable failures
	MaxRecoverableFailures int
	// MaxWaitAttempts ends the window after this many consecutive throttled waits
	MaxWaitAttempts int
	// MaxPingBodySize is the largest request body that is sent
	MaxPingBodySize int
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		MaxRecoverableFailures: config.DefaultMaxRecoverableFailures,
		MaxWaitAttempts:        config.DefaultMaxWaitAttempts,
		MaxPingBodySize:        config.DefaultMaxPingBodySize,
	}
}

// PolicyFromConfig builds a policy from upload options, keeping defaults
// for unset values
func PolicyFromConfig(opts config.UploadOptions) Policy {
	p := DefaultPolicy()
	if opts.MaxRecoverableFailures > 0 {
		p.MaxRecoverableFailures = opts.MaxRecoverableFailures
	}
	if opts.MaxWaitAttempts > 0 {
		p.MaxWaitAttempts = opts.MaxWaitAttempts
	}
	if opts.MaxPingBodySize > 0 {
		p.MaxPingBodySize = opts.MaxPingBodySize
	}
	return p
}
