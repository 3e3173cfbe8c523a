package glean

import (
	"github.com/cuemby/glean/pkg/clock"
	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/upload"
)

type options struct {
	clock    clock.Clock
	uploader upload.Uploader
	stores   *core.Stores
}

// Option customizes a client
type Option func(*options)

// WithClock replaces the wall clock, mostly for tests
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithUploader replaces the transport selected by configuration
func WithUploader(u upload.Uploader) Option {
	return func(o *options) { o.uploader = u }
}

// WithStores runs the client over the given stores instead of the
// configured backend
func WithStores(stores core.Stores) Option {
	return func(o *options) { o.stores = &stores }
}
