package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/clock"
	"github.com/cuemby/glean/pkg/config"
	"github.com/cuemby/glean/pkg/database"
	"github.com/cuemby/glean/pkg/dispatcher"
	"github.com/cuemby/glean/pkg/events"
	"github.com/cuemby/glean/pkg/storage"
)

// Context holds the services shared by one Glean client instance. It is
// built once per client and passed to every component that needs it.
type Context struct {
	Config     *config.Config
	Clock      clock.Clock
	Monotonic  *clock.Monotonic
	Dispatcher *dispatcher.Dispatcher
	Metrics    *database.MetricsDatabase
	Events     *database.EventsDatabase
	Pings      *database.PingsDatabase
	Errors     *database.ErrorManager
	Broker     *events.Broker

	bolt   *storage.BoltDB
	stores Stores

	mu            sync.RWMutex
	uploadEnabled bool
	initialized   bool
	debug         config.DebugOptions
}

// Stores are the five named stores a client persists into
type Stores struct {
	UserLifetime        storage.Store
	PingLifetime        storage.Store
	ApplicationLifetime storage.Store
	Events              storage.Store
	PendingPings        storage.Store
}

// MemoryStores returns a fresh set of in-memory stores
func MemoryStores() Stores {
	return Stores{
		UserLifetime:        storage.NewMemoryStore(),
		PingLifetime:        storage.NewMemoryStore(),
		ApplicationLifetime: storage.NewMemoryStore(),
		Events:              storage.NewMemoryStore(),
		PendingPings:        storage.NewMemoryStore(),
	}
}

// BoltStores opens the named stores inside one bbolt database
func BoltStores(db *storage.BoltDB) (Stores, error) {
	var stores Stores
	targets := map[string]*storage.Store{
		storage.StoreUserLifetimeMetrics:        &stores.UserLifetime,
		storage.StorePingLifetimeMetrics:        &stores.PingLifetime,
		storage.StoreApplicationLifetimeMetrics: &stores.ApplicationLifetime,
		storage.StoreEvents:                     &stores.Events,
		storage.StorePendingPings:               &stores.PendingPings,
	}
	for name, target := range targets {
		store, err := db.Store(name)
		if err != nil {
			return Stores{}, err
		}
		*target = store
	}
	return stores, nil
}

// New builds a Context from configuration, opening the configured storage backend
func New(cfg *config.Config, c clock.Clock) (*Context, error) {
	if c == nil {
		c = clock.Real()
	}

	var (
		stores Stores
		bolt   *storage.BoltDB
	)
	switch cfg.Storage.Backend {
	case config.BackendBolt:
		db, err := storage.OpenBolt(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		stores, err = BoltStores(db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open stores: %w", err)
		}
		bolt = db
	default:
		stores = MemoryStores()
	}

	ctx := NewWithStores(cfg, c, stores)
	ctx.bolt = bolt
	return ctx, nil
}

// NewWithStores builds a Context over caller-provided stores
func NewWithStores(cfg *config.Config, c clock.Clock, stores Stores) *Context {
	if c == nil {
		c = clock.Real()
	}
	monotonic := clock.NewMonotonic(c)

	metricsDB := database.NewMetricsDatabase(stores.UserLifetime, stores.PingLifetime, stores.ApplicationLifetime)
	errs := database.NewErrorManager(metricsDB)

	return &Context{
		Config:     cfg,
		Clock:      c,
		Monotonic:  monotonic,
		Dispatcher: dispatcher.New(cfg.Dispatcher.MaxPreInitQueueSize),
		Metrics:    metricsDB,
		Events:     database.NewEventsDatabase(stores.Events, metricsDB, errs, monotonic.Start(), cfg.MaxEvents),
		Pings:      database.NewPingsDatabase(stores.PendingPings),
		Errors:     errs,
		Broker:     events.NewBroker(),
		stores:     stores,
		debug:      cfg.Debug,
	}
}

// StartTime is the wall-clock time this execution started
func (c *Context) StartTime() time.Time {
	return c.Monotonic.Start()
}

// Stores returns the stores this context persists into
func (c *Context) Stores() Stores {
	return c.stores
}

// Close releases the storage backend
func (c *Context) Close() error {
	c.Broker.Stop()
	if c.bolt != nil {
		return c.bolt.Close()
	}
	return nil
}

// UploadEnabled reports whether recording and upload are enabled
func (c *Context) UploadEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uploadEnabled
}

// SetUploadEnabled flips the upload flag
func (c *Context) SetUploadEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploadEnabled = enabled
}

// Initialized reports whether the client finished initializing
func (c *Context) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// SetInitialized marks the client as initialized
func (c *Context) SetInitialized(initialized bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = initialized
}

// LogPings reports whether assembled pings are logged
func (c *Context) LogPings() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debug.LogPings
}

// SetLogPings toggles ping logging
func (c *Context) SetLogPings(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug.LogPings = enabled
}

// DebugViewTag returns the X-Debug-ID tag, empty when unset
func (c *Context) DebugViewTag() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debug.DebugViewTag
}

// SetDebugViewTag sets the debug view tag. Invalid tags are rejected.
func (c *Context) SetDebugViewTag(tag string) bool {
	if !config.ValidateDebugViewTag(tag) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug.DebugViewTag = tag
	return true
}

// SourceTags returns a copy of the X-Source-Tags values
func (c *Context) SourceTags() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.debug.SourceTags...)
}

// SetSourceTags sets the source tags. Invalid sets are rejected as a whole.
func (c *Context) SetSourceTags(tags []string) bool {
	if !config.ValidateSourceTags(tags) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug.SourceTags = append([]string(nil), tags...)
	return true
}
