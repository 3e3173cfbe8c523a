package glean

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/clock"
	"github.com/cuemby/glean/pkg/config"
	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/dispatcher"
	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metrics"
	"github.com/cuemby/glean/pkg/pings"
	"github.com/cuemby/glean/pkg/storage"
	"github.com/cuemby/glean/pkg/upload"
	"github.com/rs/zerolog"
)

// Glean is one telemetry client. Metric handles are created against
// Context() and every public method is safe to call before Initialize.
type Glean struct {
	cfg    *config.Config
	opts   []Option
	ctx    *core.Context
	logger zerolog.Logger

	maker       *pings.Maker
	corePings   *pings.CorePings
	coreMetrics *coreMetrics
	upload      *upload.Manager
	collector   *metrics.Collector
	closer      io.Closer

	mu          sync.Mutex
	initialized bool
	shutdown    bool
}

// New builds a client from configuration. Nothing is recorded or sent
// until Initialize is called.
func New(cfg *config.Config, opts ...Option) (*Glean, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}

	var (
		ctx *core.Context
		err error
	)
	if o.stores != nil {
		ctx = core.NewWithStores(cfg, o.clock, *o.stores)
	} else {
		ctx, err = core.New(cfg, o.clock)
		if err != nil {
			return nil, err
		}
	}

	g := &Glean{
		cfg:    cfg,
		opts:   opts,
		ctx:    ctx,
		logger: log.WithComponent("glean"),
	}

	uploader := o.uploader
	if uploader == nil {
		uploader, err = newUploader(cfg.Upload)
		if err != nil {
			ctx.Close()
			return nil, err
		}
		if c, ok := uploader.(io.Closer); ok {
			g.closer = c
		}
	}

	g.maker = pings.NewMaker(ctx)
	g.corePings = pings.NewCorePings(g.maker)
	g.coreMetrics = newCoreMetrics(ctx)
	g.upload = upload.NewManager(ctx, uploader)
	g.collector = metrics.NewCollector(g, 0)

	ctx.Pings.AttachObserver(g.upload)
	ctx.Events.SetSubmitter(g.maker.SubmitByName)
	return g, nil
}

func newUploader(opts config.UploadOptions) (upload.Uploader, error) {
	switch opts.Transport {
	case config.TransportGRPC:
		return upload.NewGRPCUploader(opts.GRPCTarget)
	default:
		return upload.NewHTTPUploader(opts.RequestTimeout), nil
	}
}

// Context returns the shared services metric handles record through
func (g *Glean) Context() *core.Context {
	return g.ctx
}

// Maker returns the ping maker custom pings register with
func (g *Glean) Maker() *pings.Maker {
	return g.maker
}

// CorePings returns the pings the client submits itself
func (g *Glean) CorePings() *pings.CorePings {
	return g.corePings
}

// RegisterPings makes application pings known to the client
func (g *Glean) RegisterPings(pingTypes ...*pings.PingType) {
	for _, p := range pingTypes {
		g.maker.Register(p)
	}
}

// Initialize starts the client. Tasks launched before this call run
// right after the initialization task.
func (g *Glean) Initialize(uploadEnabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		g.logger.Warn().Msg("Attempted to initialize Glean, but it has already been initialized. Ignoring")
		return
	}
	g.initialized = true

	g.ctx.Broker.Start()
	g.collector.Start()
	metrics.SetVersion(core.Version)
	for name, err := range g.ComponentStatus() {
		metrics.SetComponentStatus(name, err)
	}

	g.ctx.Dispatcher.FlushInit(func(ctx context.Context) error {
		return g.initialize(ctx, uploadEnabled)
	})
}

func (g *Glean) initialize(ctx context.Context, uploadEnabled bool) error {
	g.ctx.SetInitialized(true)

	if uploadEnabled {
		g.ctx.SetUploadEnabled(true)
		if err := g.initializeCoreMetrics(); err != nil {
			return fmt.Errorf("failed to record client info: %w", err)
		}
	} else {
		// A real client id left over means upload was disabled while the
		// client was not running
		if id, ok := g.storedClientID(); ok && id != KnownClientID {
			if err := g.onUploadDisabled(ctx, pings.ReasonAtInit); err != nil {
				return err
			}
		} else if err := g.clearMetrics(); err != nil {
			return err
		}
	}

	if err := g.ctx.Events.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize events database: %w", err)
	}
	if err := g.ctx.Pings.ScanPendingPings(); err != nil {
		return fmt.Errorf("failed to scan pending pings: %w", err)
	}

	g.logger.Info().
		Str("application_id", g.cfg.ApplicationID).
		Bool("upload_enabled", uploadEnabled).
		Msg("Glean initialized")
	return nil
}

// onUploadDisabled sends the deletion-request ping and then wipes everything
func (g *Glean) onUploadDisabled(ctx context.Context, reason string) error {
	g.ctx.SetUploadEnabled(false)
	if err := g.corePings.DeletionRequest.SubmitUndispatched(ctx, reason); err != nil {
		return fmt.Errorf("failed to submit deletion-request: %w", err)
	}
	return g.clearMetrics()
}

// SetUploadEnabled turns recording and upload on or off. Turning it off
// submits a deletion-request ping and clears all stored data.
func (g *Glean) SetUploadEnabled(enabled bool) {
	g.ctx.Dispatcher.Launch(func(ctx context.Context) error {
		if !g.ctx.Initialized() {
			g.logger.Error().Msg("Changing upload enabled before Glean is initialized is not supported")
			return nil
		}
		if g.ctx.UploadEnabled() == enabled {
			return nil
		}

		if enabled {
			g.ctx.SetUploadEnabled(true)
			return g.initializeCoreMetrics()
		}
		return g.onUploadDisabled(ctx, pings.ReasonSetUploadEnabled)
	})
}

// SetLogPings toggles logging of every assembled ping
func (g *Glean) SetLogPings(enabled bool) {
	g.ctx.SetLogPings(enabled)
}

// SetDebugViewTag tags every following ping with X-Debug-ID
func (g *Glean) SetDebugViewTag(tag string) {
	if !g.ctx.SetDebugViewTag(tag) {
		g.logger.Error().Str("tag", tag).Msg("Invalid debug view tag, ignoring")
	}
}

// SetSourceTags tags every following ping with X-Source-Tags
func (g *Glean) SetSourceTags(tags []string) {
	if !g.ctx.SetSourceTags(tags) {
		g.logger.Error().Strs("tags", tags).Msg("Invalid source tags, ignoring")
	}
}

// Shutdown runs every queued task, waits for ongoing uploads and releases
// storage. The client cannot be used afterwards.
func (g *Glean) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.shutdown {
		g.mu.Unlock()
		return nil
	}
	g.shutdown = true
	started := g.initialized
	g.mu.Unlock()

	var errs []error
	select {
	case <-g.ctx.Dispatcher.Shutdown():
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("timed out waiting for dispatcher: %w", ctx.Err()))
	}
	if err := g.upload.BlockOnOngoingUploads(ctx); err != nil {
		errs = append(errs, fmt.Errorf("timed out waiting for uploads: %w", err))
	}

	if started {
		g.collector.Stop()
	}
	if g.closer != nil {
		if err := g.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := g.ctx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	return errors.Join(errs...)
}

// DispatcherQueueLength implements metrics.Source
func (g *Glean) DispatcherQueueLength() int {
	return g.ctx.Dispatcher.QueueLength()
}

// PendingPings implements metrics.Source
func (g *Glean) PendingPings() int {
	return g.upload.QueueLength()
}

// ComponentStatus implements metrics.Source
func (g *Glean) ComponentStatus() map[string]error {
	status := map[string]error{
		"storage":    nil,
		"dispatcher": nil,
		"upload":     nil,
	}
	if g.ctx.Dispatcher.State() == dispatcher.StateShutdown {
		status["dispatcher"] = errors.New("dispatcher is shut down")
	}
	if _, err := g.ctx.Stores().PendingPings.Get(nil); err != nil {
		status["storage"] = err
	}
	return status
}

// TestBlockOnUploads waits until queued tasks ran and the upload worker is idle
func (g *Glean) TestBlockOnUploads(ctx context.Context) error {
	if err := <-g.ctx.Dispatcher.TestLaunch(func(context.Context) error { return nil }); err != nil {
		return err
	}
	return g.upload.BlockOnOngoingUploads(ctx)
}

// TestResetGlean shuts the client down and returns a fresh one over the
// same storage, as after a process restart. clearStores wipes the storage
// first.
func (g *Glean) TestResetGlean(ctx context.Context, uploadEnabled, clearStores bool) (*Glean, error) {
	stores := g.ctx.Stores()
	persistent := g.cfg.Storage.Backend == config.BackendBolt

	if err := g.Shutdown(ctx); err != nil {
		return nil, err
	}

	opts := append([]Option(nil), g.opts...)
	if !persistent {
		opts = append(opts, WithStores(stores))
	}
	next, err := New(g.cfg, opts...)
	if err != nil {
		return nil, err
	}

	if clearStores {
		if err := next.wipe(); err != nil {
			return nil, err
		}
	}
	next.Initialize(uploadEnabled)
	return next, nil
}

func (g *Glean) wipe() error {
	stores := g.ctx.Stores()
	for _, store := range []storage.Store{
		stores.UserLifetime, stores.PingLifetime, stores.ApplicationLifetime,
		stores.Events, stores.PendingPings,
	} {
		if err := store.Delete(nil); err != nil {
			return err
		}
	}
	return nil
}

// defaultShutdownTimeout bounds Close
const defaultShutdownTimeout = 30 * time.Second

// Close shuts down with a default timeout
func (g *Glean) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}
