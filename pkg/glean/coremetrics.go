package glean

import (
	"runtime"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/metrictype"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/pings"
	"github.com/cuemby/glean/pkg/types"
	"github.com/google/uuid"
)

// KnownClientID replaces the client id while upload is disabled
const KnownClientID = "c0ffeec0-ffee-c0ff-eec0-ffeec0ffeec0"

// coreMetrics are the client_info values every ping carries
type coreMetrics struct {
	clientID          *metrictype.UUIDMetric
	firstRunDate      *metrictype.DatetimeMetric
	os                *metrictype.StringMetric
	architecture      *metrictype.StringMetric
	appBuild          *metrictype.StringMetric
	appDisplayVersion *metrictype.StringMetric
	appChannel        *metrictype.StringMetric
}

func clientInfo(name string, lifetime types.Lifetime) types.CommonMetricData {
	return types.CommonMetricData{
		Name:        name,
		SendInPings: []string{pings.ClientInfoStorage},
		Lifetime:    lifetime,
	}
}

func newCoreMetrics(ctx *core.Context) *coreMetrics {
	return &coreMetrics{
		clientID:          metrictype.NewUUID(ctx, clientInfo("client_id", types.LifetimeUser)),
		firstRunDate:      metrictype.NewDatetime(ctx, clientInfo("first_run_date", types.LifetimeUser), metricvalue.TimeUnitDay),
		os:                metrictype.NewString(ctx, clientInfo("os", types.LifetimeApplication)),
		architecture:      metrictype.NewString(ctx, clientInfo("architecture", types.LifetimeApplication)),
		appBuild:          metrictype.NewString(ctx, clientInfo("app_build", types.LifetimeApplication)),
		appDisplayVersion: metrictype.NewString(ctx, clientInfo("app_display_version", types.LifetimeApplication)),
		appChannel:        metrictype.NewString(ctx, clientInfo("app_channel", types.LifetimeApplication)),
	}
}

// storedClientID reads the client id straight from storage
func (g *Glean) storedClientID() (string, bool) {
	v, ok := g.ctx.Metrics.GetMetric(pings.ClientInfoStorage, clientInfo("client_id", types.LifetimeUser), types.MetricTypeUUID).(string)
	return v, ok
}

func (g *Glean) storedFirstRunDate() (map[string]any, bool) {
	raw, err := g.ctx.Stores().UserLifetime.Get([]string{pings.ClientInfoStorage, string(types.MetricTypeDatetime), "first_run_date"})
	if err != nil {
		return nil, false
	}
	v, ok := raw.(map[string]any)
	return v, ok
}

// initializeCoreMetrics records client_info values. A new client id is
// generated when none is stored or the stored one is the known id.
func (g *Glean) initializeCoreMetrics() error {
	m := g.coreMetrics
	if id, ok := g.storedClientID(); !ok || id == KnownClientID {
		if err := m.clientID.SetUndispatched(uuid.NewString()); err != nil {
			return err
		}
	}
	if _, ok := g.storedFirstRunDate(); !ok {
		if err := m.firstRunDate.SetUndispatched(g.ctx.Clock.Now()); err != nil {
			return err
		}
	}

	values := []struct {
		metric *metrictype.StringMetric
		value  string
	}{
		{m.os, runtime.GOOS},
		{m.architecture, runtime.GOARCH},
		{m.appBuild, g.cfg.AppBuild},
		{m.appDisplayVersion, g.cfg.AppDisplayVersion},
		{m.appChannel, g.cfg.Channel},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := v.metric.SetUndispatched(v.value); err != nil {
			return err
		}
	}
	return nil
}

// clearMetrics wipes pending pings, metrics and events. The first run date
// survives and the client id becomes KnownClientID.
func (g *Glean) clearMetrics() error {
	if err := g.upload.ClearPendingPingsQueue(); err != nil {
		return err
	}

	firstRunDate, hasFirstRunDate := g.storedFirstRunDate()

	if err := g.ctx.Metrics.ClearAll(); err != nil {
		return err
	}
	if err := g.ctx.Events.ClearAll(); err != nil {
		return err
	}

	if hasFirstRunDate {
		if err := g.ctx.Metrics.Record(clientInfo("first_run_date", types.LifetimeUser), types.MetricTypeDatetime, firstRunDate); err != nil {
			return err
		}
	}

	// Recording is gated on the upload flag, so lift it for the known id
	enabled := g.ctx.UploadEnabled()
	g.ctx.SetUploadEnabled(true)
	defer g.ctx.SetUploadEnabled(enabled)
	return g.coreMetrics.clientID.SetUndispatched(KnownClientID)
}
