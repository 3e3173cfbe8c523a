package pings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/events"
	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metrics"
	"github.com/cuemby/glean/pkg/metricvalue"
	"github.com/cuemby/glean/pkg/types"
	"github.com/rs/zerolog"
)

// SchemaVersion is the payload schema version used in submission paths
const SchemaVersion = 1

// Storage names that hold client and ping bookkeeping metrics
const (
	ClientInfoStorage = "glean_client_info"
	PingInfoStorage   = "glean_ping_info"
)

// Maker assembles ping payloads from the metrics and events databases and
// stores them as pending pings.
type Maker struct {
	ctx    *core.Context
	logger zerolog.Logger

	mu    sync.RWMutex
	pings map[string]*PingType
}

// NewMaker creates a ping maker
func NewMaker(ctx *core.Context) *Maker {
	return &Maker{
		ctx:    ctx,
		logger: log.WithComponent("ping_maker"),
		pings:  make(map[string]*PingType),
	}
}

// Register makes a ping type known by name
func (m *Maker) Register(ping *PingType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings[ping.Name] = ping
}

// Lookup returns a registered ping type
func (m *Maker) Lookup(name string) (*PingType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pings[name]
	return p, ok
}

// SubmitByName submits a registered ping from inside a dispatched task
func (m *Maker) SubmitByName(ctx context.Context, name, reason string) error {
	ping, ok := m.Lookup(name)
	if !ok {
		return fmt.Errorf("ping %q is not registered", name)
	}
	return ping.SubmitUndispatched(ctx, reason)
}

// sequenceMetric counts how many times a ping was assembled
func sequenceMetric(ping string) types.CommonMetricData {
	return types.CommonMetricData{
		Name:        ping + "#sequence",
		SendInPings: []string{PingInfoStorage},
		Lifetime:    types.LifetimeUser,
	}
}

// startMetric holds the end time of the previous ping, which is the start of the next
func startMetric(ping string) types.CommonMetricData {
	return types.CommonMetricData{
		Name:        ping + "#start",
		SendInPings: []string{PingInfoStorage},
		Lifetime:    types.LifetimeUser,
	}
}

// CollectPing builds the payload of ping and clears its ping lifetime data.
// It returns nil when the ping is empty and not sent if empty.
func (m *Maker) CollectPing(ping *PingType, reason string) (map[string]any, error) {
	metricsData, err := m.ctx.Metrics.GetPingMetrics(ping.Name, true)
	if err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}
	eventsData, err := m.ctx.Events.PreparePingEvents(ping.Name, true)
	if err != nil {
		return nil, fmt.Errorf("failed to collect events: %w", err)
	}

	if metricsData == nil && eventsData == nil && !ping.SendIfEmpty {
		return nil, nil
	}

	pingInfo, err := m.pingInfo(ping, reason)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"ping_info":   pingInfo,
		"client_info": m.clientInfo(ping),
	}
	if metricsData != nil {
		payload["metrics"] = metricsData
	}
	if eventsData != nil {
		payload["events"] = eventsData
	}
	return payload, nil
}

func (m *Maker) pingInfo(ping *PingType, reason string) (map[string]any, error) {
	now := m.ctx.Clock.Now()

	var seq int64
	if stored, ok := m.ctx.Metrics.GetMetric(PingInfoStorage, sequenceMetric(ping.Name), types.MetricTypeCounter).(int64); ok {
		seq = stored
	}
	if err := m.ctx.Metrics.Record(sequenceMetric(ping.Name), types.MetricTypeCounter, seq+1); err != nil {
		return nil, fmt.Errorf("failed to update sequence number: %w", err)
	}

	start, ok := m.ctx.Metrics.GetMetric(PingInfoStorage, startMetric(ping.Name), types.MetricTypeDatetime).(string)
	if !ok {
		start = metricvalue.FormatDatetime(m.ctx.StartTime(), metricvalue.TimeUnitMinute)
	}
	if err := m.ctx.Metrics.Record(startMetric(ping.Name), types.MetricTypeDatetime,
		metricvalue.Datetime(now, metricvalue.TimeUnitMinute)); err != nil {
		return nil, fmt.Errorf("failed to update start time: %w", err)
	}

	info := map[string]any{
		"seq":        seq,
		"start_time": start,
		"end_time":   metricvalue.FormatDatetime(now, metricvalue.TimeUnitMinute),
	}
	if reason != "" {
		info["reason"] = reason
	}
	return info, nil
}

// clientInfo flattens the client info metrics into a single object
func (m *Maker) clientInfo(ping *PingType) map[string]any {
	info := map[string]any{"telemetry_sdk_build": core.Version}

	snapshot, err := m.ctx.Metrics.GetPingMetrics(ClientInfoStorage, false)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read client info")
	}
	for _, byIdentifier := range snapshot {
		values, ok := byIdentifier.(map[string]any)
		if !ok {
			continue
		}
		for identifier, value := range values {
			info[identifier] = value
		}
	}

	if !ping.IncludeClientID {
		delete(info, "client_id")
	}
	return info
}

// headers returns the debug headers configured on the client
func (m *Maker) headers() map[string]string {
	headers := make(map[string]string)
	if tag := m.ctx.DebugViewTag(); tag != "" {
		headers["X-Debug-ID"] = tag
	}
	if tags := m.ctx.SourceTags(); len(tags) > 0 {
		headers["X-Source-Tags"] = strings.Join(tags, ",")
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// SubmissionPath returns the path a ping is posted to
func SubmissionPath(applicationID, ping, identifier string) string {
	return fmt.Sprintf("/submit/%s/%s/%d/%s", applicationID, ping, SchemaVersion, identifier)
}

// CollectAndStorePing assembles ping and hands it to the pings database
func (m *Maker) CollectAndStorePing(_ context.Context, identifier string, ping *PingType, reason string) error {
	logger := log.WithPingID(log.WithPing(m.logger, ping.Name), identifier)

	payload, err := m.CollectPing(ping, reason)
	if err != nil {
		return err
	}
	if payload == nil {
		logger.Info().Msg("Storage for ping empty. Ping will not be sent")
		return nil
	}

	path := SubmissionPath(m.ctx.Config.ApplicationID, ping.Name, identifier)
	if m.ctx.LogPings() {
		if data, err := json.MarshalIndent(payload, "", "  "); err == nil {
			logger.Info().Str("path", path).Msg(string(data))
		}
	}

	record := types.PingRecord{
		CollectionDate: m.ctx.Clock.Now().UTC().Format(time.RFC3339Nano),
		Path:           path,
		Payload:        payload,
		Headers:        m.headers(),
	}
	if err := m.ctx.Pings.RecordPing(identifier, record); err != nil {
		return err
	}

	metrics.PingsSubmitted.WithLabelValues(ping.Name).Inc()
	m.ctx.Broker.Publish(&events.Notification{
		Type:       events.NotificationPingSubmitted,
		DocumentID: identifier,
		Ping:       ping.Name,
		Message:    reason,
	})
	logger.Debug().Str("reason", reason).Msg("Ping stored")
	return nil
}
