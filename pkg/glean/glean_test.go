package glean

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/glean/pkg/clock"
	"github.com/cuemby/glean/pkg/config"
	"github.com/cuemby/glean/pkg/metrictype"
	"github.com/cuemby/glean/pkg/pings"
	"github.com/cuemby/glean/pkg/types"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type sentPing struct {
	url     string
	headers map[string]string
	payload map[string]any
}

// capturingUploader decodes and keeps every ping it is given
type capturingUploader struct {
	mu      sync.Mutex
	uploads []sentPing
}

func (u *capturingUploader) Post(_ context.Context, url string, body []byte, headers map[string]string) (types.UploadResult, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return types.UploadResult{Result: types.UploadResultUnrecoverableFailure}, err
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return types.UploadResult{Result: types.UploadResultUnrecoverableFailure}, err
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return types.UploadResult{Result: types.UploadResultUnrecoverableFailure}, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, sentPing{url: url, headers: headers, payload: payload})
	return types.UploadResult{Status: 200, Result: types.UploadResultSuccess}, nil
}

func (u *capturingUploader) byPing(name string) []sentPing {
	u.mu.Lock()
	defer u.mu.Unlock()

	var out []sentPing
	for _, up := range u.uploads {
		if strings.Contains(up.url, "/"+name+"/") {
			out = append(out, up)
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ApplicationID = "glean.test"
	return cfg
}

func newTestGlean(t *testing.T, uploadEnabled bool) (*Glean, *capturingUploader, *clock.FakeClock) {
	t.Helper()
	uploader := &capturingUploader{}
	fake := clock.Fake(testStart)

	g, err := New(testConfig(), WithClock(fake), WithUploader(uploader))
	require.NoError(t, err)
	g.Initialize(uploadEnabled)
	t.Cleanup(func() { _ = g.Close() })
	return g, uploader, fake
}

func blockOnUploads(t *testing.T, g *Glean) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.TestBlockOnUploads(ctx))
}

func counterIn(ping string) types.CommonMetricData {
	return types.CommonMetricData{Category: "test", Name: "clicks", SendInPings: []string{ping}}
}

// TestNewValidatesConfig tests that invalid configuration is rejected
func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

// TestSubmitAndUpload tests a custom ping travelling to the uploader
func TestSubmitAndUpload(t *testing.T) {
	g, uploader, _ := newTestGlean(t, true)
	custom := pings.NewPingType(g.Maker(), "custom", true, false)

	counter := metrictype.NewCounter(g.Context(), counterIn("custom"))
	counter.Add(2)
	custom.Submit("")
	blockOnUploads(t, g)

	sent := uploader.byPing("custom")
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0].url, config.DefaultServerEndpoint+"/submit/glean-test/custom/1/"))

	payload := sent[0].payload
	assert.Equal(t, float64(2), payload["metrics"].(map[string]any)["counter"].(map[string]any)["test.clicks"])

	info := payload["client_info"].(map[string]any)
	assert.NotEmpty(t, info["client_id"])
	assert.NotEqual(t, KnownClientID, info["client_id"])
	assert.Equal(t, "2026-10-18+00:00", info["first_run_date"])
	assert.Contains(t, info, "os")
	assert.Contains(t, info, "telemetry_sdk_build")

	assert.Equal(t, 0, g.Context().Pings.Count())
}

// TestPreInitRecording tests that values recorded before Initialize are kept
func TestPreInitRecording(t *testing.T) {
	uploader := &capturingUploader{}
	g, err := New(testConfig(), WithClock(clock.Fake(testStart)), WithUploader(uploader))
	require.NoError(t, err)
	defer g.Close()

	counter := metrictype.NewCounter(g.Context(), counterIn("custom"))
	counter.Add(5)
	g.Initialize(true)

	value, ok := counter.TestGetValue("")
	require.True(t, ok)
	assert.Equal(t, int64(5), value)
}

// TestSetUploadEnabledFalse tests the deletion-request flow and data wipe
func TestSetUploadEnabledFalse(t *testing.T) {
	g, uploader, _ := newTestGlean(t, true)
	counter := metrictype.NewCounter(g.Context(), counterIn("custom"))
	counter.Add(1)

	clientID := metrictype.NewUUID(g.Context(), clientInfo("client_id", types.LifetimeUser))
	original, ok := clientID.TestGetValue("")
	require.True(t, ok)

	g.SetUploadEnabled(false)
	blockOnUploads(t, g)

	sent := uploader.byPing(pings.DeletionRequestPingName)
	require.Len(t, sent, 1)
	info := sent[0].payload["client_info"].(map[string]any)
	assert.Equal(t, original, info["client_id"])
	assert.Equal(t, pings.ReasonSetUploadEnabled, sent[0].payload["ping_info"].(map[string]any)["reason"])

	_, ok = counter.TestGetValue("")
	assert.False(t, ok)

	var stored any
	<-g.Context().Dispatcher.TestLaunch(func(context.Context) error {
		stored, _ = g.storedClientID()
		return nil
	})
	assert.Equal(t, KnownClientID, stored)

	// Recording is a no-op while disabled
	counter.Add(1)
	_, ok = counter.TestGetValue("")
	assert.False(t, ok)

	// Enabling again generates a fresh client id
	g.SetUploadEnabled(true)
	fresh, ok := clientID.TestGetValue("")
	require.True(t, ok)
	assert.NotEqual(t, KnownClientID, fresh)
	assert.NotEqual(t, original, fresh)
}

// TestDisabledWhileNotRunning tests that a restart with upload disabled sends a deletion-request
func TestDisabledWhileNotRunning(t *testing.T) {
	g, uploader, _ := newTestGlean(t, true)
	blockOnUploads(t, g)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	next, err := g.TestResetGlean(ctx, false, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = next.Close() })
	blockOnUploads(t, next)

	sent := uploader.byPing(pings.DeletionRequestPingName)
	require.Len(t, sent, 1)
	assert.Equal(t, pings.ReasonAtInit, sent[0].payload["ping_info"].(map[string]any)["reason"])

	// A second restart has nothing left to delete
	again, err := next.TestResetGlean(ctx, false, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })
	blockOnUploads(t, again)
	assert.Len(t, uploader.byPing(pings.DeletionRequestPingName), 1)
}

// TestEventsAcrossRestart tests that events of two executions form one timeline
func TestEventsAcrossRestart(t *testing.T) {
	g, uploader, fake := newTestGlean(t, true)
	meta := types.CommonMetricData{Category: "ui", Name: "click", SendInPings: []string{"custom"}}

	event := metrictype.NewEvent(g.Context(), meta)
	event.Record(map[string]any{"button": "ok"})
	fake.Advance(10 * time.Second)
	event.Record(nil)
	blockOnUploads(t, g)

	fake.Advance(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	next, err := g.TestResetGlean(ctx, true, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = next.Close() })

	custom := pings.NewPingType(next.Maker(), "custom", false, false)
	fake.Advance(5 * time.Second)
	metrictype.NewEvent(next.Context(), meta).Record(nil)
	custom.Submit("")
	blockOnUploads(t, next)

	sent := uploader.byPing("custom")
	require.Len(t, sent, 1)
	recorded := sent[0].payload["events"].([]any)
	require.Len(t, recorded, 3)

	var timestamps []float64
	for _, raw := range recorded {
		e := raw.(map[string]any)
		assert.NotEqual(t, "restarted", e["name"])
		timestamps = append(timestamps, e["timestamp"].(float64))
	}
	assert.Equal(t, []float64{0, 10000, 16000}, timestamps)
	assert.Equal(t, map[string]any{"button": "ok"}, recorded[0].(map[string]any)["extra"])
}

// TestEventsPingAtStartup tests that leftover events are sent when the client starts
func TestEventsPingAtStartup(t *testing.T) {
	g, uploader, _ := newTestGlean(t, true)
	meta := types.CommonMetricData{Category: "ui", Name: "click", SendInPings: []string{pings.EventsPingName}}
	metrictype.NewEvent(g.Context(), meta).Record(nil)
	blockOnUploads(t, g)
	assert.Empty(t, uploader.byPing(pings.EventsPingName))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	next, err := g.TestResetGlean(ctx, true, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = next.Close() })
	blockOnUploads(t, next)

	sent := uploader.byPing(pings.EventsPingName)
	require.Len(t, sent, 1)
	assert.Equal(t, pings.ReasonStartup, sent[0].payload["ping_info"].(map[string]any)["reason"])
}

// TestDebugOptions tests debug headers and invalid tags
func TestDebugOptions(t *testing.T) {
	g, uploader, _ := newTestGlean(t, true)
	custom := pings.NewPingType(g.Maker(), "custom", false, true)

	g.SetDebugViewTag("invalid tag!")
	assert.Equal(t, "", g.Context().DebugViewTag())
	g.SetDebugViewTag("debug-1")
	g.SetSourceTags([]string{"automation"})
	g.SetLogPings(true)

	custom.Submit("")
	blockOnUploads(t, g)

	sent := uploader.byPing("custom")
	require.Len(t, sent, 1)
	assert.Equal(t, "debug-1", sent[0].headers["X-Debug-ID"])
	assert.Equal(t, "automation", sent[0].headers["X-Source-Tags"])
}

// TestShutdown tests that shutdown is idempotent and stops the dispatcher
func TestShutdown(t *testing.T) {
	g, _, _ := newTestGlean(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Shutdown(ctx))
	require.NoError(t, g.Shutdown(ctx))

	assert.Error(t, g.ComponentStatus()["dispatcher"])
	assert.Equal(t, 0, g.PendingPings())
}

// TestBoltPersistence tests that pending data survives a restart on disk
func TestBoltPersistence(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = config.BackendBolt
	cfg.Storage.DataDir = t.TempDir()

	uploader := &capturingUploader{}
	g, err := New(cfg, WithClock(clock.Fake(testStart)), WithUploader(uploader))
	require.NoError(t, err)
	g.Initialize(true)

	metrictype.NewCounter(g.Context(), types.CommonMetricData{
		Category: "test", Name: "runs", SendInPings: []string{"custom"}, Lifetime: types.LifetimeUser,
	}).Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	next, err := g.TestResetGlean(ctx, true, false)
	require.NoError(t, err)
	defer next.Close()

	value, ok := metrictype.NewCounter(next.Context(), types.CommonMetricData{
		Category: "test", Name: "runs", SendInPings: []string{"custom"}, Lifetime: types.LifetimeUser,
	}).TestGetValue("")
	require.True(t, ok)
	assert.Equal(t, int64(1), value)
}
