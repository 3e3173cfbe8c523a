package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse tests decoding YAML over the defaults
func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
applicationId: My.App_Name
appDisplayVersion: "1.2.3"
channel: nightly
maxEvents: 20
debug:
  logPings: true
  debugViewTag: my-tag
  sourceTags: [automation, perf]
upload:
  rateLimitInterval: 30s
  rateLimitMaxCount: 10
storage:
  backend: bolt
  dataDir: /tmp/glean
`))
	require.NoError(t, err)

	assert.Equal(t, "my-app-name", cfg.ApplicationID)
	assert.Equal(t, "nightly", cfg.Channel)
	assert.Equal(t, 20, cfg.MaxEvents)
	assert.True(t, cfg.Debug.LogPings)
	assert.Equal(t, []string{"automation", "perf"}, cfg.Debug.SourceTags)
	assert.Equal(t, 30*time.Second, cfg.Upload.RateLimitInterval)
	assert.Equal(t, 10, cfg.Upload.RateLimitMaxCount)

	// Unset fields keep their defaults
	assert.Equal(t, DefaultServerEndpoint, cfg.ServerEndpoint)
	assert.Equal(t, DefaultMaxRecoverableFailures, cfg.Upload.MaxRecoverableFailures)
	assert.Equal(t, TransportHTTP, cfg.Upload.Transport)
	assert.Equal(t, DefaultMaxPreInitQueueSize, cfg.Dispatcher.MaxPreInitQueueSize)
}

// TestLoad tests reading a configuration file
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glean.yaml")
	require.NoError(t, os.WriteFile(path, []byte("applicationId: demo\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.ApplicationID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestMarshalRoundTrip tests that a marshalled config parses back
func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.ApplicationID = "demo"
	data, err := cfg.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

// TestValidate tests rejection of invalid configurations
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "missing application id", modify: func(c *Config) { c.ApplicationID = " " }},
		{name: "ftp endpoint", modify: func(c *Config) { c.ServerEndpoint = "ftp://example.com" }},
		{name: "relative endpoint", modify: func(c *Config) { c.ServerEndpoint = "/submit" }},
		{name: "bad debug tag", modify: func(c *Config) { c.Debug.DebugViewTag = "has spaces" }},
		{name: "long debug tag", modify: func(c *Config) { c.Debug.DebugViewTag = "abcdefghijklmnopqrstu" }},
		{name: "reserved source tag", modify: func(c *Config) { c.Debug.SourceTags = []string{"glean-test"} }},
		{name: "too many source tags", modify: func(c *Config) { c.Debug.SourceTags = []string{"a", "b", "c", "d", "e", "f"} }},
		{name: "zero max events", modify: func(c *Config) { c.MaxEvents = 0 }},
		{name: "zero rate limit", modify: func(c *Config) { c.Upload.RateLimitMaxCount = 0 }},
		{name: "zero failures", modify: func(c *Config) { c.Upload.MaxRecoverableFailures = 0 }},
		{name: "zero body size", modify: func(c *Config) { c.Upload.MaxPingBodySize = 0 }},
		{name: "zero preinit", modify: func(c *Config) { c.Dispatcher.MaxPreInitQueueSize = 0 }},
		{name: "grpc without target", modify: func(c *Config) { c.Upload.Transport = TransportGRPC }},
		{name: "unknown transport", modify: func(c *Config) { c.Upload.Transport = "carrier-pigeon" }},
		{name: "bolt without dir", modify: func(c *Config) { c.Storage.Backend = BackendBolt }},
		{name: "unknown backend", modify: func(c *Config) { c.Storage.Backend = "s3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ApplicationID = "demo"
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

// TestValidateTags tests the tag helpers used at runtime
func TestValidateTags(t *testing.T) {
	assert.True(t, ValidateDebugViewTag("test-tag-1"))
	assert.False(t, ValidateDebugViewTag(""))
	assert.False(t, ValidateDebugViewTag("tag_with_underscore"))

	assert.True(t, ValidateSourceTags([]string{"automation"}))
	assert.False(t, ValidateSourceTags(nil))
	assert.False(t, ValidateSourceTags([]string{"gleanish"}))
}

// TestSanitizeApplicationID tests application id normalisation
func TestSanitizeApplicationID(t *testing.T) {
	assert.Equal(t, "org-mozilla-foo-bar", SanitizeApplicationID("org.mozilla.Foo_Bar"))
}
