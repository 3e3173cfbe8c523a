package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultServerEndpoint         = "https://incoming.telemetry.mozilla.org"
	DefaultMaxEvents              = 500
	DefaultRateLimitInterval      = 60 * time.Second
	DefaultRateLimitMaxCount      = 40
	DefaultMaxRecoverableFailures = 3
	DefaultMaxWaitAttempts        = 3
	DefaultMaxPingBodySize        = 1024 * 1024
	DefaultRequestTimeout         = 10 * time.Second
	DefaultMaxPreInitQueueSize    = 100

	// MaxSourceTags bounds how many source tags a client may carry
	MaxSourceTags = 5

	TransportHTTP = "http"
	TransportGRPC = "grpc"

	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

var tagPattern = regexp.MustCompile(`^[a-zA-Z0-9-]{1,20}$`)

// Config holds everything needed to construct a Glean client
type Config struct {
	ApplicationID     string `yaml:"applicationId"`
	AppBuild          string `yaml:"appBuild,omitempty"`
	AppDisplayVersion string `yaml:"appDisplayVersion,omitempty"`
	Channel           string `yaml:"channel,omitempty"`
	ServerEndpoint    string `yaml:"serverEndpoint"`
	MaxEvents         int    `yaml:"maxEvents"`

	Debug      DebugOptions      `yaml:"debug"`
	Upload     UploadOptions     `yaml:"upload"`
	Storage    StorageOptions    `yaml:"storage"`
	Dispatcher DispatcherOptions `yaml:"dispatcher"`
	Log        LogOptions        `yaml:"log"`
}

// DebugOptions are the debugging features that can also be toggled at runtime
type DebugOptions struct {
	LogPings     bool     `yaml:"logPings"`
	DebugViewTag string   `yaml:"debugViewTag,omitempty"`
	SourceTags   []string `yaml:"sourceTags,omitempty"`
}

// UploadOptions configure the upload manager and its transport
type UploadOptions struct {
	RateLimitInterval      time.Duration `yaml:"rateLimitInterval"`
	RateLimitMaxCount      int           `yaml:"rateLimitMaxCount"`
	MaxRecoverableFailures int           `yaml:"maxRecoverableFailures"`
	MaxWaitAttempts        int           `yaml:"maxWaitAttempts"`
	MaxPingBodySize        int           `yaml:"maxPingBodySize"`
	RequestTimeout         time.Duration `yaml:"requestTimeout"`
	Transport              string        `yaml:"transport"`
	// GRPCTarget is the dial target used when Transport is "grpc"
	GRPCTarget string `yaml:"grpcTarget,omitempty"`
}

// StorageOptions select where metrics, events and pending pings live
type StorageOptions struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"dataDir,omitempty"`
}

// DispatcherOptions configure the task dispatcher
type DispatcherOptions struct {
	MaxPreInitQueueSize int `yaml:"maxPreInitQueueSize"`
}

// LogOptions configure pkg/log
type LogOptions struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with every default filled in
func Default() *Config {
	return &Config{
		ServerEndpoint: DefaultServerEndpoint,
		MaxEvents:      DefaultMaxEvents,
		Upload: UploadOptions{
			RateLimitInterval:      DefaultRateLimitInterval,
			RateLimitMaxCount:      DefaultRateLimitMaxCount,
			MaxRecoverableFailures: DefaultMaxRecoverableFailures,
			MaxWaitAttempts:        DefaultMaxWaitAttempts,
			MaxPingBodySize:        DefaultMaxPingBodySize,
			RequestTimeout:         DefaultRequestTimeout,
			Transport:              TransportHTTP,
		},
		Storage: StorageOptions{
			Backend: BackendMemory,
		},
		Dispatcher: DispatcherOptions{
			MaxPreInitQueueSize: DefaultMaxPreInitQueueSize,
		},
		Log: LogOptions{
			Level: "info",
		},
	}
}

// Load reads and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration and sanitizes the application id
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ApplicationID) == "" {
		return fmt.Errorf("%w: applicationId is required", ErrInvalidConfig)
	}
	c.ApplicationID = SanitizeApplicationID(c.ApplicationID)

	endpoint, err := url.Parse(c.ServerEndpoint)
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return fmt.Errorf("%w: serverEndpoint %q must be an http(s) URL", ErrInvalidConfig, c.ServerEndpoint)
	}

	if c.Debug.DebugViewTag != "" && !ValidateDebugViewTag(c.Debug.DebugViewTag) {
		return fmt.Errorf("%w: debugViewTag %q must match %s", ErrInvalidConfig, c.Debug.DebugViewTag, tagPattern)
	}
	if len(c.Debug.SourceTags) > 0 && !ValidateSourceTags(c.Debug.SourceTags) {
		return fmt.Errorf("%w: sourceTags %v are invalid", ErrInvalidConfig, c.Debug.SourceTags)
	}

	switch {
	case c.MaxEvents <= 0:
		return fmt.Errorf("%w: maxEvents must be positive", ErrInvalidConfig)
	case c.Upload.RateLimitInterval <= 0 || c.Upload.RateLimitMaxCount <= 0:
		return fmt.Errorf("%w: upload rate limit must be positive", ErrInvalidConfig)
	case c.Upload.MaxRecoverableFailures <= 0 || c.Upload.MaxWaitAttempts <= 0:
		return fmt.Errorf("%w: upload retry limits must be positive", ErrInvalidConfig)
	case c.Upload.MaxPingBodySize <= 0:
		return fmt.Errorf("%w: maxPingBodySize must be positive", ErrInvalidConfig)
	case c.Dispatcher.MaxPreInitQueueSize <= 0:
		return fmt.Errorf("%w: maxPreInitQueueSize must be positive", ErrInvalidConfig)
	}

	switch c.Upload.Transport {
	case TransportHTTP:
	case TransportGRPC:
		if c.Upload.GRPCTarget == "" {
			return fmt.Errorf("%w: grpcTarget is required for the grpc transport", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Upload.Transport)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("%w: dataDir is required for the bolt backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	return nil
}

// SanitizeApplicationID lowercases the id and replaces '.' and '_' with '-'
// so that it can be used in submission paths.
func SanitizeApplicationID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.NewReplacer(".", "-", "_", "-").Replace(id)
}

// ValidateDebugViewTag reports whether tag can be sent as X-Debug-ID
func ValidateDebugViewTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// ValidateSourceTags reports whether tags can be sent as X-Source-Tags
func ValidateSourceTags(tags []string) bool {
	if len(tags) == 0 || len(tags) > MaxSourceTags {
		return false
	}
	for _, tag := range tags {
		if !tagPattern.MatchString(tag) || strings.HasPrefix(tag, "glean") {
			return false
		}
	}
	return true
}
