package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status values reported by a Registry
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// DefaultCriticalComponents must all be healthy for a client to report ready
var DefaultCriticalComponents = []string{"storage", "dispatcher", "upload"}

// HealthStatus is the body of the health and readiness endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

type componentState struct {
	err     error
	updated time.Time
}

// Registry tracks the last reported status of named components
type Registry struct {
	mu         sync.RWMutex
	components map[string]componentState
	critical   []string
	version    string
	started    time.Time
}

// NewRegistry creates a registry whose readiness depends on critical
func NewRegistry(critical ...string) *Registry {
	return &Registry{
		components: make(map[string]componentState),
		critical:   append([]string(nil), critical...),
		started:    time.Now(),
	}
}

var defaultRegistry = NewRegistry(DefaultCriticalComponents...)

// SetVersion sets the version reported by the registry
func (r *Registry) SetVersion(version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version = version
}

// SetCritical replaces the components readiness depends on
func (r *Registry) SetCritical(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.critical = append([]string(nil), names...)
}

// Set records the status of a component. A nil err means healthy.
func (r *Registry) Set(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = componentState{err: err, updated: time.Now()}
}

// Health reports every component; one failing component makes it unhealthy
func (r *Registry) Health() HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.statusLocked(StatusHealthy)
	for name, c := range r.components {
		if c.err != nil {
			h.Status = StatusUnhealthy
			h.Components[name] = "unhealthy: " + c.err.Error()
			continue
		}
		h.Components[name] = StatusHealthy
	}
	return h
}

// Readiness reports only the critical components. Components that never
// reported count as not ready.
func (r *Registry) Readiness() HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.statusLocked(StatusReady)
	critical := append([]string(nil), r.critical...)
	sort.Strings(critical)
	for _, name := range critical {
		c, ok := r.components[name]
		switch {
		case !ok:
			h.Components[name] = "not registered"
			if h.Status == StatusReady {
				h.Message = "waiting for " + name + " initialization"
			}
			h.Status = StatusNotReady
		case c.err != nil:
			h.Components[name] = "not ready: " + c.err.Error()
			if h.Status == StatusReady {
				h.Message = "waiting for " + name
			}
			h.Status = StatusNotReady
		default:
			h.Components[name] = StatusReady
		}
	}
	return h
}

func (r *Registry) statusLocked(status string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]string),
		Version:    r.version,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
	}
}

// HealthHandler serves Health, with 503 when unhealthy
func (r *Registry) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := r.Health()
		writeStatus(w, h, h.Status == StatusHealthy)
	}
}

// ReadyHandler serves Readiness, with 503 when not ready
func (r *Registry) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := r.Readiness()
		writeStatus(w, h, h.Status == StatusReady)
	}
}

func writeStatus(w http.ResponseWriter, h HealthStatus, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}

// SetVersion sets the version reported by the default registry
func SetVersion(version string) { defaultRegistry.SetVersion(version) }

// SetCriticalComponents replaces the critical set of the default registry
func SetCriticalComponents(names ...string) { defaultRegistry.SetCritical(names...) }

// SetComponentStatus records a component in the default registry
func SetComponentStatus(name string, err error) { defaultRegistry.Set(name, err) }

// GetHealth returns the health of the default registry
func GetHealth() HealthStatus { return defaultRegistry.Health() }

// GetReadiness returns the readiness of the default registry
func GetReadiness() HealthStatus { return defaultRegistry.Readiness() }

// HealthHandler serves the default registry's health
func HealthHandler() http.HandlerFunc { return defaultRegistry.HealthHandler() }

// ReadyHandler serves the default registry's readiness
func ReadyHandler() http.HandlerFunc { return defaultRegistry.ReadyHandler() }
