package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metrics"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// DefaultMaxBodySize bounds the size of a received body before decompression
const DefaultMaxBodySize = 1024 * 1024

var (
	// ErrBadPath is returned for paths that are not /submit/<app>/<ping>/<version>/<id>
	ErrBadPath = errors.New("not a submission path")
	// ErrBodyTooLarge is returned for bodies over the collector limit
	ErrBodyTooLarge = errors.New("body too large")
	// ErrBadBody is returned for bodies that are not (gzipped) JSON
	ErrBadBody = errors.New("malformed ping body")
)

// ReceivedPing is a ping accepted by the collector
type ReceivedPing struct {
	Transport   string            `json:"transport"`
	Application string            `json:"application"`
	Ping        string            `json:"ping"`
	Version     string            `json:"version"`
	DocumentID  string            `json:"documentId"`
	Headers     map[string]string `json:"headers,omitempty"`
	Payload     map[string]any    `json:"payload"`
	ReceivedAt  time.Time         `json:"receivedAt"`
}

// Collector accepts pings from any transport and keeps the most recent ones
type Collector struct {
	maxBodySize int
	keep        int
	out         io.Writer
	logger      zerolog.Logger

	mu    sync.RWMutex
	pings []ReceivedPing
}

// NewCollector creates a collector that keeps up to keep pings. Each
// accepted ping is also written to out as a JSON line when out is not nil.
func NewCollector(keep int, out io.Writer) *Collector {
	if keep <= 0 {
		keep = 1000
	}
	return &Collector{
		maxBodySize: DefaultMaxBodySize,
		keep:        keep,
		out:         out,
		logger:      log.WithComponent("collector"),
	}
}

// ParseSubmissionPath splits a submission path into its parts
func ParseSubmissionPath(path string) (app, ping, version, documentID string, err error) {
	rest, ok := strings.CutPrefix(path, "/submit/")
	if !ok {
		return "", "", "", "", fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return "", "", "", "", fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", "", "", fmt.Errorf("%w: %q", ErrBadPath, path)
		}
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}

// Receive validates and stores a ping. It returns the HTTP status the
// submitting client should see.
func (c *Collector) Receive(transport, path string, headers map[string]string, body []byte) (int, error) {
	app, ping, version, id, err := ParseSubmissionPath(path)
	if err != nil {
		return http.StatusNotFound, err
	}
	if len(body) > c.maxBodySize {
		return http.StatusRequestEntityTooLarge, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}

	if strings.EqualFold(header(headers, "Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return http.StatusBadRequest, fmt.Errorf("%w: %v", ErrBadBody, err)
		}
		body, err = io.ReadAll(zr)
		if err != nil {
			return http.StatusBadRequest, fmt.Errorf("%w: %v", ErrBadBody, err)
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return http.StatusBadRequest, fmt.Errorf("%w: %v", ErrBadBody, err)
	}

	received := ReceivedPing{
		Transport:   transport,
		Application: app,
		Ping:        ping,
		Version:     version,
		DocumentID:  id,
		Headers:     headers,
		Payload:     payload,
		ReceivedAt:  time.Now().UTC(),
	}

	c.mu.Lock()
	c.pings = append(c.pings, received)
	if len(c.pings) > c.keep {
		c.pings = c.pings[len(c.pings)-c.keep:]
	}
	if c.out != nil {
		if line, err := json.Marshal(received); err == nil {
			_, _ = c.out.Write(append(line, '\n'))
		}
	}
	c.mu.Unlock()

	metrics.CollectorPingsReceived.WithLabelValues(transport, ping).Inc()
	c.logger.Info().
		Str("transport", transport).
		Str("application", app).
		Str("ping", ping).
		Str("document_id", id).
		Msg("Ping received")
	return http.StatusOK, nil
}

// Received returns the kept pings, oldest first
func (c *Collector) Received() []ReceivedPing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ReceivedPing(nil), c.pings...)
}

// header looks a header up case-insensitively
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
