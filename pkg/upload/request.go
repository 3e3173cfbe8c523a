package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/types"
	"github.com/klauspost/compress/gzip"
)

// ErrPingBodyOverflow is returned for bodies larger than the policy allows.
// Such pings are never sent.
var ErrPingBodyOverflow = errors.New("ping request body exceeds maximum size")

// Request is a ping ready to be handed to an Uploader
type Request struct {
	Path    string
	Body    []byte
	Headers map[string]string
}

// PrepareRequest serializes and compresses ping and builds its headers.
// Compression failures fall back to an uncompressed body.
func PrepareRequest(ping types.QueuedPing, maxBodySize int, now time.Time) (*Request, error) {
	headers := map[string]string{
		"Content-Type":      "application/json; charset=utf-8",
		"Date":              now.UTC().Format(http.TimeFormat),
		"X-Telemetry-Agent": core.TelemetryAgent(),
	}
	for k, v := range ping.Headers {
		headers[k] = v
	}

	body, err := json.Marshal(ping.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ping payload: %w", err)
	}

	if compressed, err := gzipBody(body); err == nil {
		body = compressed
		headers["Content-Encoding"] = "gzip"
	}

	if maxBodySize > 0 && len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPingBodyOverflow, len(body), maxBodySize)
	}
	headers["Content-Length"] = strconv.Itoa(len(body))

	return &Request{Path: ping.Path, Body: body, Headers: headers}, nil
}

func gzipBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
