package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/types"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPing(identifier, ping string) types.QueuedPing {
	return types.QueuedPing{
		Identifier: identifier,
		PingRecord: types.PingRecord{
			CollectionDate: testStart.Format("2006-01-02T15:04:05.000Z07:00"),
			Path:           "/submit/glean-test/" + ping + "/1/" + identifier,
			Payload: map[string]any{
				"ping_info": map[string]any{"seq": 0},
			},
		},
	}
}

func decompress(t *testing.T, body []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return data
}

// TestPrepareRequest tests headers and body compression
func TestPrepareRequest(t *testing.T) {
	ping := testPing("abc", "custom")
	ping.Headers = map[string]string{"X-Debug-ID": "tag"}

	req, err := PrepareRequest(ping, 1024*1024, testStart)
	require.NoError(t, err)

	assert.Equal(t, ping.Path, req.Path)
	assert.Equal(t, "application/json; charset=utf-8", req.Headers["Content-Type"])
	assert.Equal(t, "Sun, 18 Oct 2026 10:00:00 GMT", req.Headers["Date"])
	assert.Equal(t, core.TelemetryAgent(), req.Headers["X-Telemetry-Agent"])
	assert.Equal(t, "tag", req.Headers["X-Debug-ID"])
	assert.Equal(t, "gzip", req.Headers["Content-Encoding"])
	assert.Equal(t, strconv.Itoa(len(req.Body)), req.Headers["Content-Length"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(decompress(t, req.Body), &payload))
	assert.Equal(t, map[string]any{"seq": float64(0)}, payload["ping_info"])
}

// TestPrepareRequestOverflow tests that oversized bodies are rejected
func TestPrepareRequestOverflow(t *testing.T) {
	ping := testPing("abc", "custom")
	// Random-looking data does not compress well
	var sb strings.Builder
	for i := 0; i < 5000; i++ {
		sb.WriteString(strconv.FormatInt(int64(i*7919%104729), 36))
	}
	ping.Payload["blob"] = sb.String()

	_, err := PrepareRequest(ping, 64, testStart)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPingBodyOverflow))
}

// TestClassifyStatus tests status classification
func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected types.UploadResultKind
	}{
		{200, types.UploadResultSuccess},
		{204, types.UploadResultSuccess},
		{400, types.UploadResultUnrecoverableFailure},
		{404, types.UploadResultUnrecoverableFailure},
		{413, types.UploadResultUnrecoverableFailure},
		{500, types.UploadResultRecoverableFailure},
		{503, types.UploadResultRecoverableFailure},
		{0, types.UploadResultRecoverableFailure},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			result := ClassifyStatus(tt.status)
			assert.Equal(t, tt.expected, result.Result)
			assert.Equal(t, tt.status, result.Status)
		})
	}
}

// TestPingName tests extracting the ping name from a path
func TestPingName(t *testing.T) {
	assert.Equal(t, "events", pingName("/submit/app/events/1/id"))
	assert.Equal(t, "", pingName("/other"))
}
