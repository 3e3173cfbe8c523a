package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseSubmissionPath tests splitting submission paths
func TestParseSubmissionPath(t *testing.T) {
	app, ping, version, id, err := ParseSubmissionPath("/submit/my-app/baseline/1/0f4e")
	require.NoError(t, err)
	assert.Equal(t, "my-app", app)
	assert.Equal(t, "baseline", ping)
	assert.Equal(t, "1", version)
	assert.Equal(t, "0f4e", id)

	for _, path := range []string{"", "/submit/", "/submit/a/b/c", "/submit/a/b/c/d/e", "/submit/a//1/d", "/other/a/b/1/d"} {
		_, _, _, _, err := ParseSubmissionPath(path)
		assert.ErrorIs(t, err, ErrBadPath, path)
	}
}

// TestCollectorReceive tests decoding and keeping pings
func TestCollectorReceive(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(2, &out)

	code, err := c.Receive("grpc", "/submit/app/events/1/one",
		map[string]string{"content-encoding": "gzip", "x-debug-id": "tag"},
		gzipped(t, map[string]any{"events": []any{}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	received := c.Received()
	require.Len(t, received, 1)
	assert.Equal(t, "events", received[0].Ping)
	assert.Equal(t, "one", received[0].DocumentID)
	assert.Equal(t, "tag", received[0].Headers["x-debug-id"])
	assert.Contains(t, received[0].Payload, "events")

	var line ReceivedPing
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "one", line.DocumentID)
}

// TestCollectorKeepsMostRecent tests the bound on kept pings
func TestCollectorKeepsMostRecent(t *testing.T) {
	c := NewCollector(2, nil)
	for _, id := range []string{"a", "b", "c"} {
		_, err := c.Receive("http", "/submit/app/metrics/1/"+id, nil, []byte(`{}`))
		require.NoError(t, err)
	}

	received := c.Received()
	require.Len(t, received, 2)
	assert.Equal(t, "b", received[0].DocumentID)
	assert.Equal(t, "c", received[1].DocumentID)
}
