package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/glean/pkg/types"
)

// HTTPUploader posts pings with net/http
type HTTPUploader struct {
	client *http.Client
}

// NewHTTPUploader creates an HTTP uploader with the given request timeout
func NewHTTPUploader(timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{client: &http.Client{Timeout: timeout}}
}

// Post sends body to url. Failures to reach the server are recoverable.
func (u *HTTPUploader) Post(ctx context.Context, url string, body []byte, headers map[string]string) (types.UploadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.UploadResult{Result: types.UploadResultUnrecoverableFailure}, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		if k == "Content-Length" {
			continue
		}
		req.Header.Set(k, v)
	}
	req.ContentLength = int64(len(body))

	resp, err := u.client.Do(req)
	if err != nil {
		return types.UploadResult{Result: types.UploadResultRecoverableFailure}, fmt.Errorf("failed to post ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return ClassifyStatus(resp.StatusCode), nil
}
