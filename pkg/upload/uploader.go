package upload

import (
	"context"

	"github.com/cuemby/glean/pkg/types"
)

// Uploader sends one prepared request to the ingestion server. A returned
// error is treated as a recoverable failure.
type Uploader interface {
	Post(ctx context.Context, url string, body []byte, headers map[string]string) (types.UploadResult, error)
}

// ClassifyStatus maps a transport status to an upload result. 2xx is a
// success, 4xx is permanent and everything else may succeed later.
func ClassifyStatus(status int) types.UploadResult {
	switch {
	case status >= 200 && status < 300:
		return types.UploadResult{Status: status, Result: types.UploadResultSuccess}
	case status >= 400 && status < 500:
		return types.UploadResult{Status: status, Result: types.UploadResultUnrecoverableFailure}
	default:
		return types.UploadResult{Status: status, Result: types.UploadResultRecoverableFailure}
	}
}
