package uploader

import (
	"context"
	"fmt"

	"github.com/speechtrack/syncagent/internal/domain"
)

// UploadResponse maps the backend's 2xx response body: the server-assigned
// recording record, reported back to listeners for display.
type UploadResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// Uploader transmits one queued recording to the analysis backend.
// Mocking this interface in tests gives full control over upload behaviour
// without making real HTTP calls.
//
// The bearer token is passed per call: the queue has no session awareness
// of its own and never persists credentials.
type Uploader interface {
	Upload(ctx context.Context, item domain.QueueItem, token string) (*UploadResponse, error)
}

// RejectedError is a backend refusal: a non-2xx response to the upload.
// Detail carries the server-provided message when the body had one.
type RejectedError struct {
	StatusCode int
	Detail     string
}

func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("upload failed: status %d", e.StatusCode)
}
