package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/speechtrack/syncagent/internal/domain"
)

// HTTPUploader delivers recordings by POSTing multipart bodies to the
// backend's recording-ingest endpoint. The base URL is injected from config
// so tests can point to a local mock.
type HTTPUploader struct {
	baseURL    string
	reader     ResourceReader
	httpClient *http.Client
}

// NewHTTPUploader constructs an uploader against the given backend.
// The timeout bounds each upload attempt end to end so a hung connection
// cannot stall the queue's single-flight processing.
func NewHTTPUploader(baseURL string, reader ResourceReader, timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		reader:  reader,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upload reads the local audio resource and posts it as the multipart field
// "file" to /recordings/?child_id={id} with a bearer Authorization header.
func (u *HTTPUploader) Upload(ctx context.Context, item domain.QueueItem, token string) (*UploadResponse, error) {
	if token == "" {
		return nil, domain.ErrAuthMissing
	}

	payload, err := u.reader.Read(ctx, item.LocalURI)
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", item.LocalURI, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	filename := fmt.Sprintf("recording_%d.wav", time.Now().UnixMilli())
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("write form payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/recordings/?child_id=%d", u.baseURL, item.ChildID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		rejected := &RejectedError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&detail); decodeErr == nil {
			rejected.Detail = detail.Detail
		}
		return nil, rejected
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// compile-time check that HTTPUploader implements Uploader
var _ Uploader = (*HTTPUploader)(nil)
