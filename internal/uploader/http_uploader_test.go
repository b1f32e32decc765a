package uploader_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/speechtrack/syncagent/internal/domain"
	"github.com/speechtrack/syncagent/internal/uploader"
)

// bytesReader serves fixed payloads per URI without touching the filesystem.
type bytesReader map[string][]byte

func (r bytesReader) Read(_ context.Context, uri string) ([]byte, error) {
	payload, ok := r[uri]
	if !ok {
		return nil, fmt.Errorf("no such resource: %s", uri)
	}
	return payload, nil
}

var testItem = domain.QueueItem{
	ID:       "1727000000000_ab12cd34e",
	LocalURI: "file:///recordings/rec_001.wav",
	ChildID:  7,
	Status:   domain.StatusPending,
}

func newUploader(serverURL string) *uploader.HTTPUploader {
	reader := bytesReader{testItem.LocalURI: []byte("RIFFxxxxWAVE")}
	return uploader.NewHTTPUploader(serverURL, reader, 5*time.Second)
}

func TestHTTPUploader_Success(t *testing.T) {
	var gotAuth, gotPath, gotChildID, gotFilename string
	var gotPayload []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotChildID = r.URL.Query().Get("child_id")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing multipart field file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		gotPayload, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 42, "status": "processing"}`)
	}))
	defer srv.Close()

	resp, err := newUploader(srv.URL).Upload(context.Background(), testItem, "tok-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.ID != 42 || resp.Status != "processing" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotPath != "/recordings/" {
		t.Fatalf("expected path /recordings/, got %q", gotPath)
	}
	if gotChildID != "7" {
		t.Fatalf("expected child_id=7, got %q", gotChildID)
	}
	if !strings.HasPrefix(gotFilename, "recording_") || !strings.HasSuffix(gotFilename, ".wav") {
		t.Fatalf("unexpected filename %q", gotFilename)
	}
	if string(gotPayload) != "RIFFxxxxWAVE" {
		t.Fatalf("payload mismatch: %q", gotPayload)
	}
}

func TestHTTPUploader_NoToken(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := newUploader(srv.URL).Upload(context.Background(), testItem, "")
	if !errors.Is(err, domain.ErrAuthMissing) {
		t.Fatalf("expected ErrAuthMissing, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no request without a token, got %d", calls)
	}
}

func TestHTTPUploader_RejectedWithDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail": "unsupported audio format"}`)
	}))
	defer srv.Close()

	_, err := newUploader(srv.URL).Upload(context.Background(), testItem, "tok")

	var rejected *uploader.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rejected.StatusCode)
	}
	if rejected.Error() != "unsupported audio format" {
		t.Fatalf("expected server detail in message, got %q", rejected.Error())
	}
}

func TestHTTPUploader_RejectedWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newUploader(srv.URL).Upload(context.Background(), testItem, "tok")

	var rejected *uploader.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Error() != "upload failed: status 502" {
		t.Fatalf("expected generic status message, got %q", rejected.Error())
	}
}

func TestHTTPUploader_MissingResource(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	stale := testItem
	stale.LocalURI = "file:///recordings/rotated-away.wav"

	_, err := newUploader(srv.URL).Upload(context.Background(), stale, "tok")
	if err == nil {
		t.Fatal("expected an error for a missing resource")
	}
	if calls != 0 {
		t.Fatalf("expected no request for an unreadable resource, got %d", calls)
	}
}
