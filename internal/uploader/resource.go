package uploader

import (
	"context"
	"os"
	"strings"
)

// ResourceReader resolves a queue item's local resource reference into the
// bytes to upload. The capture subsystem owns the resource; the queue only
// references it, so a read failure here is an ordinary retryable failure.
type ResourceReader interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// FileReader reads plain paths and file:// URIs from the local filesystem.
type FileReader struct{}

func (FileReader) Read(_ context.Context, uri string) ([]byte, error) {
	return os.ReadFile(strings.TrimPrefix(uri, "file://"))
}

var _ ResourceReader = FileReader{}
