package store

import (
	"context"

	"github.com/speechtrack/syncagent/internal/domain"
)

// Store defines persistence for the offline upload queue.
// The SQLite implementation is in sqlite_store.go.
// Tests use a hand-written mock (mock_store.go).
//
// GetAll fails soft: a read or decode failure is logged and yields an empty
// queue rather than an error, so display paths never crash on a corrupt
// blob. Mutations propagate write errors — silently losing a recording the
// user just queued is not acceptable.
type Store interface {
	GetAll(ctx context.Context) []domain.QueueItem
	Append(ctx context.Context, item domain.QueueItem) error
	Remove(ctx context.Context, id string) error
	UpdateFields(ctx context.Context, id string, update domain.ItemUpdate) error
	Clear(ctx context.Context) error
}
