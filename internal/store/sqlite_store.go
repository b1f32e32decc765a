package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/speechtrack/syncagent/internal/domain"
)

// queueKey is the single well-known key under which the whole queue is
// persisted as one serialized blob.
const queueKey = "offline_recording_queue"

type sqliteStore struct {
	db     *sql.DB
	logger *zap.Logger

	// mu serializes read-modify-write cycles so no in-process caller can
	// observe a partial update. Cross-process atomicity is not claimed.
	mu sync.Mutex
}

// NewSQLiteStore returns a Store persisting the queue as a single JSON blob
// in the kv_state table of the given database.
func NewSQLiteStore(conn *sql.DB, logger *zap.Logger) Store {
	return &sqliteStore{db: conn, logger: logger}
}

func (s *sqliteStore) GetAll(ctx context.Context) []domain.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *sqliteStore) Append(ctx context.Context, item domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	items = append(items, item)
	return s.save(ctx, items)
}

func (s *sqliteStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	filtered := items[:0:0]
	for _, it := range items {
		if it.ID != id {
			filtered = append(filtered, it)
		}
	}
	if len(filtered) == len(items) {
		return nil // unknown id: leave the blob untouched
	}
	return s.save(ctx, filtered)
}

func (s *sqliteStore) UpdateFields(ctx context.Context, id string, update domain.ItemUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	for i := range items {
		if items[i].ID == id {
			update.Apply(&items[i])
			return s.save(ctx, items)
		}
	}
	return nil // no-op if not found
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_state WHERE key = ?`, queueKey)
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// load reads and decodes the queue blob. Callers must hold mu.
func (s *sqliteStore) load(ctx context.Context) []domain.QueueItem {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_state WHERE key = ?`, queueKey,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logger.Error("failed to read queue blob", zap.Error(err))
		return nil
	}

	var items []domain.QueueItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Error("failed to decode queue blob", zap.Error(err))
		return nil
	}
	return items
}

// save serializes and persists the full collection. Callers must hold mu.
func (s *sqliteStore) save(ctx context.Context, items []domain.QueueItem) error {
	if items == nil {
		items = []domain.QueueItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue blob: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		queueKey, string(raw),
	)
	if err != nil {
		return fmt.Errorf("write queue blob: %w", err)
	}
	return nil
}

var _ Store = (*sqliteStore)(nil)
