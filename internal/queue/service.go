package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/speechtrack/syncagent/internal/domain"
	"github.com/speechtrack/syncagent/internal/ratelimiter"
	"github.com/speechtrack/syncagent/internal/store"
	"github.com/speechtrack/syncagent/internal/uploader"
)

// Monitor is the connectivity dependency: a fresh pre-flight check plus a
// subscription that fires the given callback whenever connectivity returns.
type Monitor interface {
	Start(ctx context.Context, onOnline func())
	Stop()
	Check(ctx context.Context) bool
}

// TokenSource supplies the bearer credential for background-triggered
// processing runs. The queue never stores tokens itself.
type TokenSource func(ctx context.Context) (string, error)

// Listener receives the full queue contents after every store mutation.
type Listener func(items []domain.QueueItem)

// Hooks carries the metric callback functions injected by main.
// Using a struct keeps the service constructor signature clean.
type Hooks struct {
	OnSent   func(latency time.Duration)
	OnFailed func()
	OnDepth  func(n int)
}

// Service is the offline-first recording upload queue: it durably persists
// recordings that could not be uploaded immediately, drains them against
// the backend when connectivity allows, and notifies listeners after every
// change. Construct one at process start and pass it to whichever component
// needs it; Init and Destroy are idempotent.
type Service struct {
	store       store.Store
	uploader    uploader.Uploader
	monitor     Monitor
	tokens      TokenSource
	limiter     *ratelimiter.UploadLimiter
	maxAttempts int
	hooks       Hooks
	logger      *zap.Logger

	// processing is the single-flight guard: at most one traversal of the
	// queue runs at a time, and concurrent triggers are dropped rather than
	// queued. The next trigger re-scans the full store, so work is never
	// lost, only delayed.
	processing atomic.Bool

	mu          sync.Mutex
	listeners   []listenerEntry
	listenerSeq int
	initialized bool
	runCtx      context.Context
	cancelRun   context.CancelFunc
}

type listenerEntry struct {
	id int
	fn Listener
}

// NewService constructs the queue service. tokens and hooks callbacks are
// optional (nil = no-op); limiter may be nil to upload unthrottled.
func NewService(
	st store.Store,
	up uploader.Uploader,
	mon Monitor,
	tokens TokenSource,
	limiter *ratelimiter.UploadLimiter,
	maxAttempts int,
	logger *zap.Logger,
	hooks Hooks,
) *Service {
	if tokens == nil {
		tokens = func(context.Context) (string, error) { return "", nil }
	}
	if hooks.OnSent == nil {
		hooks.OnSent = func(time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func() {}
	}
	if hooks.OnDepth == nil {
		hooks.OnDepth = func(int) {}
	}
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	return &Service{
		store: st, uploader: up, monitor: mon, tokens: tokens,
		limiter: limiter, maxAttempts: maxAttempts, logger: logger, hooks: hooks,
	}
}

// Init starts the connectivity subscription and kicks one processing pass
// for any backlog left from a previous run. Items found persisted as
// uploading are reclaimed to pending first: a crash mid-upload must not
// leave them stuck outside the actionable set forever.
func (s *Service) Init(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	runCtx, cancel := context.WithCancel(context.Background())
	s.runCtx = runCtx
	s.cancelRun = cancel
	s.mu.Unlock()

	s.reclaimStalled(ctx)

	s.monitor.Start(runCtx, func() {
		go s.processWithToken(runCtx)
	})

	go s.processWithToken(runCtx)
}

// Destroy tears down the connectivity subscription and stops background
// processing. Idempotent, and safe without a prior Init.
func (s *Service) Destroy() {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = false
	cancel := s.cancelRun
	s.runCtx = nil
	s.cancelRun = nil
	s.mu.Unlock()

	cancel()
	s.monitor.Stop()
}

// Add durably queues a recording for later upload and kicks an immediate
// processing pass, so an enqueue while online drains right away.
func (s *Service) Add(ctx context.Context, req domain.EnqueueRequest) (domain.QueueItem, error) {
	if err := req.Validate(); err != nil {
		return domain.QueueItem{}, err
	}

	recordedAt := req.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	item := domain.QueueItem{
		ID:              newItemID(),
		LocalURI:        req.LocalURI,
		ChildID:         req.ChildID,
		ChildName:       req.ChildName,
		DurationSeconds: req.DurationSeconds,
		RecordedAt:      recordedAt,
		Status:          domain.StatusPending,
	}

	if err := s.store.Append(ctx, item); err != nil {
		return domain.QueueItem{}, fmt.Errorf("persist queue item: %w", err)
	}
	s.logger.Info("recording queued for upload",
		zap.String("item_id", item.ID),
		zap.Int64("child_id", item.ChildID),
		zap.Int("duration_seconds", item.DurationSeconds),
	)
	s.notify(ctx)

	go s.processWithToken(s.runContext())
	return item, nil
}

// Remove deletes one item from the queue. Unknown ids are a no-op.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove queue item: %w", err)
	}
	s.notify(ctx)
	return nil
}

// Items returns the queue contents in insertion order.
func (s *Service) Items(ctx context.Context) []domain.QueueItem {
	return s.store.GetAll(ctx)
}

// PendingCount returns how many recordings still await upload. Successful
// uploads are removed from the store, so everything present counts.
func (s *Service) PendingCount(ctx context.Context) int {
	return len(s.store.GetAll(ctx))
}

// Clear empties the entire queue.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	s.notify(ctx)
	return nil
}

// AddListener registers a callback invoked synchronously with the full
// queue contents after every mutation, plus once immediately with the
// current snapshot. The returned function unsubscribes; it is safe to call
// repeatedly and from within the callback itself.
func (s *Service) AddListener(fn Listener) func() {
	s.mu.Lock()
	s.listenerSeq++
	id := s.listenerSeq
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	fn(s.store.GetAll(context.Background()))

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, entry := range s.listeners {
			if entry.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Process drains every actionable item once, strictly in insertion order.
// It never returns an error to its trigger: a "connectivity restored" event
// must not blow up, so upload failures become item-state mutations instead.
//
// When a traversal is already running the call returns immediately; when
// the device is offline it returns without touching the guard.
func (s *Service) Process(ctx context.Context, token string) {
	if !s.monitor.Check(ctx) {
		s.logger.Debug("offline, skipping queue processing")
		return
	}

	if !s.processing.CompareAndSwap(false, true) {
		return
	}
	defer s.processing.Store(false)

	items := s.store.GetAll(ctx)
	actionable := items[:0:0]
	for _, item := range items {
		if !item.Status.Actionable() {
			continue
		}
		if item.Exhausted(s.maxAttempts) {
			s.logger.Debug("skipping item, max attempts reached",
				zap.String("item_id", item.ID),
				zap.Int("attempts", item.Attempts),
			)
			continue
		}
		actionable = append(actionable, item)
	}
	if len(actionable) == 0 {
		return
	}

	s.logger.Info("processing offline queue", zap.Int("items", len(actionable)))

	for _, item := range actionable {
		if ctx.Err() != nil {
			return
		}
		if err := s.processItem(ctx, item, token); err != nil {
			// Missing credential: the data is fine, only the session context
			// is absent, and every remaining item needs the same token.
			s.logger.Warn("no credential for upload, leaving queue intact")
			return
		}
	}
}

// processItem runs one upload attempt and folds the outcome into the item's
// stored state. The only error it returns is ErrAuthMissing, which aborts
// the traversal; everything else is isolated to this item.
func (s *Service) processItem(ctx context.Context, item domain.QueueItem, token string) error {
	log := s.logger.With(
		zap.String("item_id", item.ID),
		zap.Int64("child_id", item.ChildID),
	)

	uploading := domain.StatusUploading
	if err := s.store.UpdateFields(ctx, item.ID, domain.ItemUpdate{Status: &uploading}); err != nil {
		log.Error("failed to mark item uploading", zap.Error(err))
		return nil
	}
	s.notify(ctx)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			// ctx cancelled while waiting — shutting down.
			s.setStatus(ctx, item.ID, domain.StatusPending, log)
			return nil
		}
	}

	start := time.Now()
	_, err := s.uploader.Upload(ctx, item, token)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, domain.ErrAuthMissing) {
			// Do not count an attempt: nothing about the item failed.
			s.setStatus(ctx, item.ID, domain.StatusPending, log)
			return err
		}

		log.Warn("upload failed",
			zap.Error(err),
			zap.Int("attempts", item.Attempts+1),
		)
		failed := domain.StatusFailed
		attempts := item.Attempts + 1
		msg := err.Error()
		if uerr := s.store.UpdateFields(ctx, item.ID, domain.ItemUpdate{
			Status:    &failed,
			Attempts:  &attempts,
			LastError: &msg,
		}); uerr != nil {
			log.Error("failed to record upload failure", zap.Error(uerr))
		}
		s.notify(ctx)
		s.hooks.OnFailed()
		return nil
	}

	if rerr := s.store.Remove(ctx, item.ID); rerr != nil {
		log.Error("failed to remove uploaded item", zap.Error(rerr))
		return nil
	}
	s.notify(ctx)
	s.hooks.OnSent(elapsed)
	log.Info("recording uploaded", zap.Duration("latency", elapsed))
	return nil
}

// ---- private helpers ----

func (s *Service) setStatus(ctx context.Context, id string, status domain.Status, log *zap.Logger) {
	if err := s.store.UpdateFields(ctx, id, domain.ItemUpdate{Status: &status}); err != nil {
		log.Error("failed to update item status",
			zap.String("status", string(status)), zap.Error(err))
		return
	}
	s.notify(ctx)
}

// reclaimStalled resets items persisted as uploading back to pending. Since
// the status is written before the network call, a crash mid-upload leaves
// such items behind; without this they would sit outside the actionable
// set forever.
func (s *Service) reclaimStalled(ctx context.Context) {
	reclaimed := 0
	for _, item := range s.store.GetAll(ctx) {
		if item.Status != domain.StatusUploading {
			continue
		}
		pending := domain.StatusPending
		if err := s.store.UpdateFields(ctx, item.ID, domain.ItemUpdate{Status: &pending}); err != nil {
			s.logger.Error("failed to reclaim stalled item",
				zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		reclaimed++
	}
	if reclaimed > 0 {
		s.logger.Info("reclaimed stalled uploads", zap.Int("count", reclaimed))
		s.notify(ctx)
	}
}

// processWithToken resolves the credential from the token source and runs
// one processing pass. Used by the connectivity callback and enqueue kicks.
func (s *Service) processWithToken(ctx context.Context) {
	token, err := s.tokens(ctx)
	if err != nil {
		s.logger.Debug("credential lookup failed before processing", zap.Error(err))
		token = ""
	}
	s.Process(ctx, token)
}

// notify fans the fresh queue contents out to every listener, synchronously
// and in registration order.
func (s *Service) notify(ctx context.Context) {
	items := s.store.GetAll(ctx)
	s.hooks.OnDepth(len(items))

	s.mu.Lock()
	subs := make([]listenerEntry, len(s.listeners))
	copy(subs, s.listeners)
	s.mu.Unlock()

	for _, entry := range subs {
		entry.fn(items)
	}
}

func (s *Service) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

// newItemID builds a time-based id with a random suffix so concurrent
// enqueues in the same millisecond cannot collide.
func newItemID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), suffix)
}
