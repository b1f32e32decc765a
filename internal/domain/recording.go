package domain

import "time"

// Status tracks the lifecycle of a queued recording upload.
// There is no terminal "uploaded" status: a successful upload removes the
// item from the store entirely.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusFailed    Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusUploading, StatusFailed:
		return true
	}
	return false
}

// Actionable reports whether an item in this status is eligible for an
// upload attempt. Items observed mid-upload are skipped until the current
// traversal settles them.
func (s Status) Actionable() bool {
	return s == StatusPending || s == StatusFailed
}

// DefaultMaxAttempts is the cap beyond which an item stays visible in the
// queue but is no longer retried automatically.
const DefaultMaxAttempts = 3

// QueueItem is one durably persisted pending recording upload.
// LocalURI references the audio resource owned by the capture subsystem;
// the queue never deletes the underlying file.
type QueueItem struct {
	ID              string    `json:"id"`
	LocalURI        string    `json:"uri"`
	ChildID         int64     `json:"child_id"`
	ChildName       string    `json:"child_name,omitempty"`
	DurationSeconds int       `json:"duration"`
	RecordedAt      time.Time `json:"recorded_at"`
	Status          Status    `json:"status"`
	Attempts        int       `json:"attempts"`
	LastError       *string   `json:"last_error"`
}

// Exhausted reports whether the item has used up its automatic retries.
func (i QueueItem) Exhausted(maxAttempts int) bool {
	return i.Attempts >= maxAttempts
}

// EnqueueRequest is the capture flow's input for queueing a recording that
// could not be uploaded immediately.
type EnqueueRequest struct {
	LocalURI        string    `json:"uri"`
	ChildID         int64     `json:"child_id"`
	ChildName       string    `json:"child_name"`
	DurationSeconds int       `json:"duration"`
	RecordedAt      time.Time `json:"recorded_at"`
}

func (r *EnqueueRequest) Validate() error {
	if r.LocalURI == "" {
		return ErrInvalidURI
	}
	if r.ChildID <= 0 {
		return ErrInvalidChild
	}
	if r.DurationSeconds < 0 {
		return ErrInvalidDuration
	}
	return nil
}

// ItemUpdate is a partial merge applied to a stored queue item.
// Nil fields are left untouched.
type ItemUpdate struct {
	Status    *Status
	Attempts  *int
	LastError *string
}

// Apply merges the update into the item in place.
func (u ItemUpdate) Apply(item *QueueItem) {
	if u.Status != nil {
		item.Status = *u.Status
	}
	if u.Attempts != nil {
		item.Attempts = *u.Attempts
	}
	if u.LastError != nil {
		item.LastError = u.LastError
	}
}
