// Package store provides the two-tier event memory and its archive backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pmll/casefile/internal/model"
)

// ErrKeyNotFound is returned when no key is retained for a report.
var ErrKeyNotFound = errors.New("key not found")

// Criteria selects events by exact field equality. Zero fields are ignored.
type Criteria struct {
	ID         string
	Content    string
	Source     string
	Kind       string
	Confidence *float64
	Timestamp  *time.Time
}

// Match reports whether e satisfies every set criterion.
func (c Criteria) Match(e model.Event) bool {
	if c.ID != "" && e.ID != c.ID {
		return false
	}
	if c.Content != "" && e.Content != c.Content {
		return false
	}
	if c.Source != "" && e.Source != c.Source {
		return false
	}
	if c.Kind != "" && e.Kind != c.Kind {
		return false
	}
	if c.Confidence != nil && e.Confidence != *c.Confidence {
		return false
	}
	if c.Timestamp != nil && !e.Timestamp.Equal(*c.Timestamp) {
		return false
	}
	return true
}

// Archive is the unbounded long-term tier.
type Archive interface {
	// Append stores events in order. It must be all-or-nothing.
	Append(ctx context.Context, events []model.Event) error

	// Len returns the number of archived events.
	Len(ctx context.Context) (int, error)

	// All returns every archived event in archival order.
	All(ctx context.Context) ([]model.Event, error)
}

// KeyStore retains report keys until they are consumed.
type KeyStore interface {
	PutKey(ctx context.Context, reportID string, key []byte) error

	// GetKey returns ErrKeyNotFound when no key is retained for reportID.
	GetKey(ctx context.Context, reportID string) ([]byte, error)

	DeleteKey(ctx context.Context, reportID string) error

	// PendingKeys returns how many keys are retained.
	PendingKeys(ctx context.Context) (int, error)
}
