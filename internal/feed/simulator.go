// Package feed produces synthetic real-time updates and fetches external
// bulletins for ingestion into case memory.
package feed

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/pmll/casefile/internal/model"
)

// Simulator generates timestamped synthetic updates at a fixed interval.
// IDs and timestamps continue across calls to Stream.
type Simulator struct {
	mu       sync.Mutex
	interval time.Duration
	lastID   int
	current  time.Time
}

// NewSimulator returns a simulator whose first update is stamped
// start+interval.
func NewSimulator(interval time.Duration, start time.Time) *Simulator {
	return &Simulator{interval: interval, current: start.UTC()}
}

// Next returns the next update without waiting.
func (s *Simulator) Next() model.Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	s.current = s.current.Add(s.interval)
	return model.Update{
		ID:        s.lastID,
		Timestamp: s.current,
		Data:      fmt.Sprintf("Real-time update %d", s.lastID),
	}
}

// Stream lazily yields count updates, waiting interval of wall time after
// each one. It stops early when ctx is done or the consumer stops.
func (s *Simulator) Stream(ctx context.Context, count int) iter.Seq[model.Update] {
	return func(yield func(model.Update) bool) {
		for i := 0; i < count; i++ {
			if ctx.Err() != nil {
				return
			}
			if !yield(s.Next()) {
				return
			}
			if i == count-1 {
				return
			}
			t := time.NewTimer(s.interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}
