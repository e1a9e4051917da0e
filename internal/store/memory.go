package store

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pmll/casefile/internal/model"
)

const (
	// DefaultCapacity is the short-term tier size that triggers archival.
	DefaultCapacity = 100

	keySource = "keystore"
)

// DefaultEpoch is the initial value of the logical clock.
var DefaultEpoch = time.Date(2025, 1, 2, 1, 3, 0, 0, time.UTC)

// Memory is the two-tier event store. Short-term holds at most capacity
// events; when an insert pushes it over, the whole tier moves to the archive.
type Memory struct {
	mu        sync.Mutex
	shortTerm []model.Event
	capacity  int
	clock     time.Time
	archive   Archive
	keys      KeyStore
	entropy   *rand.Rand
	logger    *zap.Logger
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithCapacity sets the short-term capacity. Values below 1 are ignored.
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithEpoch sets the starting value of the logical clock.
func WithEpoch(t time.Time) MemoryOption {
	return func(m *Memory) { m.clock = t.UTC() }
}

// WithArchive sets the long-term tier backend.
func WithArchive(a Archive) MemoryOption {
	return func(m *Memory) { m.archive = a }
}

// WithKeyStore sets where report keys are retained.
func WithKeyStore(k KeyStore) MemoryOption {
	return func(m *Memory) { m.keys = k }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) MemoryOption {
	return func(m *Memory) { m.logger = l }
}

// NewMemory returns an empty store backed by in-process tiers unless
// overridden by options.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		capacity: DefaultCapacity,
		clock:    DefaultEpoch,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.archive == nil {
		m.archive = NewMemArchive()
	}
	if m.keys == nil {
		m.keys = NewMemKeyStore()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

func (m *Memory) newID(ts time.Time) string {
	return ulid.MustNew(ulid.Timestamp(ts), m.entropy).String()
}

// LogEvent appends an observation stamped with the logical clock.
func (m *Memory) LogEvent(ctx context.Context, content, source string, confidence float64) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(ctx, content, source, confidence, model.KindObservation)
}

// LogKey retains key for reportID and records a key marker event through
// the same append and archival path as LogEvent.
func (m *Memory) LogKey(ctx context.Context, reportID string, key []byte) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.keys.PutKey(ctx, reportID, key); err != nil {
		return model.Event{}, fmt.Errorf("retain key: %w", err)
	}
	e, err := m.appendLocked(ctx, reportID, keySource, 1.0, model.KindKey)
	if err != nil {
		if derr := m.keys.DeleteKey(ctx, reportID); derr != nil {
			m.logger.Warn("roll back report key", zap.String("report_id", reportID), zap.Error(derr))
		}
		return model.Event{}, err
	}
	m.logger.Info("report key retained", zap.String("report_id", reportID))
	return e, nil
}

func (m *Memory) appendLocked(ctx context.Context, content, source string, confidence float64, kind string) (model.Event, error) {
	e := model.Event{
		ID:         m.newID(m.clock),
		Timestamp:  m.clock,
		Content:    content,
		Source:     source,
		Confidence: confidence,
		Kind:       kind,
	}
	m.shortTerm = append(m.shortTerm, e)
	if len(m.shortTerm) <= m.capacity {
		return e, nil
	}

	batch := m.shortTerm
	if err := m.archive.Append(ctx, batch); err != nil {
		m.shortTerm = batch[:len(batch)-1]
		return model.Event{}, fmt.Errorf("archive short-term: %w", err)
	}
	m.shortTerm = nil
	m.logger.Debug("short-term archived", zap.Int("events", len(batch)))
	return e, nil
}

// Retrieve returns short-term events matching c in insertion order.
// The archive is not searched.
func (m *Memory) Retrieve(c Criteria) []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Event
	for _, e := range m.shortTerm {
		if c.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Key returns the retained key for reportID.
func (m *Memory) Key(ctx context.Context, reportID string) ([]byte, error) {
	return m.keys.GetKey(ctx, reportID)
}

// ConsumeKey drops the retained key for reportID.
func (m *Memory) ConsumeKey(ctx context.Context, reportID string) error {
	return m.keys.DeleteKey(ctx, reportID)
}

// AdvanceClock moves the logical clock forward by d.
func (m *Memory) AdvanceClock(d time.Duration) {
	m.mu.Lock()
	m.clock = m.clock.Add(d)
	m.mu.Unlock()
}

// Now returns the logical clock.
func (m *Memory) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

// Capacity returns the short-term capacity.
func (m *Memory) Capacity() int {
	return m.capacity
}

// ShortTerm returns a copy of the short-term tier.
func (m *Memory) ShortTerm() []model.Event {
	return m.Head(-1)
}

// Head returns the first n short-term events, or all of them when n < 0.
func (m *Memory) Head(n int) []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n < 0 || n > len(m.shortTerm) {
		n = len(m.shortTerm)
	}
	out := make([]model.Event, n)
	copy(out, m.shortTerm[:n])
	return out
}

// LongTerm returns every archived event.
func (m *Memory) LongTerm(ctx context.Context) ([]model.Event, error) {
	return m.archive.All(ctx)
}

// LongTermLen returns the archive size.
func (m *Memory) LongTermLen(ctx context.Context) (int, error) {
	return m.archive.Len(ctx)
}
