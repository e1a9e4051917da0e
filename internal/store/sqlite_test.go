package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pmll/casefile/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(id, content, source string) model.Event {
	return model.Event{
		ID:         id,
		Timestamp:  DefaultEpoch,
		Content:    content,
		Source:     source,
		Confidence: 0.9,
		Kind:       model.KindObservation,
	}
}

func TestAppendAndAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := []model.Event{
		testEvent("01", "first", "News Report"),
		testEvent("02", "second", "Police Report"),
	}
	in[1].Timestamp = DefaultEpoch.Add(1500 * time.Millisecond)
	if err := s.Append(ctx, in); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("event %d: expected %+v, got %+v", i, in[i], got[i])
		}
	}

	n, _ := s.Len(ctx)
	if n != 2 {
		t.Errorf("expected len 2, got %d", n)
	}
}

func TestAppendIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Append(ctx, []model.Event{testEvent("dup", "a", "x")})

	err := s.Append(ctx, []model.Event{testEvent("new", "b", "x"), testEvent("dup", "c", "x")})
	if err == nil {
		t.Fatal("expected error on duplicate id")
	}

	n, _ := s.Len(ctx)
	if n != 1 {
		t.Errorf("expected failed batch to be rolled back, got %d events", n)
	}
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := []byte("0123456789abcdef0123456789abcdef")
	if err := s.PutKey(ctx, "r1", key); err != nil {
		t.Fatalf("put key: %v", err)
	}

	got, err := s.GetKey(ctx, "r1")
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if string(got) != string(key) {
		t.Errorf("key mismatch")
	}

	if n, _ := s.PendingKeys(ctx); n != 1 {
		t.Errorf("expected 1 pending key, got %d", n)
	}

	s.DeleteKey(ctx, "r1")
	_, err = s.GetKey(ctx, "r1")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestArchiveStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Append(ctx, []model.Event{
		testEvent("1", "a", "Police Report"),
		testEvent("2", "b", "Police Report"),
		testEvent("3", "c", "News Report"),
	})
	s.PutKey(ctx, "r1", []byte("k"))

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalEvents != 3 || st.PendingKeys != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(st.Sources) != 2 || st.Sources[0].Source != "Police Report" || st.Sources[0].Count != 2 {
		t.Errorf("unexpected sources %+v", st.Sources)
	}
	if st.DBPath != s.Path() {
		t.Errorf("expected db path %s, got %s", s.Path(), st.DBPath)
	}
}

func TestArchiveStatsReportsQueryErrors(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := s.Stats(context.Background()); err == nil {
		t.Error("expected error from a closed database")
	}
}

func TestMemoryWithSQLiteArchive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := NewMemory(WithCapacity(2), WithArchive(s), WithKeyStore(s))

	for _, c := range []string{"a", "b", "c"} {
		if _, err := m.LogEvent(ctx, c, "src", 1); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	if len(m.ShortTerm()) != 0 {
		t.Errorf("expected short-term to be archived")
	}
	long, err := m.LongTerm(ctx)
	if err != nil {
		t.Fatalf("long-term: %v", err)
	}
	if len(long) != 3 || long[0].Content != "a" || long[2].Content != "c" {
		t.Errorf("unexpected archive contents %+v", long)
	}

	m.LogKey(ctx, "r1", []byte("secret"))
	key, err := m.Key(ctx, "r1")
	if err != nil || string(key) != "secret" {
		t.Errorf("expected retained key, got %q (%v)", key, err)
	}
}
