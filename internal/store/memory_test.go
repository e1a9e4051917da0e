package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/pmll/casefile/internal/model"
)

func TestLogEventUsesLogicalClock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	e1, _ := m.LogEvent(ctx, "Truck explosion", "News Report", 0.9)
	m.AdvanceClock(6 * time.Minute)
	e2, _ := m.LogEvent(ctx, "Driver died", "Police Report", 0.95)

	if !e1.Timestamp.Equal(DefaultEpoch) {
		t.Errorf("expected epoch timestamp, got %s", e1.Timestamp)
	}
	if want := DefaultEpoch.Add(6 * time.Minute); !e2.Timestamp.Equal(want) {
		t.Errorf("expected %s, got %s", want, e2.Timestamp)
	}
	if e1.ID == "" || e1.ID == e2.ID {
		t.Errorf("expected distinct ids, got %q and %q", e1.ID, e2.ID)
	}
	if e1.Kind != model.KindObservation {
		t.Errorf("expected observation kind, got %q", e1.Kind)
	}
}

func TestArchivalIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(3))

	for i := 0; i < 3; i++ {
		m.LogEvent(ctx, "e", "s", 1)
	}
	if got := len(m.ShortTerm()); got != 3 {
		t.Fatalf("expected 3 short-term events at capacity, got %d", got)
	}

	m.LogEvent(ctx, "overflow", "s", 1)
	if got := len(m.ShortTerm()); got != 0 {
		t.Errorf("expected short-term cleared, got %d", got)
	}
	n, _ := m.LongTermLen(ctx)
	if n != 4 {
		t.Errorf("expected 4 archived events, got %d", n)
	}
}

func TestRetrieveShortTermOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(2))

	m.LogEvent(ctx, "old", "Police Report", 1)
	m.LogEvent(ctx, "old", "Police Report", 1)
	m.LogEvent(ctx, "old", "Police Report", 1) // triggers archival
	m.LogEvent(ctx, "new", "Police Report", 1)

	got := m.Retrieve(Criteria{Source: "Police Report"})
	if len(got) != 1 || got[0].Content != "new" {
		t.Errorf("expected only the short-term event, got %+v", got)
	}
}

func TestRetrieveMatchesAllCriteria(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.LogEvent(ctx, "a", "News Report", 0.9)
	m.LogEvent(ctx, "b", "News Report", 0.5)
	m.LogEvent(ctx, "c", "Forensic Analysis", 0.9)

	conf := 0.9
	got := m.Retrieve(Criteria{Source: "News Report", Confidence: &conf})
	if len(got) != 1 || got[0].Content != "a" {
		t.Errorf("expected [a], got %+v", got)
	}

	if got := m.Retrieve(Criteria{}); len(got) != 3 {
		t.Errorf("expected empty criteria to match everything, got %d", len(got))
	}
	if got := m.Retrieve(Criteria{Source: "missing"}); len(got) != 0 {
		t.Errorf("expected no match, got %d", len(got))
	}
}

func TestLogKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	e, err := m.LogKey(ctx, "report-1", []byte("k1"))
	if err != nil {
		t.Fatalf("log key: %v", err)
	}
	if e.Kind != model.KindKey || e.Content != "report-1" {
		t.Errorf("unexpected key marker %+v", e)
	}

	key, err := m.Key(ctx, "report-1")
	if err != nil || string(key) != "k1" {
		t.Fatalf("expected k1, got %q (%v)", key, err)
	}

	m.ConsumeKey(ctx, "report-1")
	if _, err := m.Key(ctx, "report-1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after consume, got %v", err)
	}
}

func TestKeySurvivesArchival(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(1))

	m.LogKey(ctx, "report-1", []byte("k1"))
	m.LogEvent(ctx, "pushes key marker out", "s", 1)

	if len(m.Retrieve(Criteria{Kind: model.KindKey})) != 0 {
		t.Fatal("expected key marker to be archived")
	}
	if _, err := m.Key(ctx, "report-1"); err != nil {
		t.Errorf("expected key to survive archival: %v", err)
	}
}

type failingArchive struct{ MemArchive }

func (f *failingArchive) Append(context.Context, []model.Event) error {
	return errors.New("disk full")
}

func TestArchiveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(1), WithArchive(&failingArchive{}))

	m.LogEvent(ctx, "kept", "s", 1)
	if _, err := m.LogEvent(ctx, "rejected", "s", 1); err == nil {
		t.Fatal("expected archive error")
	}

	st := m.ShortTerm()
	if len(st) != 1 || st[0].Content != "kept" {
		t.Errorf("expected rollback to leave [kept], got %+v", st)
	}
}

type stickyKeyStore struct{ *MemKeyStore }

func (s stickyKeyStore) DeleteKey(context.Context, string) error {
	return errors.New("read-only")
}

func TestLogKeyRollbackLogsDeleteFailure(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	keys := stickyKeyStore{NewMemKeyStore()}
	m := NewMemory(WithCapacity(1), WithArchive(&failingArchive{}), WithKeyStore(keys), WithLogger(zap.New(core)))

	m.LogEvent(ctx, "kept", "s", 1)
	if _, err := m.LogKey(ctx, "r1", []byte("k")); err == nil {
		t.Fatal("expected archive error")
	}

	warned := logs.FilterMessage("roll back report key").All()
	if len(warned) != 1 {
		t.Fatalf("expected one rollback warning, got %d", len(warned))
	}
	if got := warned[0].ContextMap()["report_id"]; got != "r1" {
		t.Errorf("expected report_id r1, got %v", got)
	}
}

func TestHead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, c := range []string{"a", "b", "c", "d"} {
		m.LogEvent(ctx, c, "s", 1)
	}

	head := m.Head(3)
	if len(head) != 3 || head[0].Content != "a" || head[2].Content != "c" {
		t.Errorf("unexpected head %+v", head)
	}
	if len(m.Head(10)) != 4 {
		t.Error("expected head to clamp to short-term length")
	}
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithCapacity(2))

	m.LogEvent(ctx, "a", "x", 1)
	m.LogEvent(ctx, "b", "x", 1)
	m.LogEvent(ctx, "c", "x", 1)
	m.LogEvent(ctx, "d", "y", 1)
	m.LogKey(ctx, "r", []byte("k"))

	st, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ShortTerm != 2 || st.LongTerm != 3 || st.PendingKeys != 1 || st.Capacity != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(st.Sources) != 2 || st.Sources[0].Source != "y" {
		t.Errorf("expected sources in first-seen order, got %+v", st.Sources)
	}
}

func TestArchivalInvariantProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		capacity := rapid.IntRange(1, 10).Draw(rt, "capacity")
		m := NewMemory(WithCapacity(capacity))

		ops := rapid.SliceOfN(rapid.Bool(), 0, 60).Draw(rt, "ops")
		for i, isKey := range ops {
			var err error
			if isKey {
				_, err = m.LogKey(ctx, "r"+string(rune('a'+i%26)), []byte{byte(i)})
			} else {
				_, err = m.LogEvent(ctx, "event", "src", 0.5)
			}
			if err != nil {
				rt.Fatalf("op %d: %v", i, err)
			}

			short := len(m.ShortTerm())
			if short > capacity {
				rt.Fatalf("short-term %d exceeds capacity %d", short, capacity)
			}
			long, _ := m.LongTermLen(ctx)
			if short+long != i+1 {
				rt.Fatalf("after %d calls, tiers hold %d events", i+1, short+long)
			}
		}
	})
}

func TestRetrieveBySourceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m := NewMemory(WithCapacity(rapid.IntRange(1, 8).Draw(rt, "capacity")))
		sources := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "b", "c"}), 1, 30).Draw(rt, "sources")

		for _, src := range sources {
			m.LogEvent(ctx, "x", src, 1)
		}
		want := rapid.SampledFrom([]string{"a", "b", "c"}).Draw(rt, "query")

		var expected []model.Event
		for _, e := range m.ShortTerm() {
			if e.Source == want {
				expected = append(expected, e)
			}
		}
		got := m.Retrieve(Criteria{Source: want})
		if len(got) != len(expected) {
			rt.Fatalf("expected %d events, got %d", len(expected), len(got))
		}
		for i := range got {
			if got[i].ID != expected[i].ID {
				rt.Fatalf("order mismatch at %d", i)
			}
		}
	})
}
