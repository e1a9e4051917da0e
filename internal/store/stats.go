package store

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Stats holds tier statistics for a Memory.
type Stats struct {
	Capacity    int           `json:"capacity"`
	ShortTerm   int           `json:"short_term"`
	LongTerm    int           `json:"long_term"`
	PendingKeys int           `json:"pending_keys"`
	Clock       time.Time     `json:"clock"`
	Sources     []SourceStats `json:"sources"`
}

// SourceStats holds per-source short-term counts.
type SourceStats struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Stats returns tier statistics.
func (m *Memory) Stats(ctx context.Context) (*Stats, error) {
	m.mu.Lock()
	st := &Stats{
		Capacity:  m.capacity,
		ShortTerm: len(m.shortTerm),
		Clock:     m.clock,
	}
	idx := map[string]int{}
	for _, e := range m.shortTerm {
		i, ok := idx[e.Source]
		if !ok {
			i = len(st.Sources)
			idx[e.Source] = i
			st.Sources = append(st.Sources, SourceStats{Source: e.Source})
		}
		st.Sources[i].Count++
	}
	m.mu.Unlock()

	var err error
	if st.LongTerm, err = m.archive.Len(ctx); err != nil {
		return st, err
	}
	if st.PendingKeys, err = m.keys.PendingKeys(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// ArchiveStats holds statistics for a SQLite archive file.
type ArchiveStats struct {
	DBPath      string        `json:"db_path"`
	DBSizeBytes int64         `json:"db_size_bytes"`
	TotalEvents int           `json:"total_events"`
	PendingKeys int           `json:"pending_keys"`
	Sources     []SourceStats `json:"sources"`
}

// Stats returns archive statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*ArchiveStats, error) {
	st := &ArchiveStats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_events`).Scan(&st.TotalEvents); err != nil {
		return st, fmt.Errorf("count events: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_keys`).Scan(&st.PendingKeys); err != nil {
		return st, fmt.Errorf("count keys: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*) AS cnt
		FROM archived_events
		GROUP BY source ORDER BY cnt DESC, source`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var src SourceStats
		if err := rows.Scan(&src.Source, &src.Count); err != nil {
			return st, fmt.Errorf("scan source stats: %w", err)
		}
		st.Sources = append(st.Sources, src)
	}

	return st, rows.Err()
}
