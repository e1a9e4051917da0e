package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pmll/casefile/internal/model"
)

// SearchParams holds parameters for searching the archive.
type SearchParams struct {
	Query  string
	Source string
	Kind   string
	Limit  int
}

// Search finds archived events whose content matches the query substring,
// newest archived first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Event, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"content LIKE ?"}
	args := []interface{}{"%" + p.Query + "%"}

	if p.Source != "" {
		where = append(where, "source = ?")
		args = append(args, p.Source)
	}
	if p.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, p.Kind)
	}

	query := fmt.Sprintf(`
		SELECT id, ts, content, source, confidence, kind
		FROM archived_events
		WHERE %s
		ORDER BY seq DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}
