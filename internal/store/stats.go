package store

import (
	"context"
	"fmt"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
)

// Stats counts reports matching the descriptor, in total and per
// classification. Sort order is irrelevant to the counts.
func (s *SQLiteStore) Stats(ctx context.Context, userID string, d query.Descriptor) (model.Stats, error) {
	where, args := filter(userID, d)
	st := model.Stats{PerCategory: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT classification, COUNT(*) AS cnt
		FROM reports WHERE `+where+`
		GROUP BY classification ORDER BY cnt DESC`, args...)
	if err != nil {
		return st, fmt.Errorf("count reports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return st, err
		}
		st.PerCategory[class] = n
		st.Total += n
	}
	return st, rows.Err()
}
