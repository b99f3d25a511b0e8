package store

import (
	"context"
	"strings"

	"github.com/fieldcrm/listsync/internal/model"
)

// ExportAll returns all reports, optionally filtered by owner, newest first.
func (s *SQLiteStore) ExportAll(ctx context.Context, userID string) ([]model.Report, error) {
	where := []string{"1 = 1"}
	args := []any{}

	if userID != "" {
		where = append(where, "user_id = ?")
		args = append(args, userID)
	}

	q := `SELECT id, user_id, address, classification, date, filename, created_at
	      FROM reports WHERE ` + strings.Join(where, " AND ") + ` ORDER BY date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
