package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
)

// ErrInvalidReport is wrapped by Put validation errors.
var ErrInvalidReport = errors.New("invalid report")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := newWithDB(db)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func newWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		address        TEXT NOT NULL,
		classification TEXT NOT NULL,
		date           TEXT NOT NULL,
		filename       TEXT,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_user_date ON reports(user_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_date ON reports(date DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_class ON reports(classification);
	`
	_, err := s.db.Exec(schema)
	return err
}

func validatePut(p PutParams) error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidReport)
	}
	if strings.TrimSpace(p.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidReport)
	}
	if !model.ValidClassifications[p.Classification] {
		return fmt.Errorf("%w: classification %q", ErrInvalidReport, p.Classification)
	}
	if _, err := time.Parse(query.DateLayout, p.Date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidReport, p.Date)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insert stores p unless a report with the same id exists. inserted is false
// for such duplicates.
func (s *SQLiteStore) insert(ctx context.Context, ex execer, p PutParams, now time.Time) (r *model.Report, inserted bool, err error) {
	if err := validatePut(p); err != nil {
		return nil, false, err
	}
	id := p.ID
	if id == "" {
		id = s.newID()
	}

	var filename *string
	if p.Filename != "" {
		filename = &p.Filename
	}

	res, err := ex.ExecContext(ctx,
		`INSERT INTO reports (id, user_id, address, classification, date, filename, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, p.UserID, strings.TrimSpace(p.Address), p.Classification, p.Date, filename,
		now.Format(time.RFC3339))
	if err != nil {
		return nil, false, fmt.Errorf("insert report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert report: %w", err)
	}

	return &model.Report{
		ID:             id,
		UserID:         p.UserID,
		Address:        strings.TrimSpace(p.Address),
		Classification: p.Classification,
		Date:           p.Date,
		Filename:       p.Filename,
		CreatedAt:      now,
	}, n > 0, nil
}

func (s *SQLiteStore) Put(ctx context.Context, p PutParams) (*model.Report, error) {
	r, inserted, err := s.insert(ctx, s.db, p, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("%w: report %s already exists", ErrInvalidReport, r.ID)
	}
	return r, nil
}

// Import stores reports in one transaction and returns how many were new.
// Reports whose id is already stored are skipped, so an export can be
// imported again.
func (s *SQLiteStore) Import(ctx context.Context, ps []PutParams) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	imported := 0
	for i, p := range ps {
		_, inserted, err := s.insert(ctx, tx, p, now)
		if err != nil {
			return 0, fmt.Errorf("report %d: %w", i, err)
		}
		if inserted {
			imported++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}

// filter builds the WHERE clause shared by List and Stats.
func filter(userID string, d query.Descriptor) (string, []any) {
	where := []string{"1 = 1"}
	var args []any

	if d.Scope != query.All {
		where = append(where, "user_id = ?")
		args = append(args, userID)
	}
	if d.Range.Start != "" && d.Range.End != "" {
		where = append(where, "date BETWEEN ? AND ?")
		args = append(args, d.Range.Start, d.Range.End)
	}
	if d.Search != "" {
		pattern := "%" + d.Search + "%"
		where = append(where, "(address LIKE ? OR date LIKE ? OR classification LIKE ? OR filename LIKE ?)")
		args = append(args, pattern, pattern, pattern, pattern)
	}
	return strings.Join(where, " AND "), args
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) (*ListResult, error) {
	page, pageSize := clampPage(p.Page, p.PageSize)
	where, args := filter(p.UserID, p.Query)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}

	order := "DESC"
	if p.Query.Sort == query.Asc {
		order = "ASC"
	}
	q := fmt.Sprintf(`
		SELECT id, user_id, address, classification, date, filename, created_at
		FROM reports
		WHERE %s
		ORDER BY date %s, id %s
		LIMIT ? OFFSET ?`, where, order, order)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResult{
		Reports:    reports,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
		Page:       page,
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (model.Report, error) {
	var r model.Report
	var filename sql.NullString
	var createdAt string

	err := row.Scan(&r.ID, &r.UserID, &r.Address, &r.Classification, &r.Date, &filename, &createdAt)
	if err != nil {
		return r, err
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if filename.Valid {
		r.Filename = filename.String
	}
	return r, nil
}
