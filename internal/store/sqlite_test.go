package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
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

// seed stores n reports for user on consecutive days of January 2024.
func seed(t *testing.T, s *SQLiteStore, user string, n int, class string) []model.Report {
	t.Helper()
	var out []model.Report
	for i := 1; i <= n; i++ {
		r, err := s.Put(context.Background(), PutParams{
			UserID:         user,
			Address:        fmt.Sprintf("%s street %d", user, i),
			Classification: class,
			Date:           fmt.Sprintf("2024-01-%02d", i),
		})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		out = append(out, *r)
	}
	return out
}

func TestPutAndExport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r, err := s.Put(ctx, PutParams{
		UserID: "u1", Address: " Lenina 1 ", Classification: model.ClassKitchen, Date: "2024-02-03", Filename: "act.pdf",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if r.ID == "" {
		t.Error("expected non-empty ID")
	}
	if r.Address != "Lenina 1" {
		t.Errorf("expected trimmed address, got %q", r.Address)
	}

	all, err := s.ExportAll(ctx, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(all) != 1 || all[0].ID != r.ID || all[0].Filename != "act.pdf" {
		t.Fatalf("unexpected export: %+v", all)
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("expected created_at to round-trip")
	}
}

func TestPutValidation(t *testing.T) {
	s := newTestStore(t)
	tests := []PutParams{
		{Address: "a", Classification: model.ClassEmergency, Date: "2024-01-01"},
		{UserID: "u", Classification: model.ClassEmergency, Date: "2024-01-01"},
		{UserID: "u", Address: "a", Classification: "misc", Date: "2024-01-01"},
		{UserID: "u", Address: "a", Classification: model.ClassEmergency, Date: "01.01.2024"},
	}
	for i, p := range tests {
		if _, err := s.Put(context.Background(), p); !errors.Is(err, ErrInvalidReport) {
			t.Errorf("case %d: expected ErrInvalidReport, got %v", i, err)
		}
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, "u1", 25, model.ClassMaintenance)

	res, err := s.List(ctx, ListParams{UserID: "u1", Query: query.Default(), Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 25 || res.TotalPages != 3 || res.Page != 1 || len(res.Reports) != 10 {
		t.Fatalf("unexpected page: total=%d pages=%d page=%d n=%d", res.Total, res.TotalPages, res.Page, len(res.Reports))
	}
	if res.Reports[0].Date != "2024-01-25" {
		t.Errorf("expected newest first, got %s", res.Reports[0].Date)
	}

	res, err = s.List(ctx, ListParams{UserID: "u1", Query: query.Default(), Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Reports) != 5 || res.Reports[4].Date != "2024-01-01" {
		t.Errorf("unexpected last page: %+v", res.Reports)
	}

	asc := query.Default()
	asc.Sort = query.Asc
	res, err = s.List(ctx, ListParams{UserID: "u1", Query: asc, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Reports[0].Date != "2024-01-01" {
		t.Errorf("expected oldest first, got %s", res.Reports[0].Date)
	}
}

func TestListClampsPaging(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "u1", 15, model.ClassMaintenance)

	res, err := s.List(context.Background(), ListParams{UserID: "u1", Query: query.Default(), Page: -4, PageSize: 1000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Page != 1 || len(res.Reports) != DefaultPageSize || res.TotalPages != 2 {
		t.Errorf("unexpected clamp: page=%d n=%d pages=%d", res.Page, len(res.Reports), res.TotalPages)
	}
}

func TestListEmpty(t *testing.T) {
	s := newTestStore(t)
	res, err := s.List(context.Background(), ListParams{UserID: "nobody", Query: query.Default()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 0 || res.TotalPages != 0 || res.Reports == nil {
		t.Errorf("unexpected empty result: %+v", res)
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, "u1", 5, model.ClassKitchen)
	seed(t, s, "u2", 5, model.ClassBakery)

	mine, err := s.List(ctx, ListParams{UserID: "u1", Query: query.Default()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if mine.Total != 5 {
		t.Errorf("expected 5 of mine, got %d", mine.Total)
	}

	all := query.Descriptor{Sort: query.Desc, Scope: query.All}
	res, err := s.List(ctx, ListParams{UserID: "u1", Query: all})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 10 {
		t.Errorf("expected 10 overall, got %d", res.Total)
	}

	ranged := all
	ranged.Range = query.DateRange{Start: "2024-01-02", End: "2024-01-03"}
	res, err = s.List(ctx, ListParams{UserID: "u1", Query: ranged})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 4 {
		t.Errorf("expected 4 in range, got %d", res.Total)
	}

	search := all
	search.Search = "u2 street"
	res, err = s.List(ctx, ListParams{UserID: "u1", Query: search})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 5 {
		t.Errorf("expected 5 search hits, got %d", res.Total)
	}
	for _, r := range res.Reports {
		if r.UserID != "u2" {
			t.Errorf("unexpected search hit: %+v", r)
		}
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, "u1", 3, model.ClassKitchen)
	seed(t, s, "u1", 2, model.ClassEmergency)
	seed(t, s, "u2", 4, model.ClassEmergency)

	st, err := s.Stats(ctx, "u1", query.Default())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 5 || st.PerCategory[model.ClassKitchen] != 3 || st.PerCategory[model.ClassEmergency] != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}

	all := query.Descriptor{Sort: query.Desc, Scope: query.All, Range: query.DateRange{Start: "2024-01-01", End: "2024-01-01"}}
	st, err = s.Stats(ctx, "u1", all)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.PerCategory[model.ClassEmergency] != 2 {
		t.Errorf("unexpected ranged stats: %+v", st)
	}
}

func TestImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Import(ctx, []PutParams{
		{UserID: "u1", Address: "a", Classification: model.ClassMaintenance, Date: "2024-01-01"},
		{UserID: "u1", Address: "b", Classification: "bogus", Date: "2024-01-02"},
	})
	if !errors.Is(err, ErrInvalidReport) {
		t.Fatalf("expected ErrInvalidReport, got %v", err)
	}
	all, _ := s.ExportAll(ctx, "")
	if len(all) != 0 {
		t.Fatalf("expected rollback, got %d reports", len(all))
	}

	n, err := s.Import(ctx, []PutParams{
		{ID: "fixed-id", UserID: "u1", Address: "a", Classification: model.ClassMaintenance, Date: "2024-01-01"},
		{UserID: "u2", Address: "b", Classification: model.ClassBakery, Date: "2024-01-02"},
	})
	if err != nil || n != 2 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}
	mine, _ := s.ExportAll(ctx, "u1")
	if len(mine) != 1 || mine[0].ID != "fixed-id" {
		t.Errorf("unexpected export: %+v", mine)
	}
}

func TestImportSkipsExistingIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, "u1", 3, model.ClassKitchen)

	exported, err := s.ExportAll(ctx, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var ps []PutParams
	for _, r := range exported {
		ps = append(ps, PutParams{ID: r.ID, UserID: r.UserID, Address: r.Address, Classification: r.Classification, Date: r.Date})
	}
	ps = append(ps, PutParams{ID: "new-one", UserID: "u1", Address: "fresh", Classification: model.ClassKitchen, Date: "2024-02-01"})

	n, err := s.Import(ctx, ps)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 new report, got %d", n)
	}
	all, _ := s.ExportAll(ctx, "")
	if len(all) != 4 {
		t.Errorf("expected 4 reports, got %d", len(all))
	}

	_, err = s.Put(ctx, PutParams{ID: "new-one", UserID: "u1", Address: "again", Classification: model.ClassKitchen, Date: "2024-02-02"})
	if !errors.Is(err, ErrInvalidReport) {
		t.Errorf("expected duplicate put to fail with ErrInvalidReport, got %v", err)
	}
}
