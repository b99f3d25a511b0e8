package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/fieldcrm/listsync/internal/loader"
	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", opts...)
}

func TestReportsFetcherSendsDescriptor(t *testing.T) {
	var got url.Values
	var header http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/reports" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		got = r.URL.Query()
		header = r.Header
		w.Write([]byte(`{"reports":[{"id":"a"},{"id":"b"}],"total":14,"totalPages":2,"page":1}`))
	}, WithUserID("u1"), WithBearer("tok"))

	d := query.Descriptor{Search: "oven", Sort: query.Asc, Scope: query.All, Range: query.DateRange{Start: "2024-01-01", End: "2024-01-31"}}
	page, err := c.Reports().FetchPage(context.Background(), d, 1, 12)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(page.Items) != 2 || page.Items[1].ID != "b" || page.TotalPages != 2 || page.PageNumber != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	want := map[string]string{
		"search": "oven", "order": "asc", "onlyMine": "false",
		"startDate": "2024-01-01", "endDate": "2024-01-31", "page": "1", "pageSize": "12",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("param %s: expected %q, got %q", k, v, got.Get(k))
		}
	}
	if header.Get(UserHeader) != "u1" || header.Get("Authorization") != "Bearer tok" {
		t.Errorf("unexpected headers: %v", header)
	}
}

func TestTicketsFetcherDerivesTotalPages(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"tickets":[{"id":7,"title":"Leak"}],"total":41,"page":3,"limit":20}`))
	})

	page, err := c.Tickets().FetchPage(context.Background(), query.Default(), 3, 20)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.TotalPages != 3 || page.PageNumber != 3 || page.Items[0].ID != 7 {
		t.Errorf("unexpected page: %+v", page)
	}
	if got.Get("sort") != "desc" || got.Get("order") != "" || got.Get("limit") != "20" {
		t.Errorf("unexpected params: %v", got)
	}
}

func TestMissingTotalPagesIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reports":[{"id":"a"}],"page":1}`))
	})
	_, err := c.Reports().FetchPage(context.Background(), query.Default(), 1, 12)
	if !errors.Is(err, loader.ErrMalformedPage) {
		t.Fatalf("expected ErrMalformedPage, got %v", err)
	}
}

func TestNonJSONBodyIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	})
	_, err := c.Reports().FetchPage(context.Background(), query.Default(), 1, 12)
	if !errors.Is(err, loader.ErrMalformedPage) {
		t.Fatalf("expected ErrMalformedPage, got %v", err)
	}
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream unavailable"}`))
	})
	_, err := c.Reports().FetchPage(context.Background(), query.Default(), 1, 12)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusBadGateway || se.Message != "upstream unavailable" {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestStatsFetcher(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/reports/stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("search") != "x" {
			t.Errorf("expected search param, got %v", r.URL.Query())
		}
		w.Write([]byte(`{"total":4,"perCategoryCounts":{"АВ":3,"ТО":1}}`))
	})
	st, err := c.Stats().FetchStats(context.Background(), query.Descriptor{Search: "x", Sort: query.Desc, Scope: query.Mine})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 4 || st.PerCategory["АВ"] != 3 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestLoaderRecoversAfterServerError(t *testing.T) {
	fail := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" && fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(`{"reports":[{"id":"a"},{"id":"b"}],"totalPages":2,"page":1}`))
		case "2":
			w.Write([]byte(`{"reports":[{"id":"b"},{"id":"c"}],"totalPages":2,"page":2}`))
		}
	})

	var reported int
	l := loader.New[string, model.Report](c.Reports(), loader.WithErrorHandler(func(error) { reported++ }))
	ctx := context.Background()
	if err := l.Reset(ctx, query.Default()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.LoadMore(ctx); err == nil {
		t.Fatal("expected error on page 2")
	}
	if l.Len() != 2 || !l.HasMore() || reported != 1 {
		t.Fatalf("unexpected state after failure: len=%d more=%v reported=%d", l.Len(), l.HasMore(), reported)
	}

	fail = false
	if err := l.LoadMore(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	items := l.Items()
	if len(items) != 3 || items[2].ID != "c" || l.HasMore() {
		t.Errorf("unexpected items after retry: %+v", items)
	}
}
