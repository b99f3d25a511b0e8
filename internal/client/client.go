// Package client implements the page and stats fetchers against the CRM
// list API over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fieldcrm/listsync/internal/loader"
	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
	"github.com/fieldcrm/listsync/internal/stats"
)

// UserHeader carries the caller's user id to the reference server.
const UserHeader = "X-User-ID"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

// Client talks to the list API.
type Client struct {
	baseURL string
	http    *http.Client
	bearer  string
	userID  string
	log     *log.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client, e.g. to set a timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBearer sets a bearer token sent on every request.
func WithBearer(token string) Option {
	return func(c *Client) { c.bearer = token }
}

// WithUserID sets the user id header.
func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

// WithLogger sets the request logger.
func WithLogger(l *log.Entry) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.WithField("component", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type endpoint struct {
	path      string
	itemsKey  string
	sizeParam string
	sortParam string
}

var (
	reportsEndpoint = endpoint{path: "/api/reports", itemsKey: "reports", sizeParam: "pageSize", sortParam: "order"}
	ticketsEndpoint = endpoint{path: "/api/tickets", itemsKey: "tickets", sizeParam: "limit", sortParam: "sort"}
)

// Reports returns a page fetcher for the reports list.
func (c *Client) Reports() loader.Fetcher[model.Report] {
	return loader.FetcherFunc[model.Report](func(ctx context.Context, d query.Descriptor, page, pageSize int) (loader.Page[model.Report], error) {
		return fetchPage[model.Report](ctx, c, reportsEndpoint, d, page, pageSize)
	})
}

// Tickets returns a page fetcher for the tickets list. The tickets endpoint
// reports total and limit only; total pages are derived from them.
func (c *Client) Tickets() loader.Fetcher[model.Ticket] {
	return loader.FetcherFunc[model.Ticket](func(ctx context.Context, d query.Descriptor, page, pageSize int) (loader.Page[model.Ticket], error) {
		return fetchPage[model.Ticket](ctx, c, ticketsEndpoint, d, page, pageSize)
	})
}

// Stats returns a stats fetcher for the reports list.
func (c *Client) Stats() stats.Fetcher {
	return stats.FetcherFunc(func(ctx context.Context, d query.Descriptor) (model.Stats, error) {
		body, err := c.get(ctx, "/api/reports/stats", d.Values())
		if err != nil {
			return model.Stats{}, err
		}
		var st model.Stats
		if err := json.Unmarshal(body, &st); err != nil {
			return model.Stats{}, fmt.Errorf("decode stats: %w", err)
		}
		if st.PerCategory == nil {
			st.PerCategory = map[string]int{}
		}
		return st, nil
	})
}

func fetchPage[R any](ctx context.Context, c *Client, ep endpoint, d query.Descriptor, page, pageSize int) (loader.Page[R], error) {
	v := d.Values()
	if ep.sortParam != "order" {
		if order := v.Get("order"); order != "" {
			v.Set(ep.sortParam, order)
			v.Del("order")
		}
	}
	v.Set("page", strconv.Itoa(page))
	v.Set(ep.sizeParam, strconv.Itoa(pageSize))

	body, err := c.get(ctx, ep.path, v)
	if err != nil {
		return loader.Page[R]{}, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return loader.Page[R]{}, fmt.Errorf("%w: decode %s: %v", loader.ErrMalformedPage, ep.path, err)
	}
	return decodePage[R](raw, ep.itemsKey, page)
}

// decodePage reads {<items>, total, totalPages, page, limit}. When
// totalPages is absent it is derived from total and limit; when neither is
// available the page is malformed.
func decodePage[R any](raw map[string]json.RawMessage, itemsKey string, requested int) (loader.Page[R], error) {
	var p loader.Page[R]
	if b, ok := raw[itemsKey]; ok && string(b) != "null" {
		if err := json.Unmarshal(b, &p.Items); err != nil {
			return p, fmt.Errorf("%w: decode %s: %v", loader.ErrMalformedPage, itemsKey, err)
		}
	}

	var total, totalPages, page, limit *int
	for key, dst := range map[string]**int{"total": &total, "totalPages": &totalPages, "page": &page, "limit": &limit} {
		b, ok := raw[key]
		if !ok || string(b) == "null" {
			continue
		}
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return p, fmt.Errorf("%w: decode %s: %v", loader.ErrMalformedPage, key, err)
		}
		*dst = &n
	}

	switch {
	case totalPages != nil:
		p.TotalPages = *totalPages
	case total != nil && limit != nil && *limit > 0:
		p.TotalPages = (*total + *limit - 1) / *limit
	default:
		return p, fmt.Errorf("%w: missing totalPages", loader.ErrMalformedPage)
	}

	p.PageNumber = requested
	if page != nil {
		p.PageNumber = *page
	}
	return p, nil
}

// maxBody bounds how much of a response is read.
const maxBody = 16 << 20

func (c *Client) get(ctx context.Context, path string, v url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.userID != "" {
		req.Header.Set(UserHeader, c.userID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.log.WithFields(log.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("list api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		se.Message = payload.Error
	} else {
		se.Message = strings.TrimSpace(string(body))
	}
	return se
}
