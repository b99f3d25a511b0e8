// Package store provides the report storage interface and its SQLite
// implementation backing the reference list API.
package store

import (
	"context"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// PutParams holds parameters for storing a report.
type PutParams struct {
	ID             string // optional; generated when empty
	UserID         string
	Address        string
	Classification string
	Date           string
	Filename       string
}

// ListParams holds parameters for listing one page of reports.
type ListParams struct {
	UserID   string
	Query    query.Descriptor
	Page     int
	PageSize int
}

// ListResult is one page of reports.
type ListResult struct {
	Reports    []model.Report `json:"reports"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
	Page       int            `json:"page"`
}

// Store defines the report storage interface.
type Store interface {
	// Put stores a report and returns it with id and timestamps filled.
	Put(ctx context.Context, p PutParams) (*model.Report, error)

	// Import stores reports in one transaction, skipping ids already
	// stored, and returns how many were added.
	Import(ctx context.Context, ps []PutParams) (int, error)

	// List returns one page of reports matching the descriptor.
	List(ctx context.Context, p ListParams) (*ListResult, error)

	// Stats counts reports matching the descriptor, in total and per
	// classification.
	Stats(ctx context.Context, userID string, d query.Descriptor) (model.Stats, error)

	// ExportAll returns every report, optionally limited to one user.
	ExportAll(ctx context.Context, userID string) ([]model.Report, error)

	// Close closes the store.
	Close() error
}

// clampPage applies the list endpoint's paging defaults.
func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// totalPages is ceil(total/pageSize); zero for an empty result.
func totalPages(total, pageSize int) int {
	return (total + pageSize - 1) / pageSize
}
