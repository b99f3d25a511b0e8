package client

import (
	"context"

	"github.com/fieldcrm/listsync/internal/loader"
	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
	"github.com/fieldcrm/listsync/internal/stats"
	"github.com/fieldcrm/listsync/internal/store"
)

// reportSource is the read side of store.Store.
type reportSource interface {
	List(ctx context.Context, p store.ListParams) (*store.ListResult, error)
	Stats(ctx context.Context, userID string, d query.Descriptor) (model.Stats, error)
}

// Local serves the same fetchers as Client directly from a report store,
// without going through HTTP.
type Local struct {
	src    reportSource
	userID string
}

// NewLocal creates in-process fetchers reading as userID.
func NewLocal(src reportSource, userID string) *Local {
	return &Local{src: src, userID: userID}
}

func (l *Local) Reports() loader.Fetcher[model.Report] {
	return loader.FetcherFunc[model.Report](func(ctx context.Context, d query.Descriptor, page, pageSize int) (loader.Page[model.Report], error) {
		res, err := l.src.List(ctx, store.ListParams{UserID: l.userID, Query: d, Page: page, PageSize: pageSize})
		if err != nil {
			return loader.Page[model.Report]{}, err
		}
		return loader.Page[model.Report]{Items: res.Reports, PageNumber: res.Page, TotalPages: res.TotalPages}, nil
	})
}

func (l *Local) Stats() stats.Fetcher {
	return stats.FetcherFunc(func(ctx context.Context, d query.Descriptor) (model.Stats, error) {
		return l.src.Stats(ctx, l.userID, d)
	})
}
