package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"growi_syncer/internal/domain"
	"growi_syncer/internal/source/growi"
)

type PageFetcher interface {
	FetchPage(ctx context.Context, req growi.PageRequest) (*growi.Page, error)
}

type PostStore interface {
	UpsertBatch(ctx context.Context, posts []domain.Post) (int, error)
}

type MetricsStore interface {
	UpsertBatch(ctx context.Context, metrics []domain.PostMetrics) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PageWriter persists the rows of one page atomically.
type PageWriter interface {
	Upsert(ctx context.Context, rows []domain.CanonicalRow) (domain.UpsertResult, error)
}

type Publisher interface {
	PublishSummary(ctx context.Context, summary *domain.SyncSummary) error
}
