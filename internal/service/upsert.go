package service

import (
	"context"
	"time"

	"growi_syncer/internal/domain"
)

const upsertOperation = "upsert growi page"

// UpsertEngine writes the posts and metrics of one page in a single
// transaction.
type UpsertEngine struct {
	posts     PostStore
	metrics   MetricsStore
	txManager TransactionManager
	now       func() time.Time
}

func NewUpsertEngine(posts PostStore, metrics MetricsStore, txManager TransactionManager) *UpsertEngine {
	return &UpsertEngine{
		posts:     posts,
		metrics:   metrics,
		txManager: txManager,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upsert stores rows keyed by post id. Posts are written before their
// metrics; a failure in either rolls back both and is returned as a
// *domain.QueryError.
func (e *UpsertEngine) Upsert(ctx context.Context, rows []domain.CanonicalRow) (domain.UpsertResult, error) {
	if len(rows) == 0 {
		return domain.UpsertResult{}, nil
	}

	rows = dedupeRows(rows)
	seenAt := e.now()

	posts := make([]domain.Post, len(rows))
	metrics := make([]domain.PostMetrics, len(rows))
	for i := range rows {
		posts[i] = toPost(&rows[i], seenAt)
		metrics[i] = toMetrics(&rows[i], seenAt)
	}

	var inserted int
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		n, err := e.posts.UpsertBatch(txCtx, posts)
		if err != nil {
			return err
		}
		inserted = n

		return e.metrics.UpsertBatch(txCtx, metrics)
	})
	if err != nil {
		return domain.UpsertResult{}, &domain.QueryError{Operation: upsertOperation, Err: err}
	}

	return domain.UpsertResult{RowsProcessed: len(rows), Inserted: inserted}, nil
}

// dedupeRows keeps one row per post id. The last occurrence wins and takes
// the position of the first.
func dedupeRows(rows []domain.CanonicalRow) []domain.CanonicalRow {
	index := make(map[int64]int, len(rows))
	out := make([]domain.CanonicalRow, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.PostID]; ok {
			out[i] = r
			continue
		}
		index[r.PostID] = len(out)
		out = append(out, r)
	}
	return out
}

// toPost sets both seen timestamps; the store keeps first_seen_at of an
// existing post.
func toPost(r *domain.CanonicalRow, seenAt time.Time) domain.Post {
	return domain.Post{
		PostID:                   r.PostID,
		ShareURL:                 r.ShareURL,
		Platform:                 r.Platform,
		ContentType:              r.ContentType,
		ExternalID:               r.ExternalID,
		Title:                    r.Title,
		ConnectedAccountID:       r.ConnectedAccountID,
		ConnectedAccountUsername: r.ConnectedAccountUsername,
		ProfileShareURL:          r.ProfileShareURL,
		CampaignID:               r.CampaignID,
		CampaignName:             r.CampaignName,
		CreateTime:               r.CreateTime,
		UpdatedAt:                r.UpdatedAt,
		RawJSON:                  r.Raw,
		FirstSeenAt:              seenAt,
		LastSeenAt:               seenAt,
	}
}

func toMetrics(r *domain.CanonicalRow, pulledAt time.Time) domain.PostMetrics {
	return domain.PostMetrics{
		PostID:         r.PostID,
		ViewCount:      valueOrZero(r.Metrics.ViewCount),
		LikeCount:      valueOrZero(r.Metrics.LikeCount),
		CommentCount:   valueOrZero(r.Metrics.CommentCount),
		ShareCount:     valueOrZero(r.Metrics.ShareCount),
		SavesCount:     r.Metrics.SavesCount,
		EngagementRate: r.Metrics.EngagementRate,
		PulledAt:       pulledAt,
	}
}

func valueOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
