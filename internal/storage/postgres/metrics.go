package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"growi_syncer/internal/domain"
)

// metricsUpsert overwrites the whole snapshot on conflict.
var metricsUpsert = upsertSpec{
	table:    "src_growi_post_metrics",
	conflict: []string{"growi_post_id"},
	insert: []string{
		"growi_post_id", "view_count", "like_count", "comment_count",
		"share_count", "saves_count", "engagement_rate", "pulled_at",
	},
	update: []string{
		"view_count", "like_count", "comment_count",
		"share_count", "saves_count", "engagement_rate", "pulled_at",
	},
}

type MetricsStore struct {
	db *sqlx.DB
}

func NewMetricsStore(db *sqlx.DB) *MetricsStore {
	return &MetricsStore{db: db}
}

// UpsertBatch replaces the metrics snapshot of every given post. The posts
// must already exist.
func (s *MetricsStore) UpsertBatch(ctx context.Context, metrics []domain.PostMetrics) error {
	if len(metrics) == 0 {
		return nil
	}

	exec := executor(ctx, s.db)

	for _, c := range chunks(len(metrics), metricsUpsert.rowsPerStatement()) {
		batch := metrics[c[0]:c[1]]
		args := make([]any, 0, len(batch)*len(metricsUpsert.insert))
		for _, m := range batch {
			args = append(args,
				m.PostID, m.ViewCount, m.LikeCount, m.CommentCount,
				m.ShareCount, m.SavesCount, m.EngagementRate, m.PulledAt,
			)
		}

		if _, err := exec.ExecContext(ctx, metricsUpsert.build(len(batch)), args...); err != nil {
			return fmt.Errorf("upsert post metrics: %w", err)
		}
	}

	return nil
}
