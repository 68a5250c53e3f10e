//go:build integration

package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"growi_syncer/internal/domain"
)

func (s *PostStore) getByIDs(ctx context.Context, ids []int64) ([]domain.Post, error) {
	query := `
		SELECT growi_post_id, share_url, platform, content_type, external_id,
			title, connected_account_id, connected_account_username,
			profile_share_url, campaign_id, campaign_name, create_time,
			updated_at, raw_json, first_seen_at, last_seen_at
		FROM src_growi_posts
		WHERE growi_post_id = ANY($1)
		ORDER BY growi_post_id`

	var posts []domain.Post
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &posts, query, pq.Array(ids))
	return posts, err
}

func (s *PostStore) count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &n, `SELECT COUNT(*) FROM src_growi_posts`)
	return n, err
}

func (s *MetricsStore) getByPostIDs(ctx context.Context, ids []int64) ([]domain.PostMetrics, error) {
	query := `
		SELECT id, growi_post_id, view_count, like_count, comment_count,
			share_count, saves_count, engagement_rate::TEXT AS engagement_rate, pulled_at
		FROM src_growi_post_metrics
		WHERE growi_post_id = ANY($1)
		ORDER BY growi_post_id`

	var metrics []domain.PostMetrics
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &metrics, query, pq.Array(ids))
	return metrics, err
}

func (s *MetricsStore) count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &n, `SELECT COUNT(*) FROM src_growi_post_metrics`)
	return n, err
}
