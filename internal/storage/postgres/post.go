package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"growi_syncer/internal/domain"
)

// postUpsert never rewrites first_seen_at; every other column follows the
// latest observation.
var postUpsert = upsertSpec{
	table:    "src_growi_posts",
	conflict: []string{"growi_post_id"},
	insert: []string{
		"growi_post_id", "share_url", "platform", "content_type", "external_id",
		"title", "connected_account_id", "connected_account_username",
		"profile_share_url", "campaign_id", "campaign_name", "create_time",
		"updated_at", "raw_json", "first_seen_at", "last_seen_at",
	},
	update: []string{
		"share_url", "platform", "content_type", "external_id",
		"title", "connected_account_id", "connected_account_username",
		"profile_share_url", "campaign_id", "campaign_name", "create_time",
		"updated_at", "raw_json", "last_seen_at",
	},
	// xmax is zero only for tuples created by this statement.
	returning: "(xmax = 0) AS inserted",
}

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

// UpsertBatch writes posts keyed by growi_post_id and returns how many of
// them were new. Ids must be unique within the batch.
func (s *PostStore) UpsertBatch(ctx context.Context, posts []domain.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	exec := executor(ctx, s.db)
	inserted := 0

	for _, c := range chunks(len(posts), postUpsert.rowsPerStatement()) {
		batch := posts[c[0]:c[1]]
		args := make([]any, 0, len(batch)*len(postUpsert.insert))
		for _, p := range batch {
			args = append(args,
				p.PostID, p.ShareURL, p.Platform, p.ContentType, p.ExternalID,
				p.Title, p.ConnectedAccountID, p.ConnectedAccountUsername,
				p.ProfileShareURL, p.CampaignID, p.CampaignName, p.CreateTime,
				p.UpdatedAt, jsonArg(p.RawJSON), p.FirstSeenAt, p.LastSeenAt,
			)
		}

		n, err := countInserted(ctx, exec, postUpsert.build(len(batch)), args)
		if err != nil {
			return 0, fmt.Errorf("upsert posts: %w", err)
		}
		inserted += n
	}

	return inserted, nil
}

func countInserted(ctx context.Context, exec sqlx.ExtContext, query string, args []any) (int, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var inserted bool
		if err := rows.Scan(&inserted); err != nil {
			return 0, err
		}
		if inserted {
			n++
		}
	}
	return n, rows.Err()
}

// jsonArg binds raw JSON as text so postgres parses it into jsonb; a []byte
// argument would be sent as bytea.
func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
