package domain

import (
	"encoding/json"
	"time"
)

// CanonicalRow is one partner record after normalization, independent of
// the endpoint it was read from.
type CanonicalRow struct {
	PostID                   int64 // partner-assigned id, natural key
	ShareURL                 string
	Platform                 string
	ContentType              *string
	ExternalID               *string // platform content id
	Title                    *string
	ConnectedAccountID       *string
	ConnectedAccountUsername *string
	ProfileShareURL          *string
	CampaignID               *int64
	CampaignName             *string
	CreateTime               *time.Time
	UpdatedAt                *time.Time
	Metrics                  Metrics
	Raw                      json.RawMessage
}

// Metrics holds the counters observed for a post. A nil field means the
// partner did not report the value.
type Metrics struct {
	ViewCount      *int64
	LikeCount      *int64
	CommentCount   *int64
	ShareCount     *int64
	SavesCount     *int64
	EngagementRate *string
}

type Post struct {
	PostID                   int64      `db:"growi_post_id"`
	ShareURL                 string     `db:"share_url"`
	Platform                 string     `db:"platform"`
	ContentType              *string    `db:"content_type"`
	ExternalID               *string    `db:"external_id"`
	Title                    *string    `db:"title"`
	ConnectedAccountID       *string    `db:"connected_account_id"`
	ConnectedAccountUsername *string    `db:"connected_account_username"`
	ProfileShareURL          *string    `db:"profile_share_url"`
	CampaignID               *int64     `db:"campaign_id"`
	CampaignName             *string    `db:"campaign_name"`
	CreateTime               *time.Time `db:"create_time"`
	UpdatedAt                *time.Time `db:"updated_at"`
	RawJSON                  []byte     `db:"raw_json"`
	FirstSeenAt              time.Time  `db:"first_seen_at"`
	LastSeenAt               time.Time  `db:"last_seen_at"`
}

// PostMetrics is the latest counter snapshot for a post. There is at most
// one per post.
type PostMetrics struct {
	ID             int64     `db:"id"`
	PostID         int64     `db:"growi_post_id"`
	ViewCount      int64     `db:"view_count"`
	LikeCount      int64     `db:"like_count"`
	CommentCount   int64     `db:"comment_count"`
	ShareCount     int64     `db:"share_count"`
	SavesCount     *int64    `db:"saves_count"`
	EngagementRate *string   `db:"engagement_rate"`
	PulledAt       time.Time `db:"pulled_at"`
}
