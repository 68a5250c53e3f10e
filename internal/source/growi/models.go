package growi

import (
	"encoding/json"
	"reflect"

	"growi_syncer/internal/domain"
)

// Page is one page read from either endpoint. Exactly one of Private and
// Public is set, selected by Variant.
type Page struct {
	Variant domain.Variant
	Private *PrivatePage
	Public  *PublicPage
}

// Len returns the number of records on the page.
func (p *Page) Len() int {
	switch p.Variant {
	case domain.VariantPrivate:
		return len(p.Private.Data)
	case domain.VariantPublic:
		return len(p.Public.Data.TopPostsByViews)
	default:
		return 0
	}
}

// Meta returns the page's pagination metadata in variant-independent form.
func (p *Page) Meta() Meta {
	switch p.Variant {
	case domain.VariantPrivate:
		m := p.Private.Meta
		return Meta{
			CurrentPage:    *m.CurrentPage,
			RowCount:       *m.RowCount,
			PageCount:      *m.PageCount,
			NextPage:       m.NextPage,
			HasNextPointer: true,
		}
	case domain.VariantPublic:
		m := p.Public.Meta
		return Meta{
			CurrentPage: int(*m.CurrentPage),
			RowCount:    int(*m.RowCount),
			PageCount:   int(*m.PageCount),
			HasMore:     m.HasMore,
		}
	default:
		return Meta{}
	}
}

// Meta is the pagination state reported with a page.
type Meta struct {
	CurrentPage int
	RowCount    int
	PageCount   int
	// NextPage is only meaningful when HasNextPointer is set; nil then
	// means the partner reported no next page.
	NextPage       *int
	HasNextPointer bool
	HasMore        *bool
}

// LastPage reports whether the metadata says no further pages exist.
func (m Meta) LastPage() bool {
	if m.HasNextPointer && m.NextPage == nil {
		return true
	}
	if m.PageCount == 0 || m.CurrentPage >= m.PageCount {
		return true
	}
	return m.HasMore != nil && !*m.HasMore
}

// PrivatePage is the user_contents response of the authenticated API.
type PrivatePage struct {
	Data []PrivateRow `json:"data" validate:"required,dive"`
	Meta *PrivateMeta `json:"meta" validate:"required"`
}

type PrivateMeta struct {
	RowCount    *int `json:"row_count" validate:"required"`
	PageCount   *int `json:"page_count" validate:"required"`
	CurrentPage *int `json:"current_page" validate:"required"`
	NextPage    *int `json:"next_page"`
	PrevPage    *int `json:"prev_page"`
	TotalCount  *int `json:"total_count,omitempty"`
	TotalPages  *int `json:"total_pages,omitempty"`
}

type PrivateRow struct {
	ID                       *int64          `json:"id" validate:"required"`
	ShareURL                 *string         `json:"share_url" validate:"required"`
	Platform                 *string         `json:"platform" validate:"required"`
	ContentType              *string         `json:"content_type"`
	ExternalID               *string         `json:"external_id"`
	Title                    *string         `json:"title"`
	ConnectedAccountID       json.RawMessage `json:"connected_account_id"` // string or number
	ConnectedAccountUsername *string         `json:"connected_account_username"`
	ProfileShareURL          *string         `json:"profile_share_url"`
	CampaignID               *int64          `json:"campaign_id"`
	CampaignName             *string         `json:"campaign_name"`
	CreateTime               *float64        `json:"create_time"` // unix seconds
	UpdatedAt                *string         `json:"updated_at"`  // ISO-8601
	ViewCount                *int64          `json:"view_count" validate:"required,gte=0"`
	LikeCount                *int64          `json:"like_count" validate:"required,gte=0"`
	CommentCount             *int64          `json:"comment_count" validate:"required,gte=0"`
	ShareCount               *int64          `json:"share_count" validate:"required,gte=0"`
	SavesCount               *int64          `json:"saves_count,omitempty" validate:"omitempty,gte=0"`
	EngagementRate           json.RawMessage `json:"engagement_rate,omitempty"` // "4.5%" or 4.5

	// Raw is the record exactly as received, unknown fields included.
	Raw json.RawMessage `json:"-"`
}

func (r *PrivateRow) UnmarshalJSON(b []byte) error {
	type plain PrivateRow
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = PrivateRow(p)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// PublicPage is the top_posts_by_views response of the public API.
type PublicPage struct {
	Success *bool       `json:"success" validate:"required"`
	Data    *PublicData `json:"data" validate:"required"`
	Meta    *PublicMeta `json:"meta" validate:"required"`
}

type PublicData struct {
	TopPostsByViews []PublicPost `json:"top_posts_by_views" validate:"required,dive"`
}

type PublicMeta struct {
	CurrentPage *Int  `json:"current_page" validate:"required"`
	PerPage     *Int  `json:"per_page,omitempty"`
	RowCount    *Int  `json:"row_count" validate:"required"`
	PageCount   *Int  `json:"page_count" validate:"required"`
	HasMore     *bool `json:"has_more,omitempty"`
}

type PublicPost struct {
	ID              *Int           `json:"id" validate:"required"`
	Title           *string        `json:"title,omitempty"`
	ShareURL        *string        `json:"share_url" validate:"required"`
	Platform        *string        `json:"platform" validate:"required"`
	ContentType     *string        `json:"content_type,omitempty"`
	ExternalID      *string        `json:"external_id,omitempty"`
	Username        *string        `json:"username,omitempty"`
	Name            *string        `json:"name,omitempty"`
	ProfileShareURL *string        `json:"profile_share_url,omitempty"`
	Metrics         *PublicMetrics `json:"metrics" validate:"required"`
	GMV             *string        `json:"gmv,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (p *PublicPost) UnmarshalJSON(b []byte) error {
	type plain PublicPost
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = PublicPost(v)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// PublicMetrics counters may be numbers or formatted strings such as
// "1,234"; they are kept raw and parsed during normalization.
type PublicMetrics struct {
	Views    json.RawMessage `json:"views" validate:"notnull"`
	Likes    json.RawMessage `json:"likes" validate:"notnull"`
	Comments json.RawMessage `json:"comments" validate:"notnull"`
	Shares   json.RawMessage `json:"shares" validate:"notnull"`
}

// Int is an integer the public API may send as a JSON number or as a string
// with thousands separators. Values that are not non-negative integers are
// rejected.
type Int int64

func (n *Int) UnmarshalJSON(b []byte) error {
	v := parseCount(b)
	if v == nil {
		// A type error picks up the field path from the decoder.
		return &json.UnmarshalTypeError{Value: string(b), Type: reflect.TypeOf(*n)}
	}
	*n = Int(*v)
	return nil
}
