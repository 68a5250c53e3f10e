package growi

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"growi_syncer/internal/domain"
)

// Normalize maps every record of a page to its canonical form.
func Normalize(page *Page) []domain.CanonicalRow {
	switch page.Variant {
	case domain.VariantPrivate:
		rows := make([]domain.CanonicalRow, 0, len(page.Private.Data))
		for i := range page.Private.Data {
			rows = append(rows, normalizePrivate(&page.Private.Data[i]))
		}
		return rows
	case domain.VariantPublic:
		posts := page.Public.Data.TopPostsByViews
		rows := make([]domain.CanonicalRow, 0, len(posts))
		for i := range posts {
			rows = append(rows, normalizePublic(&posts[i]))
		}
		return rows
	default:
		return nil
	}
}

func normalizePrivate(r *PrivateRow) domain.CanonicalRow {
	return domain.CanonicalRow{
		PostID:                   *r.ID,
		ShareURL:                 *r.ShareURL,
		Platform:                 *r.Platform,
		ContentType:              r.ContentType,
		ExternalID:               r.ExternalID,
		Title:                    r.Title,
		ConnectedAccountID:       parseStringOrNumber(r.ConnectedAccountID),
		ConnectedAccountUsername: r.ConnectedAccountUsername,
		ProfileShareURL:          r.ProfileShareURL,
		CampaignID:               r.CampaignID,
		CampaignName:             r.CampaignName,
		CreateTime:               UnixSeconds(r.CreateTime),
		UpdatedAt:                ISOTime(r.UpdatedAt),
		Metrics: domain.Metrics{
			ViewCount:      r.ViewCount,
			LikeCount:      r.LikeCount,
			CommentCount:   r.CommentCount,
			ShareCount:     r.ShareCount,
			SavesCount:     r.SavesCount,
			EngagementRate: EngagementRate(r.EngagementRate),
		},
		Raw: r.Raw,
	}
}

// normalizePublic leaves campaign, create time, saves and engagement rate
// absent: the public endpoint never reports them.
func normalizePublic(p *PublicPost) domain.CanonicalRow {
	return domain.CanonicalRow{
		PostID:                   int64(*p.ID),
		ShareURL:                 *p.ShareURL,
		Platform:                 *p.Platform,
		ContentType:              p.ContentType,
		ExternalID:               p.ExternalID,
		Title:                    p.Title,
		ConnectedAccountUsername: p.Username,
		ProfileShareURL:          p.ProfileShareURL,
		Metrics: domain.Metrics{
			ViewCount:    ParseCount(p.Metrics.Views),
			LikeCount:    ParseCount(p.Metrics.Likes),
			CommentCount: ParseCount(p.Metrics.Comments),
			ShareCount:   ParseCount(p.Metrics.Shares),
		},
		Raw: p.Raw,
	}
}

// ParseCount parses a non-negative integer sent as a JSON number or as a
// string such as "1,234". Anything else, including "", yields nil.
func ParseCount(raw json.RawMessage) *int64 {
	return parseCount(raw)
}

func parseCount(raw []byte) *int64 {
	s, ok := rawScalar(raw)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return nil
		}
		return &n
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

// EngagementRate normalizes a rate sent as a number or as a percentage
// string ("4.5%") to a decimal string without the suffix.
func EngagementRate(raw json.RawMessage) *string {
	s, ok := rawScalar(raw)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	if s == "" || strings.IndexFunc(s, notDecimal) >= 0 {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	// The text is stored as sent; f is only a syntax check.
	return &s
}

// notDecimal rejects runes postgres NUMERIC input does not accept, such as
// hex prefixes and digit separators that ParseFloat allows.
func notDecimal(r rune) bool {
	return !strings.ContainsRune("0123456789.+-eE", r)
}

// maxUnixSeconds is the last second of year 9999, within the range of a
// postgres timestamptz.
var maxUnixSeconds = float64(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).Unix())

// UnixSeconds converts a unix-seconds timestamp. Non-positive and
// non-finite values yield nil, as do values past year 9999, which are
// usually milli- or microsecond epochs.
func UnixSeconds(v *float64) *time.Time {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 || *v > maxUnixSeconds {
		return nil
	}
	sec, frac := math.Modf(*v)
	t := time.Unix(int64(sec), int64(frac*1e9)).UTC()
	return &t
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ISOTime parses an ISO-8601 timestamp. Values without a zone are read as
// UTC. Empty or unparseable input yields nil.
func ISOTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseStringOrNumber(raw json.RawMessage) *string {
	s, ok := rawScalar(raw)
	if !ok {
		return nil
	}
	return &s
}

// rawScalar returns the text of a JSON string or number.
func rawScalar(raw []byte) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		return string(raw), true
	}
	return "", false
}
