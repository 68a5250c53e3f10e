package growi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"growi_syncer/internal/domain"
)

const (
	DefaultBaseURL          = "https://api.growi.io"
	DefaultOrganizationSlug = "airclub-f80c0262"
	DefaultDomainOrigin     = "https://www.growi.io"
	DefaultSource           = "management_posts"

	// DateLayout is the partner's start_date/end_date format.
	DateLayout = "01/02/2006"

	MaxPrivatePerPage = 1000
	MaxPublicPerPage  = 100

	maxErrorBody = 1024
	maxPageBody  = 32 << 20
)

// Config holds growi client configuration.
type Config struct {
	BaseURL          string
	OrganizationSlug string
	DomainOrigin     string
	Source           string
	Timeout          time.Duration
}

// PageRequest identifies one page of one endpoint.
type PageRequest struct {
	Variant    domain.Variant
	Credential domain.Credential
	StartDate  string
	EndDate    string
	Page       int
	PerPage    int
	Limit      int // public only
	IncludeGMV bool
}

// Client performs single page requests against the growi API. It does not
// retry and does not log.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	orgSlug    string
	origin     string
	source     string
}

// New creates a new growi client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.OrganizationSlug == "" {
		cfg.OrganizationSlug = DefaultOrganizationSlug
	}
	if cfg.DomainOrigin == "" {
		cfg.DomainOrigin = DefaultDomainOrigin
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		orgSlug:    cfg.OrganizationSlug,
		origin:     cfg.DomainOrigin,
		source:     cfg.Source,
	}, nil
}

// MaxPerPage returns the largest page size the variant accepts.
func MaxPerPage(v domain.Variant) int {
	if v == domain.VariantPublic {
		return MaxPublicPerPage
	}
	return MaxPrivatePerPage
}

// FetchPage requests a single page.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	if req.Page < 1 {
		return nil, &domain.ConfigError{Field: "page", Message: "must be >= 1"}
	}
	if req.PerPage < 1 || req.PerPage > MaxPerPage(req.Variant) {
		return nil, &domain.ConfigError{
			Field:   "per_page",
			Message: fmt.Sprintf("must be between 1 and %d", MaxPerPage(req.Variant)),
		}
	}
	if req.Credential == "" {
		return nil, &domain.ConfigError{Field: "credential", Message: "missing"}
	}

	switch req.Variant {
	case domain.VariantPrivate:
		p, err := c.fetchPrivate(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Page{Variant: req.Variant, Private: p}, nil
	case domain.VariantPublic:
		p, err := c.fetchPublic(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Page{Variant: req.Variant, Public: p}, nil
	default:
		return nil, &domain.ConfigError{Field: "variant", Message: fmt.Sprintf("unknown variant %q", req.Variant)}
	}
}

func (c *Client) fetchPrivate(ctx context.Context, req PageRequest) (*PrivatePage, error) {
	u := c.baseURL.JoinPath("api", "v1", "organizations", c.orgSlug, "user_contents")

	q := url.Values{}
	q.Set("start_date", req.StartDate)
	q.Set("end_date", req.EndDate)
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("per_page", strconv.Itoa(req.PerPage))
	q.Set("search", "")
	q.Set("sort_by", "view_count")
	q.Set("sort_direction", "desc")
	q.Set("source", c.source)
	q.Set("organization_id", c.orgSlug)
	q.Set("domain_origin", c.origin)
	u.RawQuery = q.Encode()

	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("App-Name", "web")
	h.Set("Authorization", "Bearer "+req.Credential.Reveal())
	h.Set("Content-Type", "application/json")
	h.Set("Origin", c.origin)
	h.Set("Referer", c.origin+"/")

	var page PrivatePage
	if err := c.doRequest(ctx, u, h, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) fetchPublic(ctx context.Context, req PageRequest) (*PublicPage, error) {
	u := c.baseURL.JoinPath("api", "public", "v1", "stats", "top_posts_by_views")

	limit := req.Limit
	if limit == 0 {
		limit = req.PerPage
	}

	q := url.Values{}
	q.Set("start_date", req.StartDate)
	q.Set("end_date", req.EndDate)
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("per_page", strconv.Itoa(req.PerPage))
	q.Set("include_gmv", strconv.FormatBool(req.IncludeGMV))
	u.RawQuery = q.Encode()

	h := http.Header{}
	h.Set("Authorization", "Bearer "+req.Credential.Reveal())
	h.Set("Content-Type", "application/json")

	var page PublicPage
	if err := c.doRequest(ctx, u, h, &page); err != nil {
		return nil, err
	}
	if !*page.Success {
		return nil, &APIError{
			Kind:    KindShape,
			Status:  http.StatusOK,
			Message: "growi public API returned success=false",
		}
	}
	return &page, nil
}

func (c *Client) doRequest(ctx context.Context, u *url.URL, h http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = h

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := string(body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &APIError{Kind: KindStatus, Status: resp.StatusCode, Message: msg}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return &APIError{Kind: KindTransport, Status: resp.StatusCode, Message: "read body: " + err.Error(), Err: err}
	}

	if err := decodePage(body, out); err != nil {
		return &APIError{Kind: KindShape, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	return nil
}

// DefaultPageDelay is the pause between page requests that keeps a variant
// under the partner's rate limit.
func DefaultPageDelay(v domain.Variant) time.Duration {
	if v == domain.VariantPublic {
		return 2200 * time.Millisecond
	}
	return 300 * time.Millisecond
}
