package growi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"growi_syncer/internal/domain"
	"growi_syncer/internal/retry"
)

type ClientTestSuite struct {
	suite.Suite
	server   *httptest.Server
	handler  http.HandlerFunc
	requests atomic.Int32
	client   *Client
	lastReq  *http.Request
}

func (s *ClientTestSuite) SetupTest() {
	s.requests.Store(0)
	s.handler = nil
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.lastReq = r
		s.handler(w, r)
	}))

	client, err := New(Config{
		BaseURL:          s.server.URL,
		OrganizationSlug: "org-test",
		DomainOrigin:     "https://app.example.com",
		Source:           "management_posts",
		Timeout:          5 * time.Second,
	})
	s.Require().NoError(err)
	s.client = client
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) respond(status int, body string) {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func privateRequest() PageRequest {
	return PageRequest{
		Variant:    domain.VariantPrivate,
		Credential: "secret-token",
		StartDate:  "01/01/2024",
		EndDate:    "01/31/2024",
		Page:       2,
		PerPage:    50,
	}
}

func publicRequest() PageRequest {
	return PageRequest{
		Variant:    domain.VariantPublic,
		Credential: "public-key",
		StartDate:  "01/01/2024",
		EndDate:    "01/31/2024",
		Page:       1,
		PerPage:    20,
		Limit:      100,
		IncludeGMV: true,
	}
}

func (s *ClientTestSuite) apiError(err error) *APIError {
	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr
}

func (s *ClientTestSuite) TestFetchPrivatePage() {
	s.respond(http.StatusOK, privatePageJSON)

	page, err := s.client.FetchPage(context.Background(), privateRequest())
	s.Require().NoError(err)

	s.Equal(domain.VariantPrivate, page.Variant)
	s.Equal(2, page.Len())
	s.True(page.Meta().LastPage())

	r := s.lastReq
	s.Equal("/api/v1/organizations/org-test/user_contents", r.URL.Path)
	q := r.URL.Query()
	s.Equal("01/01/2024", q.Get("start_date"))
	s.Equal("01/31/2024", q.Get("end_date"))
	s.Equal("2", q.Get("page"))
	s.Equal("50", q.Get("per_page"))
	s.Equal("view_count", q.Get("sort_by"))
	s.Equal("desc", q.Get("sort_direction"))
	s.Equal("management_posts", q.Get("source"))
	s.Equal("org-test", q.Get("organization_id"))
	s.Equal("https://app.example.com", q.Get("domain_origin"))
	s.True(q.Has("search"))

	s.Equal("Bearer secret-token", r.Header.Get("Authorization"))
	s.Equal("web", r.Header.Get("App-Name"))
	s.Equal("https://app.example.com", r.Header.Get("Origin"))
	s.Equal("https://app.example.com/", r.Header.Get("Referer"))
}

func (s *ClientTestSuite) TestFetchPublicPage() {
	s.respond(http.StatusOK, publicPageJSON)

	page, err := s.client.FetchPage(context.Background(), publicRequest())
	s.Require().NoError(err)

	s.Equal(domain.VariantPublic, page.Variant)
	s.Equal(2, page.Len())
	meta := page.Meta()
	s.Equal(1, meta.CurrentPage)
	s.Equal(1002, meta.RowCount)
	s.Equal(501, meta.PageCount)
	s.False(meta.LastPage())

	r := s.lastReq
	s.Equal("/api/public/v1/stats/top_posts_by_views", r.URL.Path)
	q := r.URL.Query()
	s.Equal("100", q.Get("limit"))
	s.Equal("20", q.Get("per_page"))
	s.Equal("true", q.Get("include_gmv"))
	s.Equal("Bearer public-key", r.Header.Get("Authorization"))
}

func (s *ClientTestSuite) TestFetchPublicPage_LimitDefaultsToPerPage() {
	s.respond(http.StatusOK, publicPageJSON)
	req := publicRequest()
	req.Limit = 0

	_, err := s.client.FetchPage(context.Background(), req)
	s.Require().NoError(err)
	s.Equal("20", s.lastReq.URL.Query().Get("limit"))
}

func (s *ClientTestSuite) TestStatusError() {
	s.respond(http.StatusForbidden, "forbidden")

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Equal(KindStatus, apiErr.Kind)
	s.Equal(http.StatusForbidden, apiErr.Status)
	s.Equal("forbidden", apiErr.Message)
	s.False(IsRetryable(err))
}

func (s *ClientTestSuite) TestStatusError_EmptyBody() {
	s.respond(http.StatusBadGateway, "")

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Equal("HTTP 502", apiErr.Message)
	s.True(IsRetryable(err))
}

func (s *ClientTestSuite) TestStatusError_TruncatesBody() {
	s.respond(http.StatusInternalServerError, strings.Repeat("x", 5000))

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Len(apiErr.Message, maxErrorBody)
}

func (s *ClientTestSuite) TestShapeError_MissingField() {
	s.respond(http.StatusOK, `{"data":[{"id":1,"platform":"tiktok","view_count":1,"like_count":1,"comment_count":1,"share_count":1}],"meta":{"row_count":1,"page_count":1,"current_page":1,"next_page":null,"prev_page":null}}`)

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Equal(http.StatusOK, apiErr.Status)
	s.Contains(apiErr.Message, "data[0].share_url")
	s.False(IsRetryable(err))
}

func (s *ClientTestSuite) TestShapeError_MissingMeta() {
	s.respond(http.StatusOK, `{"data":[]}`)

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Contains(apiErr.Message, "meta")
}

func (s *ClientTestSuite) TestShapeError_WrongType() {
	s.respond(http.StatusOK, `{"data":[{"id":1,"share_url":"u","platform":"p","view_count":"many","like_count":1,"comment_count":1,"share_count":1}],"meta":{"row_count":1,"page_count":1,"current_page":1,"next_page":null,"prev_page":null}}`)

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Contains(apiErr.Message, "int64")
}

func (s *ClientTestSuite) TestShapeError_InvalidJSON() {
	s.respond(http.StatusOK, `<html>maintenance</html>`)

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Contains(apiErr.Message, "invalid JSON")
}

func (s *ClientTestSuite) TestShapeError_PublicSuccessFalse() {
	s.respond(http.StatusOK, `{"success":false,"data":{"top_posts_by_views":[]},"meta":{"current_page":1,"row_count":0,"page_count":0}}`)

	_, err := s.client.FetchPage(context.Background(), publicRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Contains(apiErr.Message, "success=false")
}

func (s *ClientTestSuite) TestShapeError_PublicNullMetric() {
	s.respond(http.StatusOK, `{"success":true,"data":{"top_posts_by_views":[{"id":1,"share_url":"u","platform":"p","metrics":{"views":null,"likes":1,"comments":1,"shares":1}}]},"meta":{"current_page":1,"row_count":1,"page_count":1}}`)

	_, err := s.client.FetchPage(context.Background(), publicRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Contains(apiErr.Message, "top_posts_by_views[0].metrics.views")
}

func (s *ClientTestSuite) TestShapeError_PublicBadPostID() {
	s.respond(http.StatusOK, `{"success":true,"data":{"top_posts_by_views":[{"id":"abc","share_url":"u","platform":"p","metrics":{"views":1,"likes":1,"comments":1,"shares":1}}]},"meta":{"current_page":1,"row_count":1,"page_count":1}}`)

	_, err := s.client.FetchPage(context.Background(), publicRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Contains(apiErr.Message, "data.top_posts_by_views.id")
	s.Contains(apiErr.Message, `"abc"`)
	s.False(IsRetryable(err))
}

func (s *ClientTestSuite) TestShapeError_PublicBadMetaNumber() {
	s.respond(http.StatusOK, `{"success":true,"data":{"top_posts_by_views":[]},"meta":{"current_page":"x","row_count":0,"page_count":0}}`)

	_, err := s.client.FetchPage(context.Background(), publicRequest())

	apiErr := s.apiError(err)
	s.Equal(KindShape, apiErr.Kind)
	s.Contains(apiErr.Message, "meta.current_page")
}

func (s *ClientTestSuite) TestInvalidRequestIsRejectedLocally() {
	s.respond(http.StatusOK, privatePageJSON)

	req := privateRequest()
	req.Page = 0
	_, err := s.client.FetchPage(context.Background(), req)
	var cfgErr *domain.ConfigError
	s.ErrorAs(err, &cfgErr)

	req = publicRequest()
	req.PerPage = MaxPublicPerPage + 1
	_, err = s.client.FetchPage(context.Background(), req)
	s.ErrorAs(err, &cfgErr)

	req = privateRequest()
	req.Credential = ""
	_, err = s.client.FetchPage(context.Background(), req)
	s.ErrorAs(err, &cfgErr)

	s.Equal(int32(0), s.requests.Load())
}

func (s *ClientTestSuite) TestTransportError() {
	s.server.Close()

	_, err := s.client.FetchPage(context.Background(), privateRequest())

	apiErr := s.apiError(err)
	s.Equal(KindTransport, apiErr.Kind)
	s.True(IsRetryable(err))
}

func (s *ClientTestSuite) retrying() *RetryingFetcher {
	p := DefaultPolicy(4, time.Second)
	p.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRetryingFetcher(s.client, p, logger)
}

func (s *ClientTestSuite) TestRetrying_SucceedsAfterServerErrors() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		if s.requests.Load() <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, privatePageJSON)
	}

	page, err := s.retrying().FetchPage(context.Background(), privateRequest())

	s.Require().NoError(err)
	s.Equal(2, page.Len())
	s.Equal(int32(4), s.requests.Load())
}

func (s *ClientTestSuite) TestRetrying_ExhaustsBudget() {
	s.respond(http.StatusInternalServerError, "boom")

	_, err := s.retrying().FetchPage(context.Background(), privateRequest())

	var exhausted *retry.ExhaustedError
	s.Require().ErrorAs(err, &exhausted)
	s.Equal(4, exhausted.Attempts)
	s.Equal(http.StatusInternalServerError, s.apiError(err).Status)
	s.Equal(int32(4), s.requests.Load())
}

func (s *ClientTestSuite) TestRetrying_ShapeErrorIsNotRetried() {
	s.respond(http.StatusOK, `{"data":"nope"}`)

	_, err := s.retrying().FetchPage(context.Background(), privateRequest())

	s.Equal(KindShape, s.apiError(err).Kind)
	s.Equal(int32(1), s.requests.Load())
}

func (s *ClientTestSuite) TestRetrying_ClientErrorIsNotRetried() {
	s.respond(http.StatusBadRequest, "bad request")

	_, err := s.retrying().FetchPage(context.Background(), privateRequest())

	s.Error(err)
	s.Equal(int32(1), s.requests.Load())
}

func (s *ClientTestSuite) TestRetrying_RateLimitAndTimeoutAreRetried() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		switch s.requests.Load() {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"error":"Request timeout, please retry"}`)
		default:
			_, _ = io.WriteString(w, publicPageJSON)
		}
	}

	_, err := s.retrying().FetchPage(context.Background(), publicRequest())

	s.NoError(err)
	s.Equal(int32(3), s.requests.Load())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "transport", err: &APIError{Kind: KindTransport}, want: true},
		{name: "429", err: &APIError{Kind: KindStatus, Status: 429}, want: true},
		{name: "500", err: &APIError{Kind: KindStatus, Status: 500}, want: true},
		{name: "503", err: &APIError{Kind: KindStatus, Status: 503}, want: true},
		{name: "422 timeout", err: &APIError{Kind: KindStatus, Status: 422, Message: "Request Timeout"}, want: true},
		{name: "422 other", err: &APIError{Kind: KindStatus, Status: 422, Message: "invalid date"}, want: false},
		{name: "404", err: &APIError{Kind: KindStatus, Status: 404}, want: false},
		{name: "shape", err: &APIError{Kind: KindShape, Status: 200}, want: false},
		{name: "wrapped", err: errors.Join(errors.New("ctx"), &APIError{Kind: KindStatus, Status: 502}), want: true},
		{name: "other", err: errors.New("plain"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
