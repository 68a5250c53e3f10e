package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"growi_syncer/internal/domain"
	"growi_syncer/internal/retry"
	"growi_syncer/internal/source/growi"
)

type runState string

const (
	stateIdle         runState = "idle"
	stateFetchingPage runState = "fetching_page"
	stateNormalizing  runState = "normalizing"
	stateUpserting    runState = "upserting"
	stateDone         runState = "done"
	stateFailed       runState = "failed"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// SyncService pages through one growi endpoint and upserts every page
// before requesting the next.
type SyncService struct {
	fetcher   PageFetcher
	writer    PageWriter
	publisher Publisher
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// NewSyncService creates a sync service. publisher may be nil.
func NewSyncService(
	fetcher PageFetcher,
	writer PageWriter,
	publisher Publisher,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		fetcher:   fetcher,
		writer:    writer,
		publisher: publisher,
		logger:    logger,
		sleep:     retry.SleepContext,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Sync runs one synchronization. Pages committed before a failure stay
// committed; on failure no summary is returned and the window has to be
// synced again from the first page.
func (s *SyncService) Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncSummary, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	summary := &domain.SyncSummary{
		RunID:      s.newID(),
		Variant:    req.Variant,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		PerPage:    req.PerPage,
		Limit:      req.Limit,
		IncludeGMV: req.IncludeGMV,
		StartedAt:  s.now(),
	}
	logger := s.logger.With("run_id", summary.RunID, "variant", req.Variant)

	logger.Info("starting sync",
		"state", stateIdle,
		"start_date", req.StartDate,
		"end_date", req.EndDate,
		"per_page", req.PerPage,
		"max_pages", req.MaxPages,
	)

	if err := s.run(ctx, logger, req, summary); err != nil {
		logger.Error("sync failed",
			"state", stateFailed,
			"pages_fetched", summary.PagesFetched,
			"rows_fetched", summary.RowsFetched,
			"error", err,
		)
		return nil, err
	}

	summary.CompletedAt = s.now()
	summary.Duration = summary.CompletedAt.Sub(summary.StartedAt)

	logger.Info("sync completed",
		"state", stateDone,
		"pages_fetched", summary.PagesFetched,
		"rows_fetched", summary.RowsFetched,
		"rows_inserted", summary.RowsInserted,
		"row_count", summary.RowCount,
		"page_count", summary.PageCount,
		"duration", summary.Duration,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishSummary(ctx, summary); err != nil {
			logger.Warn("failed to publish sync summary", "error", err)
		}
	}

	return summary, nil
}

func (s *SyncService) run(ctx context.Context, logger *slog.Logger, req domain.SyncRequest, summary *domain.SyncSummary) error {
	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Debug("sync state", "state", stateFetchingPage, "page", page)
		p, err := s.fetcher.FetchPage(ctx, growi.PageRequest{
			Variant:    req.Variant,
			Credential: req.Credential,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			Page:       page,
			PerPage:    req.PerPage,
			Limit:      req.Limit,
			IncludeGMV: req.IncludeGMV,
		})
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", page, err)
		}

		logger.Debug("sync state", "state", stateNormalizing, "page", page, "rows", p.Len())
		rows := growi.Normalize(p)

		logger.Debug("sync state", "state", stateUpserting, "page", page, "rows", len(rows))
		res, err := s.writer.Upsert(ctx, rows)
		if err != nil {
			return fmt.Errorf("upsert page %d: %w", page, err)
		}

		meta := p.Meta()
		summary.PagesFetched++
		summary.RowsFetched += p.Len()
		summary.RowsInserted += res.Inserted
		summary.RowCount = meta.RowCount
		summary.PageCount = meta.PageCount

		logger.Info("page synced",
			"page", page,
			"rows", p.Len(),
			"inserted", res.Inserted,
			"row_count", meta.RowCount,
			"page_count", meta.PageCount,
		)

		if reason := stopReason(req, summary, p.Len(), meta); reason != "" {
			logger.Debug("pagination finished", "reason", reason, "page", page)
			return nil
		}

		next := page + 1
		if meta.NextPage != nil && *meta.NextPage > page {
			next = *meta.NextPage
		}

		if req.PageDelay > 0 {
			if err := s.sleep(ctx, req.PageDelay); err != nil {
				return fmt.Errorf("wait before page %d: %w", next, err)
			}
		}
		page = next
	}
}

// stopReason returns why pagination ends after the current page, or "" to
// continue.
func stopReason(req domain.SyncRequest, summary *domain.SyncSummary, rows int, meta growi.Meta) string {
	switch {
	case req.MaxPages > 0 && summary.PagesFetched >= req.MaxPages:
		return "page budget reached"
	case rows == 0:
		return "empty page"
	case meta.LastPage():
		return "last page"
	default:
		return ""
	}
}

// ValidateRequest checks run parameters before any request is made.
func ValidateRequest(req domain.SyncRequest) error {
	if err := requestValidator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ConfigError{Field: fe.Field(), Message: validationMessage(fe)}
		}
		return &domain.ConfigError{Message: err.Error()}
	}

	if limit := growi.MaxPerPage(req.Variant); req.PerPage > limit {
		return &domain.ConfigError{
			Field:   "per_page",
			Message: fmt.Sprintf("must be between 1 and %d", limit),
		}
	}

	start, err := time.Parse(growi.DateLayout, req.StartDate)
	if err != nil {
		return &domain.ConfigError{Field: "start_date", Message: "must be MM/DD/YYYY"}
	}
	end, err := time.Parse(growi.DateLayout, req.EndDate)
	if err != nil {
		return &domain.ConfigError{Field: "end_date", Message: "must be MM/DD/YYYY"}
	}
	if start.After(end) {
		return &domain.ConfigError{Field: "start_date", Message: "must not be after end_date"}
	}

	if req.PageDelay < 0 {
		return &domain.ConfigError{Field: "page_delay", Message: "must not be negative"}
	}

	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "missing"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be >= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
