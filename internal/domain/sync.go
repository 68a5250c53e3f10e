package domain

import (
	"fmt"
	"time"
)

// Variant selects which partner endpoint and page shape a sync reads.
type Variant string

const (
	VariantPrivate Variant = "private"
	VariantPublic  Variant = "public"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantPrivate, VariantPublic:
		return v, nil
	default:
		return "", &ConfigError{Field: "variant", Message: fmt.Sprintf("unknown variant %q", s)}
	}
}

// SyncRequest is the input of one synchronization run.
type SyncRequest struct {
	Variant    Variant    `json:"variant" validate:"required,oneof=private public"`
	Credential Credential `json:"credential" validate:"required"`
	StartDate  string     `json:"start_date" validate:"required"`
	EndDate    string     `json:"end_date" validate:"required"`
	PerPage    int        `json:"per_page" validate:"min=1"`
	Limit      int        `json:"limit" validate:"min=0"`
	IncludeGMV bool       `json:"include_gmv"`
	MaxPages   int        `json:"max_pages" validate:"min=0"` // 0 means until the partner reports completion
	// PageDelay is the pause between two page requests.
	PageDelay time.Duration `json:"page_delay"`
}

// SyncSummary holds statistics about a completed sync run.
type SyncSummary struct {
	RunID        string        `json:"run_id"`
	Variant      Variant       `json:"variant"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	PerPage      int           `json:"per_page"`
	Limit        int           `json:"limit,omitempty"`
	IncludeGMV   bool          `json:"include_gmv,omitempty"`
	PagesFetched int           `json:"pages_fetched"`
	RowsFetched  int           `json:"rows_fetched"`
	RowsInserted int           `json:"rows_inserted"`
	RowCount     int           `json:"row_count"`
	PageCount    int           `json:"page_count"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  time.Time     `json:"completed_at"`
	Duration     time.Duration `json:"duration"`
}

type UpsertResult struct {
	RowsProcessed int
	Inserted      int
}
