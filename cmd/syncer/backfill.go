package main

import (
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"growi_syncer/internal/domain"
	"growi_syncer/internal/source/growi"
)

type backfillFlags struct {
	variant    string
	start      string
	end        string
	perPage    int
	limit      int
	includeGMV bool
	maxPages   int
	pageDelay  time.Duration
}

func newBackfillCmd() *cobra.Command {
	var f backfillFlags

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Synchronize one date window and print the summary",
		Example: `  syncer backfill --variant private --start 01/01/2024 --end 01/31/2024
  syncer backfill --variant public --start 01/01/2024 --end 01/07/2024 --limit 500 --include-gmv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			variant, err := domain.ParseVariant(f.variant)
			if err != nil {
				return err
			}

			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			req := backfillRequest(f, variant, a.cfg.Growi.Credential(variant))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := a.syncer.Sync(ctx, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVar(&f.variant, "variant", string(domain.VariantPrivate), "growi endpoint: private or public")
	cmd.Flags().StringVar(&f.start, "start", "", "first day of the window (MM/DD/YYYY)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day of the window (MM/DD/YYYY)")
	cmd.Flags().IntVar(&f.perPage, "per-page", 0, "page size (default: the variant's maximum)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "public endpoint row limit (default: per-page)")
	cmd.Flags().BoolVar(&f.includeGMV, "include-gmv", false, "request GMV from the public endpoint")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "stop after this many pages (0: no limit)")
	cmd.Flags().DurationVar(&f.pageDelay, "page-delay", 0, "pause between pages (default: the variant's rate limit delay)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func backfillRequest(f backfillFlags, variant domain.Variant, credential domain.Credential) domain.SyncRequest {
	perPage := f.perPage
	if perPage == 0 {
		perPage = growi.MaxPerPage(variant)
	}
	pageDelay := f.pageDelay
	if pageDelay == 0 {
		pageDelay = growi.DefaultPageDelay(variant)
	}

	return domain.SyncRequest{
		Variant:    variant,
		Credential: credential,
		StartDate:  f.start,
		EndDate:    f.end,
		PerPage:    perPage,
		Limit:      f.limit,
		IncludeGMV: f.includeGMV,
		MaxPages:   f.maxPages,
		PageDelay:  pageDelay,
	}
}
