package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/spf13/cobra"
)

func newBackfillCommand() *cobra.Command {
	var (
		opts   services.BackfillOptions
		window time.Duration
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Classify complaints and ratings that have no sentiment event",
		Long: `Scans complaints, then ratings, that have no sentiment event and runs each
through the pipeline. Safe to interrupt and re-run; only one backfill runs at a time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if window > 0 {
				opts.Since = time.Now().UTC().Add(-window)
			}
			report, err := services.NewBackfillService(e.db, e.pipeline, e.cfg.Sentiment).Run(ctx, opts)
			if errors.Is(err, services.ErrJobRunning) {
				return fmt.Errorf("another backfill holds the lease: %w", err)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().UintVar(&opts.BrandID, "brand", 0, "only process this brand")
	cmd.Flags().IntVar(&opts.MaxItems, "max", 0, "stop after this many items (0 means no cap)")
	cmd.Flags().DurationVar(&window, "window", 0, "only scan records created within this long ago (0 means all history)")
	return cmd
}

func newRecomputeCommand() *cobra.Command {
	var (
		brandID uint
		day     string
		days    int
	)

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild daily sentiment rollups from stored events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if brandID == 0 {
				return errors.New("--brand is required")
			}
			end := time.Now().UTC()
			if day != "" {
				d, err := time.ParseInLocation("2006-01-02", day, time.UTC)
				if err != nil {
					return fmt.Errorf("--day must be YYYY-MM-DD: %w", err)
				}
				end = d
				if !cmd.Flags().Changed("days") {
					days = 1
				}
			}
			if days <= 0 {
				return errors.New("--days must be positive")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			aggregator := services.NewAggregator(db, nil)

			rows := make([]*models.BrandSentimentDaily, 0, days)
			start := services.BucketDay(end).AddDate(0, 0, -(days - 1))
			for i := 0; i < days; i++ {
				row, err := aggregator.RecomputeBucket(cmd.Context(), brandID, start.AddDate(0, 0, i))
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
			return printJSON(cmd, rows)
		},
	}
	cmd.Flags().UintVar(&brandID, "brand", 0, "brand id")
	cmd.Flags().StringVar(&day, "day", "", "last UTC day to rebuild (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&days, "days", 1, "number of days ending at --day to rebuild")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
