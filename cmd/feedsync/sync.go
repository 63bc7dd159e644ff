package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pellelindal/FEEDJetshop/pkg/metrics"
	"github.com/pellelindal/FEEDJetshop/pkg/statestore"
	"github.com/pellelindal/FEEDJetshop/pkg/sync"
)

var (
	syncSince     string
	syncProductNo string
	syncLimit     int
	syncDryRun    bool
	syncSchedule  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass (or on a schedule)",
	Long: `Run a synchronization pass: fetch products changed since the
last successful run, build the desired destination state from the
mapping, diff against the destination and write only what differs.

Examples:
  # Incremental run from the stored checkpoint
  feedsync sync

  # Preview changes for one product without writing
  feedsync sync --product-no P-100 --dry-run

  # Recurring runs every 15 minutes
  feedsync sync --schedule "*/15 * * * *"`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSince, "since", "",
		"Export-from timestamp override (default: stored checkpoint)")
	syncCmd.Flags().StringVar(&syncProductNo, "product-no", "",
		"Restrict the run to a single product number")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0,
		"Maximum number of products to process (0 = no limit)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false,
		"Compute and persist diffs without writing to the destination")
	syncCmd.Flags().StringVar(&syncSchedule, "schedule", "",
		"Cron expression for recurring runs (env: SYNC_SCHEDULE; empty = run once)")
}

func runSync(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	engine := sync.NewEngine(
		rt.mapping,
		newFeedClient(rt),
		newJetshopClient(rt),
		statestore.New(rt.cfg.Sync.StateDir),
		m,
		rt.logger,
	)
	opts := sync.Options{
		DryRun:     syncDryRun,
		ProductNo:  syncProductNo,
		Limit:      syncLimit,
		ExportFrom: syncSince,
		DiffDir:    rt.cfg.Sync.DiffDir,
	}

	schedule := syncSchedule
	if schedule == "" {
		schedule = rt.cfg.Sync.Schedule
	}

	g, ctx := errgroup.WithContext(ctx)
	if rt.cfg.Metrics.Port > 0 {
		server := metrics.NewServer(fmt.Sprintf(":%d", rt.cfg.Metrics.Port), registry, rt.logger)
		g.Go(func() error { return server.Start(ctx) })
	}

	if schedule == "" {
		g.Go(func() error {
			defer stop()
			report, err := engine.Run(ctx, opts)
			if err != nil {
				return err
			}
			printSummary(report)
			if report.Counts.Failed > 0 {
				return fmt.Errorf("%d products failed", report.Counts.Failed)
			}
			return nil
		})
		return g.Wait()
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = scheduler.AddFunc(schedule, func() {
		report, err := engine.Run(ctx, opts)
		if err != nil {
			rt.logger.Error("scheduled run failed", "error", err)
			return
		}
		printSummary(report)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	rt.logger.Info("scheduler started", "schedule", schedule)
	scheduler.Start()
	g.Go(func() error {
		<-ctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	return g.Wait()
}

func printSummary(report *sync.Report) {
	fmt.Fprintf(os.Stdout,
		"run %s: processed=%d updated=%d deleted=%d skipped=%d no_change=%d dry_run=%d failed=%d\n",
		report.RunID,
		report.Counts.Processed,
		report.Counts.Updated,
		report.Counts.Deleted,
		report.Counts.Skipped,
		report.Counts.NoChange,
		report.Counts.DryRun,
		report.Counts.Failed)
}
