package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/reviewcrawl/checkpoint"
	"github.com/use-agent/reviewcrawl/config"
	"github.com/use-agent/reviewcrawl/crawler"
	"github.com/use-agent/reviewcrawl/dates"
	"github.com/use-agent/reviewcrawl/page"
	"github.com/use-agent/reviewcrawl/scraper"
	"github.com/use-agent/reviewcrawl/snapshot"
	"github.com/use-agent/reviewcrawl/webhook"
)

// webhookDrainTimeout bounds how long exit waits for pending notifications.
const webhookDrainTimeout = 15 * time.Second

func main() {
	// SIGINT/SIGTERM cancel the crawl; the final save still runs.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(run).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.maxReviewsSet {
		cfg.Crawl.MaxReviews = opts.maxReviews
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("reviewcrawl starting",
		"crawlers", opts.ids,
		"output_dir", opts.outputDir,
		"checkpoint_every", cfg.Crawl.CheckpointEvery,
		"max_reviews", cfg.Crawl.MaxReviews,
		"snapshot", opts.snapshot,
	)

	// ── 3. Site definitions ─────────────────────────────────────────
	registry := crawler.DefaultRegistry()
	if err := registry.ApplyOverrides(cfg.Sites); err != nil {
		return err
	}

	// ── 4. Date normalization ───────────────────────────────────────
	var norm *dates.Normalizer
	if cfg.Dates.Normalize {
		clock, err := dates.ClockFor(cfg.Dates.AnchorDate, time.Local)
		if err != nil {
			return err
		}
		norm = dates.NewNormalizer(clock, cfg.Dates.YearRollover)
		slog.Info("date normalization enabled",
			"anchor", norm.Anchor().Format(time.DateOnly),
			"year_rollover", cfg.Dates.YearRollover,
		)
	}

	// ── 5. Notifications ────────────────────────────────────────────
	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	defer func() {
		if !notifier.Wait(webhookDrainTimeout) {
			slog.Warn("exiting with webhook deliveries still pending")
		}
	}()

	// ── 6. Run ──────────────────────────────────────────────────────
	writer := checkpoint.NewWriter(opts.outputDir)
	slog.Info("writing checkpoints", "dir", writer.Dir(), "every", cfg.Crawl.CheckpointEvery)
	d := &crawler.Driver{
		Registry:        registry,
		Open:            opener(opts.snapshot, cfg.Browser),
		Writer:          writer,
		Notifier:        notifier,
		CheckpointEvery: cfg.Crawl.CheckpointEvery,
		MaxReviews:      cfg.Crawl.MaxReviews,
		Normalizer:      norm,
	}
	err = d.Run(ctx, opts.ids)
	slog.Info("reviewcrawl stopped")
	return err
}

// opener returns a session factory: a fresh browser per site, or the same
// saved HTML file replayed for every site.
func opener(snapshotPath string, cfg config.BrowserConfig) crawler.SessionOpener {
	if snapshotPath != "" {
		return func(context.Context) (page.Page, error) {
			return snapshot.Open(snapshotPath)
		}
	}
	return func(ctx context.Context) (page.Page, error) {
		return scraper.Open(ctx, cfg)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
