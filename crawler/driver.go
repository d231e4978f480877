package crawler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/reviewcrawl/dates"
	"github.com/use-agent/reviewcrawl/page"
	"github.com/use-agent/reviewcrawl/webhook"
)

// SessionOpener starts a fresh page for one site run.
type SessionOpener func(ctx context.Context) (page.Page, error)

// Notifier receives run events. *webhook.Notifier satisfies it, including
// as a nil pointer.
type Notifier interface {
	Notify(event webhook.Event)
}

// Driver runs the selected sites one after another, each in its own session.
type Driver struct {
	Registry *Registry
	Open     SessionOpener
	Writer   Checkpointer
	Notifier Notifier

	CheckpointEvery int
	MaxReviews      int
	// Normalizer is passed to strategies that normalize dates; nil disables.
	Normalizer *dates.Normalizer

	Logger *slog.Logger
}

// Run crawls ids sequentially. A session that cannot be opened aborts the
// whole run with that error. A crawl that ends FAILED is logged and the
// next site still runs; only final-save failures are collected and joined.
func (d *Driver) Run(ctx context.Context, ids []string) error {
	sites, err := d.Registry.Resolve(ids)
	if err != nil {
		return err
	}

	var errs []error
	for i, site := range sites {
		if ctx.Err() != nil {
			d.logger().Warn("run canceled, skipping remaining crawlers", "skipped", len(sites)-i)
			break
		}
		if _, err := d.RunSite(ctx, site); err != nil {
			if isFatal(err) {
				return errors.Join(append(errs, err)...)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunSite performs one complete site run: open, crawl, final save, close.
// The session is closed on every path once it has been opened.
func (d *Driver) RunSite(ctx context.Context, site Site) (Result, error) {
	runID := uuid.NewString()
	log := d.logger().With("site", site.ID, "run_id", runID)
	start := time.Now()

	log.Info("starting crawler", "url", site.URL)
	p, err := d.Open(ctx)
	if err != nil {
		log.Error("failed to open browser session", "error", err)
		return Result{State: StateFailed, Err: err}, &fatalError{err: err}
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("failed to close session", "error", err)
		}
	}()

	buf := NewBuffer(d.Writer, site.Filename, d.CheckpointEvery, log)
	buf.OnFlush(func(path string, n int) {
		d.notify(webhook.Event{
			Type:  webhook.EventCheckpoint,
			RunID: runID,
			Site:  site.ID,
			Data:  webhook.CheckpointData{Path: path, Records: n},
		})
	})

	runner := &Runner{
		Strategy:        site.NewStrategy(site, StrategyDeps{Normalizer: d.Normalizer, Logger: log}),
		Page:            p,
		Buffer:          buf,
		MaxIdleAdvances: site.MaxIdleAdvances,
		MaxReviews:      d.MaxReviews,
		Logger:          log,
	}
	res := runner.Run(ctx)
	if res.State == StateFailed {
		log.Error("crawler stopped on failure", "error", res.Err, "records", res.Records)
	}

	path, saveErr := buf.Save()
	data := webhook.RunData{
		Path:     path,
		Records:  buf.Len(),
		Skipped:  res.Skipped,
		State:    res.State.String(),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	eventType := webhook.EventCompleted
	switch {
	case saveErr != nil:
		eventType = webhook.EventFailed
		data.Error = saveErr.Error()
	case res.Err != nil:
		eventType = webhook.EventFailed
		data.Error = res.Err.Error()
	}
	d.notify(webhook.Event{Type: eventType, RunID: runID, Site: site.ID, Data: data})

	if saveErr != nil {
		log.Error("final save failed", "error", saveErr)
		return res, saveErr
	}
	log.Info("crawler finished",
		"state", res.State.String(),
		"records", buf.Len(),
		"skipped", res.Skipped,
		"advances", res.Advances,
		"checkpoints", buf.Flushes(),
		"path", path,
		"duration", data.Duration,
	)
	return res, nil
}

func (d *Driver) notify(ev webhook.Event) {
	if d.Notifier != nil {
		d.Notifier.Notify(ev)
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// fatalError marks a failure that ends the whole multi-site run.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func isFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
