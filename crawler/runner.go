package crawler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/page"
)

// Runner drives a Strategy through the states
//
//	SCANNING -> LOADING_MORE -> SCANNING ... -> EXHAUSTED | FAILED
//
// Termination does not depend on the page misbehaving politely: a pass that
// sees no new items after an advance is idle, and MaxIdleAdvances
// consecutive idle passes end the run.
type Runner struct {
	Strategy Strategy
	Page     page.Page
	Buffer   *Buffer

	// MaxIdleAdvances is the number of consecutive advances allowed to
	// yield nothing before the run is EXHAUSTED. Values below 1 mean 1.
	MaxIdleAdvances int

	// MaxReviews stops the run once the buffer holds this many records.
	// Zero means unlimited.
	MaxReviews int

	Logger *slog.Logger
}

// Result summarises a finished run.
type Result struct {
	State    State
	Records  int
	Skipped  int
	Advances int
	Err      error
}

// Run opens the page through the strategy and loops until a terminal state.
// It never closes the page; the caller owns it.
func (r *Runner) Run(ctx context.Context) Result {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	maxIdle := r.MaxIdleAdvances
	if maxIdle < 1 {
		maxIdle = 1
	}

	res := Result{State: StateScanning}
	fail := func(err error, code, msg string) Result {
		if ctx.Err() != nil {
			err = models.NewCrawlError(models.ErrCodeCanceled, "run canceled", ctx.Err())
		}
		res.State = StateFailed
		res.Err = models.Categorize(err, code, msg)
		res.Records = r.Buffer.Len()
		return res
	}
	done := func() Result {
		res.State = StateExhausted
		res.Records = r.Buffer.Len()
		return res
	}

	if err := r.Strategy.Open(ctx, r.Page); err != nil {
		log.Error("failed to open review page", "error", err)
		return fail(err, models.ErrCodeNavigation, "open review page")
	}

	idle := 0
	advanced := false
	for {
		if err := ctx.Err(); err != nil {
			log.Warn("run canceled", "state", res.State.String(), "records", r.Buffer.Len())
			return fail(err, models.ErrCodeCanceled, "run canceled")
		}

		switch res.State {
		case StateScanning:
			batch, err := r.Strategy.ExtractBatch(ctx, r.Page)
			res.Skipped += batch.Skipped

			capped, addErr := r.absorb(batch.Records)
			if addErr != nil {
				log.Error("periodic checkpoint failed", "error", addErr)
				return fail(addErr, models.ErrCodeCheckpoint, "periodic checkpoint")
			}
			if err != nil {
				log.Error("extraction failed", "error", err, "records", r.Buffer.Len())
				return fail(err, models.ErrCodeExtraction, "extract reviews")
			}
			if capped {
				log.Info("review limit reached", "max_reviews", r.MaxReviews)
				return done()
			}

			if batch.Seen > 0 {
				idle = 0
			} else if advanced {
				idle++
				if idle >= maxIdle {
					log.Info("no new reviews after advancing, stopping",
						"idle_advances", idle,
						"records", r.Buffer.Len(),
					)
					return done()
				}
			}
			log.Debug("batch extracted",
				"seen", batch.Seen,
				"accepted", len(batch.Records),
				"records", r.Buffer.Len(),
			)
			res.State = StateLoadingMore

		case StateLoadingMore:
			ok, err := r.Strategy.Advance(ctx, r.Page)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return fail(err, models.ErrCodeCanceled, "run canceled")
				}
				log.Info("loading more failed, treating as end of content", "error", err)
				return done()
			}
			if !ok {
				log.Info("no loading control found, end of content", "records", r.Buffer.Len())
				return done()
			}
			res.Advances++
			advanced = true
			res.State = StateScanning
		}
	}
}

// absorb appends records to the buffer, stopping early at MaxReviews.
func (r *Runner) absorb(records []models.Review) (capped bool, err error) {
	for _, rec := range records {
		if r.MaxReviews > 0 && r.Buffer.Len() >= r.MaxReviews {
			return true, nil
		}
		if err := r.Buffer.Add(rec); err != nil {
			return false, err
		}
	}
	return r.MaxReviews > 0 && r.Buffer.Len() >= r.MaxReviews, nil
}
