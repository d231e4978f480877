package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/page"
)

// IndexedSelectors locate review items by 1-based ordinal position.
type IndexedSelectors struct {
	// Item must contain one %d verb for the ordinal.
	Item            page.Selector
	Comment         page.Selector
	Rating          page.Selector
	Date            page.Selector
	ScrollContainer page.Selector
	// Reveal is an optional button clicked once after navigation.
	Reveal page.Selector
}

// IndexedStrategy walks a list whose items are addressed by position and
// which grows when its scroll container reaches the bottom.
type IndexedStrategy struct {
	URL         string
	Selectors   IndexedSelectors
	Policy      models.AcceptPolicy
	SettleDelay time.Duration
	LoadDelay   time.Duration
	Logger      *slog.Logger

	cursor int
}

// NewIndexedStrategy returns a strategy positioned at the first item.
func NewIndexedStrategy(url string, sel IndexedSelectors, settle, load time.Duration, log *slog.Logger) *IndexedStrategy {
	if log == nil {
		log = slog.Default()
	}
	return &IndexedStrategy{
		URL:         url,
		Selectors:   sel,
		Policy:      models.RequireComment,
		SettleDelay: settle,
		LoadDelay:   load,
		Logger:      log,
		cursor:      1,
	}
}

// Cursor is the ordinal of the next item to read. It never decreases.
func (s *IndexedStrategy) Cursor() int { return s.cursor }

func (s *IndexedStrategy) Open(ctx context.Context, p page.Page) error {
	s.Logger.Info("navigating", "url", s.URL)
	if err := p.Navigate(ctx, s.URL); err != nil {
		return err
	}
	if err := p.Wait(ctx, s.SettleDelay); err != nil {
		return err
	}

	if s.Selectors.Reveal.IsZero() {
		return nil
	}
	buttons, err := p.Find(ctx, s.Selectors.Reveal)
	if err != nil {
		return err
	}
	btn := page.First(buttons)
	if btn == nil {
		s.Logger.Info("no reveal button found or already expanded")
		return nil
	}
	if err := btn.Click(); err != nil {
		s.Logger.Info("reveal button click failed", "error", err)
		return nil
	}
	s.Logger.Info("clicked reveal button")
	return nil
}

func (s *IndexedStrategy) ExtractBatch(ctx context.Context, p page.Page) (Batch, error) {
	var batch Batch
	for {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		items, err := p.Find(ctx, s.Selectors.Item.Format(s.cursor))
		if err != nil {
			return batch, fmt.Errorf("locate review %d: %w", s.cursor, err)
		}
		item := page.First(items)
		if item == nil {
			return batch, nil
		}

		rec, err := s.extract(item)
		if err != nil {
			return batch, fmt.Errorf("review %d: %w", s.cursor, err)
		}
		batch.Seen++
		if s.Policy.Accepts(rec) {
			s.Logger.Debug("review extracted", "index", s.cursor, "rating", rec.Rating, "date", rec.Date)
			batch.Records = append(batch.Records, rec)
		} else {
			batch.Skipped++
		}
		s.cursor++
	}
}

func (s *IndexedStrategy) extract(item page.Element) (models.Review, error) {
	var (
		rec models.Review
		err error
	)
	if rec.Comment, err = page.FirstText(item, s.Selectors.Comment); err != nil {
		return rec, err
	}
	if rec.Rating, err = page.FirstText(item, s.Selectors.Rating); err != nil {
		return rec, err
	}
	if rec.Date, err = page.FirstText(item, s.Selectors.Date); err != nil {
		return rec, err
	}
	return rec, nil
}

// Advance scrolls the list container to its end and waits for the lazy
// loader. A missing container means there is nothing left to load.
func (s *IndexedStrategy) Advance(ctx context.Context, p page.Page) (bool, error) {
	containers, err := p.Find(ctx, s.Selectors.ScrollContainer)
	if err != nil {
		return false, err
	}
	c := page.First(containers)
	if c == nil {
		return false, nil
	}
	if err := c.ScrollToBottom(); err != nil {
		return false, fmt.Errorf("scroll review list: %w", err)
	}
	return true, p.Wait(ctx, s.LoadDelay)
}
