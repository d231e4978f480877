package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/reviewcrawl/dates"
	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/page"
	"github.com/use-agent/reviewcrawl/simhash"
)

// LoadMoreSelectors locate review cards and the control that appends more.
type LoadMoreSelectors struct {
	Card    page.Selector
	Rating  page.Selector
	Date    page.Selector
	Comment page.Selector

	// LoadMore is tried first. When it finds nothing, every LoadMoreButton
	// whose text contains LoadMoreText is a candidate.
	LoadMore       page.Selector
	LoadMoreButton page.Selector
	LoadMoreText   string

	// Consent is an optional cookie banner button clicked after navigation.
	Consent page.Selector
}

// RatingAttrs are read in order from the rating element.
var RatingAttrs = []string{"score", "rating"}

// DefaultCardDrift is the largest SimHash distance at which a re-read card
// still counts as the card read earlier.
const DefaultCardDrift = 10

// LoadMoreStrategy reads every rendered card by position and clicks a
// "load more" control to append the next page. Card positions are stable
// only while the site appends rather than replaces. Each pass re-reads the
// last processed card and compares its fingerprint, so a replaced list shows
// up in the logs without re-reading the whole list.
type LoadMoreStrategy struct {
	URL         string
	Selectors   LoadMoreSelectors
	Policy      models.AcceptPolicy
	SettleDelay time.Duration
	// ScrollDelay is the pause between scrolling the control into view and
	// clicking it.
	ScrollDelay time.Duration
	LoadDelay   time.Duration
	ConsentWait time.Duration
	// Normalizer rewrites dates when non-nil.
	Normalizer *dates.Normalizer
	// CardDrift is the SimHash distance tolerated when the boundary card is
	// re-read. Lazily hydrated text moves the fingerprint a little.
	CardDrift int
	Logger    *slog.Logger

	// next is the number of cards processed so far; cards are read in order.
	next     int
	boundary uint64
	years    dates.YearContext
}

// NewLoadMoreStrategy returns a strategy with nothing processed yet.
func NewLoadMoreStrategy(url string, sel LoadMoreSelectors, settle, load time.Duration, norm *dates.Normalizer, log *slog.Logger) *LoadMoreStrategy {
	if log == nil {
		log = slog.Default()
	}
	s := &LoadMoreStrategy{
		URL:         url,
		Selectors:   sel,
		Policy:      models.RequireCommentOrRating,
		SettleDelay: settle,
		ScrollDelay: time.Second,
		LoadDelay:   load,
		ConsentWait: time.Second,
		Normalizer:  norm,
		CardDrift:   DefaultCardDrift,
		Logger:      log,
	}
	if norm != nil {
		s.years = dates.NewYearContext(norm.Anchor())
	}
	return s
}

// Processed reports whether the card at index i has been read.
func (s *LoadMoreStrategy) Processed(i int) bool {
	return i >= 0 && i < s.next
}

// Years is the current year context used for month-day dates.
func (s *LoadMoreStrategy) Years() dates.YearContext { return s.years }

func (s *LoadMoreStrategy) Open(ctx context.Context, p page.Page) error {
	s.Logger.Info("navigating", "url", s.URL)
	if err := p.Navigate(ctx, s.URL); err != nil {
		return err
	}
	if err := p.Wait(ctx, s.SettleDelay); err != nil {
		return err
	}

	if s.Selectors.Consent.IsZero() {
		return nil
	}
	buttons, err := p.Find(ctx, s.Selectors.Consent)
	if err != nil {
		return err
	}
	btn := page.First(buttons)
	if btn == nil {
		s.Logger.Info("no cookie popup found")
		return nil
	}
	if err := btn.Click(); err != nil {
		s.Logger.Info("cookie popup click failed", "error", err)
		return nil
	}
	s.Logger.Info("accepted cookie popup")
	return p.Wait(ctx, s.ConsentWait)
}

func (s *LoadMoreStrategy) ExtractBatch(ctx context.Context, p page.Page) (Batch, error) {
	var batch Batch
	cards, err := p.Find(ctx, s.Selectors.Card)
	if err != nil {
		return batch, fmt.Errorf("locate review cards: %w", err)
	}

	if err := s.checkReplaced(cards); err != nil {
		return batch, err
	}

	for i := s.next; i < len(cards); i++ {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		raw, err := s.read(cards[i])
		if err != nil {
			return batch, fmt.Errorf("review card %d: %w", i, err)
		}
		rec := raw
		if s.Normalizer != nil {
			rec.Date, s.years = s.Normalizer.Normalize(raw.Date, s.years)
		}

		batch.Seen++
		if s.Policy.Accepts(rec) {
			s.Logger.Debug("review extracted", "index", i+1, "rating", rec.Rating, "date", rec.Date)
			batch.Records = append(batch.Records, rec)
		} else {
			batch.Skipped++
		}
		s.boundary = cardFingerprint(raw)
		s.next = i + 1
	}
	return batch, nil
}

// read extracts the raw fields of a card. Missing fields are "".
func (s *LoadMoreStrategy) read(card page.Element) (models.Review, error) {
	var rec models.Review

	ratings, err := card.Find(s.Selectors.Rating)
	if err != nil {
		return rec, err
	}
	if el := page.First(ratings); el != nil {
		for _, attr := range RatingAttrs {
			v, ok, err := el.Attr(attr)
			if err != nil {
				return rec, err
			}
			if ok && v != "" {
				rec.Rating = v
				break
			}
		}
	}

	if rec.Date, err = page.FirstText(card, s.Selectors.Date); err != nil {
		return rec, err
	}
	if rec.Comment, err = page.FirstText(card, s.Selectors.Comment); err != nil {
		return rec, err
	}
	return rec, nil
}

// checkReplaced re-reads only the last processed card. A shorter list or a
// boundary card that drifted past CardDrift means the site re-rendered the
// list. Index based dedupe still holds, so this only warns.
func (s *LoadMoreStrategy) checkReplaced(cards []page.Element) error {
	if s.next == 0 {
		return nil
	}
	if len(cards) < s.next {
		s.Logger.Warn("review list shrank below the processed count, list was replaced rather than appended",
			"processed", s.next,
			"cards", len(cards),
		)
		return nil
	}

	i := s.next - 1
	raw, err := s.read(cards[i])
	if err != nil {
		return fmt.Errorf("re-read review card %d: %w", i, err)
	}
	got := cardFingerprint(raw)
	if simhash.Similar(got, s.boundary, s.CardDrift) {
		return nil
	}
	s.Logger.Warn("review card changed at a processed index, list was replaced rather than appended",
		"index", i,
		"distance", simhash.Distance(got, s.boundary),
	)
	s.boundary = got
	return nil
}

func cardFingerprint(r models.Review) uint64 {
	return simhash.Of(r.Rating, r.Date, r.Comment)
}

// Advance finds the load-more control, scrolls it into view and clicks it
// through script. Any failure is reported once; the runner treats it as the
// end of content.
func (s *LoadMoreStrategy) Advance(ctx context.Context, p page.Page) (bool, error) {
	btn, err := s.findLoadMore(ctx, p)
	if err != nil {
		return false, err
	}
	if btn == nil {
		return false, nil
	}
	if err := btn.ScrollIntoView(); err != nil {
		return false, fmt.Errorf("scroll load more into view: %w", err)
	}
	if err := p.Wait(ctx, s.ScrollDelay); err != nil {
		return false, err
	}
	if err := btn.Click(); err != nil {
		return false, fmt.Errorf("click load more: %w", err)
	}
	s.Logger.Info("clicked load more")
	return true, p.Wait(ctx, s.LoadDelay)
}

func (s *LoadMoreStrategy) findLoadMore(ctx context.Context, p page.Page) (page.Element, error) {
	if !s.Selectors.LoadMore.IsZero() {
		found, err := p.Find(ctx, s.Selectors.LoadMore)
		if err != nil {
			return nil, err
		}
		if btn := page.First(found); btn != nil {
			return btn, nil
		}
	}
	if s.Selectors.LoadMoreButton.IsZero() || s.Selectors.LoadMoreText == "" {
		return nil, nil
	}
	candidates, err := p.Find(ctx, s.Selectors.LoadMoreButton)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		text, err := c.Text()
		if err != nil {
			return nil, err
		}
		if strings.Contains(text, s.Selectors.LoadMoreText) {
			return c, nil
		}
	}
	return nil, nil
}
