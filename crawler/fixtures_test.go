package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/reviewcrawl/dates"
	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/snapshot"
)

var anchor = time.Date(2026, time.January, 19, 15, 4, 0, 0, time.UTC)

type naverItem struct {
	Rating, Date, Comment string
}

func naverItems(n int, prefix string) []naverItem {
	items := make([]naverItem, n)
	for i := range items {
		items[i] = naverItem{
			Rating:  fmt.Sprintf("%d", i%10+1),
			Date:    "2026.01.10. 12:00",
			Comment: fmt.Sprintf("%s review %d", prefix, i+1),
		}
	}
	return items
}

func naverLi(it naverItem) string {
	var b strings.Builder
	b.WriteString("<li>")
	if it.Rating != "" {
		fmt.Fprintf(&b, `<div class="area_text_box">%s</div>`, html.EscapeString(it.Rating))
	}
	if it.Date != "" {
		fmt.Fprintf(&b, `<dl class="cm_upload_info"><dt>작성일</dt><dd class="this_text_normal">%s</dd></dl>`, html.EscapeString(it.Date))
	}
	if it.Comment != "" {
		fmt.Fprintf(&b, `<span class="desc _text">%s</span>`, html.EscapeString(it.Comment))
	}
	b.WriteString("</li>")
	return b.String()
}

// naverPage renders the first page and appends one queued page per scroll.
func naverPage(t *testing.T, first []naverItem, more ...[]naverItem) *snapshot.Page {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<html><body><button class="btn_area_auto" title="스포일러">스포일러</button>`)
	b.WriteString(`<div class="lego_review_list _scroller"><ul>`)
	for _, it := range first {
		b.WriteString(naverLi(it))
	}
	b.WriteString(`</ul></div></body></html>`)

	p, err := snapshot.New(b.String())
	require.NoError(t, err)
	p.OnScroll = func(doc *goquery.Document, _ *goquery.Selection) error {
		if len(more) == 0 {
			return nil
		}
		var page strings.Builder
		for _, it := range more[0] {
			page.WriteString(naverLi(it))
		}
		more = more[1:]
		doc.Find(".lego_review_list ul").AppendHtml(page.String())
		return nil
	}
	return p
}

type rtCard struct {
	Score, RatingAttr, Date, Comment string
}

func rtCards(n int, prefix string) []rtCard {
	cards := make([]rtCard, n)
	for i := range cards {
		cards[i] = rtCard{
			Score:   fmt.Sprintf("%.1f", float64(i%5)+1),
			Date:    "Jan 8",
			Comment: fmt.Sprintf("%s card %d", prefix, i+1),
		}
	}
	return cards
}

func rtCardHTML(c rtCard) string {
	var b strings.Builder
	b.WriteString("<review-card>")
	switch {
	case c.Score != "":
		fmt.Fprintf(&b, `<rating-stars-group slot="rating" score="%s"></rating-stars-group>`, c.Score)
	case c.RatingAttr != "":
		fmt.Fprintf(&b, `<rating-stars-group slot="rating" rating="%s"></rating-stars-group>`, c.RatingAttr)
	default:
		b.WriteString(`<rating-stars-group slot="rating"></rating-stars-group>`)
	}
	if c.Date != "" {
		fmt.Fprintf(&b, `<span slot="timestamp">%s</span>`, html.EscapeString(c.Date))
	}
	if c.Comment != "" {
		fmt.Fprintf(&b, `<drawer-more><span slot="content">%s</span></drawer-more>`, html.EscapeString(c.Comment))
	}
	b.WriteString("</review-card>")
	return b.String()
}

const (
	primaryLoadMore  = `<rt-button data-pagemediareviewsmanager="loadMoreBtn:click">Load More</rt-button>`
	fallbackLoadMore = `<rt-button theme="transparent">Load More Reviews</rt-button>`
)

// rtPage renders the first cards plus button markup and appends one queued
// page of cards per click on the button.
func rtPage(t *testing.T, button string, first []rtCard, more ...[]rtCard) *snapshot.Page {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<html><body><div id="onetrust-banner"><button id="onetrust-accept-btn-handler">Continue</button></div>`)
	b.WriteString(`<div id="cards">`)
	for _, c := range first {
		b.WriteString(rtCardHTML(c))
	}
	b.WriteString(`</div><rt-button theme="simplified">Sign In</rt-button>`)
	b.WriteString(button)
	b.WriteString(`</body></html>`)

	p, err := snapshot.New(b.String())
	require.NoError(t, err)
	p.OnClick = func(doc *goquery.Document, target *goquery.Selection) error {
		if target.Is("#onetrust-accept-btn-handler") {
			doc.Find("#onetrust-banner").Remove()
			return nil
		}
		if len(more) == 0 {
			return nil
		}
		var page strings.Builder
		for _, c := range more[0] {
			page.WriteString(rtCardHTML(c))
		}
		more = more[1:]
		doc.Find("#cards").AppendHtml(page.String())
		return nil
	}
	return p
}

// memCheckpointer records every flush.
type memCheckpointer struct {
	flushes [][]models.Review
	err     error
}

func (m *memCheckpointer) Flush(filename string, records []models.Review) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	snap := make([]models.Review, len(records))
	copy(snap, records)
	m.flushes = append(m.flushes, snap)
	return "/mem/" + filename, nil
}

var errBoom = errors.New("boom")

func testNormalizer() *dates.Normalizer {
	return dates.NewNormalizer(dates.FixedClock{T: anchor}, false)
}

// captureLogger returns a debug-level text logger writing into buf.
func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func zeroDelays(s Site) Site {
	s.SettleDelay = 0
	s.LoadDelay = 0
	return s
}
