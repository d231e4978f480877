package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/reviewcrawl/page"
)

const listHTML = `<html><body>
<div class="lego_review_list _scroller">
  <ul>
    <li><span class="desc _text"> first </span><div class="area_text_box">10</div></li>
    <li><span class="desc _text">second</span></li>
  </ul>
</div>
<review-card><span slot="rating" score="4.5"></span></review-card>
</body></html>`

func TestFindCSSAndXPath(t *testing.T) {
	p, err := New(listHTML)
	require.NoError(t, err)
	ctx := context.Background()

	items, err := p.Find(ctx, page.XPath("//div[contains(@class, 'lego_review_list')]//li[2]"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	text, err := page.FirstText(items[0], page.XPath(".//span[contains(@class, '_text')]"))
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	cards, err := p.Find(ctx, page.CSS("review-card"))
	require.NoError(t, err)
	require.Len(t, cards, 1)
	ratings, err := cards[0].Find(page.CSS("[slot='rating']"))
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	score, ok, err := ratings[0].Attr("score")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4.5", score)
	_, ok, _ = ratings[0].Attr("rating")
	assert.False(t, ok)
}

func TestFindNoMatchIsEmpty(t *testing.T) {
	p, err := New(listHTML)
	require.NoError(t, err)

	els, err := p.Find(context.Background(), page.XPath("//li[99]"))
	require.NoError(t, err)
	assert.Empty(t, els)

	els, err = p.Find(context.Background(), page.CSS(".missing"))
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestTextIsTrimmed(t *testing.T) {
	p, err := New(listHTML)
	require.NoError(t, err)

	els, err := p.Find(context.Background(), page.CSS("span.desc"))
	require.NoError(t, err)
	require.Len(t, els, 2)
	text, err := els[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "first", text)
}

func TestScrollHookMutationsAreVisibleToXPath(t *testing.T) {
	p, err := New(listHTML)
	require.NoError(t, err)
	p.OnScroll = func(doc *goquery.Document, _ *goquery.Selection) error {
		doc.Find(".lego_review_list ul").AppendHtml(`<li><span class="desc _text">third</span></li>`)
		return nil
	}
	ctx := context.Background()

	scroller, err := p.Find(ctx, page.CSS(".lego_review_list._scroller"))
	require.NoError(t, err)
	require.Len(t, scroller, 1)
	require.NoError(t, scroller[0].ScrollToBottom())

	items, err := p.Find(ctx, page.XPath("//div[contains(@class, 'lego_review_list')]//li[3]"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	text, err := items[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "third", text)
	assert.Equal(t, 1, p.Scrolls())
}

func TestClickHookError(t *testing.T) {
	p, err := New(`<button id="b">go</button>`)
	require.NoError(t, err)
	boom := errors.New("boom")
	p.OnClick = func(*goquery.Document, *goquery.Selection) error { return boom }

	els, err := p.Find(context.Background(), page.CSS("#b"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.ErrorIs(t, els[0].Click(), boom)
	assert.Equal(t, 1, p.Clicks())
}

func TestNavigateWaitClose(t *testing.T) {
	p, err := New(listHTML)
	require.NoError(t, err)

	require.NoError(t, p.Navigate(context.Background(), "https://example.test/a"))
	require.NoError(t, p.Wait(context.Background(), 2*time.Second))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.Equal(t, []string{"https://example.test/a"}, p.Visited())
	assert.Equal(t, 2*time.Second, p.Waited())
	assert.Equal(t, 2, p.Closes())

	p.NavigateErr = errors.New("dns")
	assert.Error(t, p.Navigate(context.Background(), "https://example.test/b"))
}

func TestCanceledContext(t *testing.T) {
	p, err := New(listHTML)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Find(ctx, page.CSS("li"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, p.Wait(ctx, time.Second), context.Canceled)
	assert.ErrorIs(t, p.Navigate(ctx, "https://example.test"), context.Canceled)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(listHTML), 0o644))

	p, err := Open(path)
	require.NoError(t, err)
	els, err := p.Find(context.Background(), page.CSS("li"))
	require.NoError(t, err)
	assert.Len(t, els, 2)

	_, err = Open(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}
