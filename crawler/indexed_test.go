package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/reviewcrawl/page"
)

func newNaverStrategy() *IndexedStrategy {
	site := zeroDelays(NaverMovieSite())
	return site.NewStrategy(site, StrategyDeps{}).(*IndexedStrategy)
}

func TestIndexedOpenClicksReveal(t *testing.T) {
	p := naverPage(t, naverItems(1, "a"))
	s := newNaverStrategy()

	require.NoError(t, s.Open(context.Background(), p))
	assert.Equal(t, []string{NaverMovieSite().URL}, p.Visited())
	assert.Equal(t, 1, p.Clicks())
}

func TestIndexedExtractBatchAcceptsOnlyComments(t *testing.T) {
	p := naverPage(t, []naverItem{
		{Rating: "10", Date: "2026.01.18. 21:07", Comment: "재밌어요"},
		{Rating: "9", Date: "2026.01.18. 20:00"},
		{Comment: "no rating or date"},
	})
	s := newNaverStrategy()

	batch, err := s.ExtractBatch(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Seen)
	assert.Equal(t, 1, batch.Skipped)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, "10", batch.Records[0].Rating)
	assert.Equal(t, "2026.01.18. 21:07", batch.Records[0].Date, "dates stay raw")
	assert.Equal(t, "재밌어요", batch.Records[0].Comment)
	assert.Equal(t, "", batch.Records[1].Rating)
	assert.Equal(t, "", batch.Records[1].Date)
	for _, r := range batch.Records {
		assert.NotEmpty(t, r.Comment)
	}
	assert.Equal(t, 4, s.Cursor())
}

func TestIndexedCursorNeverRescans(t *testing.T) {
	p := naverPage(t, naverItems(3, "a"), naverItems(2, "b"))
	s := newNaverStrategy()
	ctx := context.Background()

	first, err := s.ExtractBatch(ctx, p)
	require.NoError(t, err)
	assert.Len(t, first.Records, 3)

	again, err := s.ExtractBatch(ctx, p)
	require.NoError(t, err)
	assert.Zero(t, again.Seen)

	ok, err := s.Advance(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	next, err := s.ExtractBatch(ctx, p)
	require.NoError(t, err)
	require.Len(t, next.Records, 2)
	assert.Equal(t, "b review 1", next.Records[0].Comment)
	assert.Equal(t, 6, s.Cursor())
}

func TestIndexedAdvanceWithoutContainer(t *testing.T) {
	s := newNaverStrategy()
	s.Selectors.ScrollContainer = page.CSS(".not-there")
	p := naverPage(t, nil)

	ok, err := s.Advance(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, p.Scrolls())
}
