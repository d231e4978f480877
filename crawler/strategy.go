// Package crawler runs site-specific review extraction against a page.Page.
package crawler

import (
	"context"

	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/page"
)

// Strategy is the site-specific half of the extraction loop. The Runner owns
// control flow; a Strategy owns its cursor and knows its site's markup.
type Strategy interface {
	// Open navigates to the review listing and dismisses overlays.
	Open(ctx context.Context, p page.Page) error

	// ExtractBatch reads every item not yet seen. On error the returned
	// Batch still carries the records accepted before the failure.
	ExtractBatch(ctx context.Context, p page.Page) (Batch, error)

	// Advance triggers more content. It returns false when the page has no
	// loading control left.
	Advance(ctx context.Context, p page.Page) (bool, error)
}

// Batch is the outcome of one ExtractBatch pass.
type Batch struct {
	// Records are the newly accepted reviews, in page order.
	Records []models.Review
	// Seen counts new items visited, accepted or not.
	Seen int
	// Skipped counts new items rejected by the acceptance policy.
	Skipped int
}
