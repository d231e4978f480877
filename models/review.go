package models

// Review is a single extracted review row.
type Review struct {
	// Rating is the site-native rating: free text, a numeric score or empty.
	Rating string `json:"rating"`

	// Date is either the raw display text or a normalized "YYYY.MM.DD." string,
	// depending on the site.
	Date string `json:"date"`

	// Comment is the review body. It may be empty when only a rating was given.
	Comment string `json:"comment"`
}

// Columns is the fixed header used by every checkpoint file.
var Columns = []string{"rating", "date", "comment"}

// Row returns the record in Columns order.
func (r Review) Row() []string {
	return []string{r.Rating, r.Date, r.Comment}
}

// AcceptPolicy decides whether an extracted record is worth keeping.
type AcceptPolicy int

const (
	// RequireComment keeps records with a non-empty comment.
	RequireComment AcceptPolicy = iota

	// RequireCommentOrRating keeps records with a comment or a rating.
	RequireCommentOrRating
)

// Accepts reports whether r satisfies the policy. Records without both a
// comment and a rating are never accepted.
func (p AcceptPolicy) Accepts(r Review) bool {
	switch p {
	case RequireCommentOrRating:
		return r.Comment != "" || r.Rating != ""
	default:
		return r.Comment != ""
	}
}

func (p AcceptPolicy) String() string {
	switch p {
	case RequireCommentOrRating:
		return "comment_or_rating"
	default:
		return "comment"
	}
}
