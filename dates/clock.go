package dates

import (
	"fmt"
	"time"
)

// Clock supplies the crawl's notion of "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// anchorLayout is the accepted form for a pinned anchor date.
const anchorLayout = "2006-01-02"

// ClockFor returns a FixedClock pinned to anchor ("YYYY-MM-DD") in loc,
// or SystemClock when anchor is empty.
func ClockFor(anchor string, loc *time.Location) (Clock, error) {
	if anchor == "" {
		return SystemClock{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(anchorLayout, anchor, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor date %q (want %s): %w", anchor, anchorLayout, err)
	}
	return FixedClock{T: t}, nil
}
