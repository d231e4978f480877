// Package dates turns the relative and partial review dates shown by
// review sites into absolute "YYYY.MM.DD." strings.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout is the output format of every normalized date.
const Layout = "2006.01.02."

var (
	nowRe     = regexp.MustCompile(`(?i)^(?:just\s+)?now$`)
	hoursRe   = regexp.MustCompile(`(?i)\b\d+\s*(?:m|mins?|minutes?|h|hrs?|hours?)\b`)
	daysRe    = regexp.MustCompile(`(?i)\b(\d+)\s*(?:d|days?)\b`)
	badgeRe   = regexp.MustCompile(`(?i)verified|super\s+reviewer`)
	yearRe    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	monthDays = []string{"Jan 2", "January 2"}
	fullDates = []string{"Jan 2, 2006", "January 2, 2006", "Jan 2 2006"}
)

// YearContext is the year state threaded through successive Normalize calls
// for one site's review stream.
type YearContext struct {
	// CurrentYear stamps "Mon Day" dates that omit the year.
	CurrentYear int

	// LastMonth is the month of the previous "Mon Day" date, or 0.
	LastMonth time.Month
}

// NewYearContext starts a context in the anchor's year.
func NewYearContext(anchor time.Time) YearContext {
	return YearContext{CurrentYear: anchor.Year()}
}

// Observe is the year-rollover transition for a newest-first stream: a jump
// forward of more than six months (e.g. Jan -> Dec) means the stream crossed
// into the previous calendar year.
func (yc YearContext) Observe(m time.Month) YearContext {
	if yc.LastMonth != 0 && int(m) > int(yc.LastMonth)+6 {
		yc.CurrentYear--
	}
	yc.LastMonth = m
	return yc
}

// Normalizer resolves raw date tokens against an anchor date.
type Normalizer struct {
	clock    Clock
	rollover bool
}

// NewNormalizer creates a Normalizer. When rollover is false the year
// context is never decremented and every "Mon Day" date is stamped with
// the caller's CurrentYear.
func NewNormalizer(clock Clock, rollover bool) *Normalizer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Normalizer{clock: clock, rollover: rollover}
}

// Anchor returns today's date (midnight) according to the clock.
func (n *Normalizer) Anchor() time.Time {
	now := n.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// Normalize converts raw into a "YYYY.MM.DD." string. It never fails:
// unrecognised input comes back as "<CurrentYear>.<raw>". Empty input
// stays empty.
func (n *Normalizer) Normalize(raw string, yc YearContext) (string, YearContext) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return "", yc
	}
	anchor := n.Anchor()

	if nowRe.MatchString(s) || hoursRe.MatchString(s) {
		return anchor.Format(Layout), yc
	}

	if m := daysRe.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil {
			return anchor.AddDate(0, 0, -days).Format(Layout), yc
		}
	}

	s = strings.Join(strings.Fields(badgeRe.ReplaceAllString(s, "")), " ")

	for _, layout := range fullDates {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(Layout), yc
		}
	}

	// Anything else carrying a year (ISO stamps, "03/04/2024") is left to
	// dateparse. Without a year it would guess one, so it is not consulted.
	if yearRe.MatchString(s) {
		if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return t.Format(Layout), yc
		}
	}

	for _, layout := range monthDays {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		next := yc
		if n.rollover {
			next = yc.Observe(t.Month())
		}
		d := time.Date(next.CurrentYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if d.Day() != t.Day() {
			// Feb 29 outside a leap year.
			break
		}
		return d.Format(Layout), next
	}

	return fmt.Sprintf("%d.%s", yc.CurrentYear, s), yc
}
