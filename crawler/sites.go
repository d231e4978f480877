package crawler

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/use-agent/reviewcrawl/config"
	"github.com/use-agent/reviewcrawl/dates"
	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/page"
)

// Site ids accepted by the CLI.
const (
	NaverMovie     = "naver_movie"
	RottenTomatoes = "rotten_tomatoes"
)

// StrategyDeps are the run-scoped collaborators handed to a strategy.
type StrategyDeps struct {
	// Normalizer is nil when date normalization is disabled.
	Normalizer *dates.Normalizer
	Logger     *slog.Logger
}

// Site describes one review source.
type Site struct {
	ID       string
	Name     string
	Filename string
	URL      string

	// Selectors are keyed by role; the roles a site understands are
	// exactly the keys of its built-in definition.
	Selectors map[string]page.Selector

	SettleDelay     time.Duration
	LoadDelay       time.Duration
	MaxIdleAdvances int

	// NewStrategy builds a fresh strategy for one run.
	NewStrategy func(site Site, deps StrategyDeps) Strategy
}

// Registry maps site ids to definitions and keeps registration order.
type Registry struct {
	sites map[string]Site
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sites: make(map[string]Site)}
}

// DefaultRegistry holds the built-in sites.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NaverMovieSite())
	r.Register(RottenTomatoesSite())
	return r
}

// Register adds or replaces s.
func (r *Registry) Register(s Site) {
	if _, ok := r.sites[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.sites[s.ID] = s
}

// Get returns the site registered under id.
func (r *Registry) Get(id string) (Site, bool) {
	s, ok := r.sites[id]
	return s, ok
}

// IDs lists site ids in registration order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Resolve maps ids to sites, failing with INVALID_INPUT on an unknown id.
func (r *Registry) Resolve(ids []string) ([]Site, error) {
	out := make([]Site, 0, len(ids))
	for _, id := range ids {
		s, ok := r.sites[id]
		if !ok {
			return nil, models.NewCrawlError(models.ErrCodeInvalidInput,
				fmt.Sprintf("unknown crawler %q (choices: %s)", id, strings.Join(r.order, ", ")), nil)
		}
		out = append(out, s)
	}
	return out, nil
}

// ApplyOverrides merges per-site settings from the config file. Selector
// strings use the "xpath:" prefix for XPath and are validated.
func (r *Registry) ApplyOverrides(overrides map[string]config.SiteOverride) error {
	for _, id := range slices.Sorted(maps.Keys(overrides)) {
		o := overrides[id]
		s, ok := r.sites[id]
		if !ok {
			return models.NewCrawlError(models.ErrCodeInvalidInput,
				fmt.Sprintf("override for unknown site %q", id), nil)
		}

		sels := maps.Clone(s.Selectors)
		for role, raw := range o.Selectors {
			if _, known := sels[role]; !known {
				return models.NewCrawlError(models.ErrCodeInvalidInput,
					fmt.Sprintf("site %q has no selector role %q", id, role), nil)
			}
			sel, err := page.ParseSelector(raw)
			if err != nil {
				return models.NewCrawlError(models.ErrCodeInvalidInput,
					fmt.Sprintf("site %q selector %q", id, role), err)
			}
			if role == "item" && !strings.Contains(sel.Expr, "%d") {
				return models.NewCrawlError(models.ErrCodeInvalidInput,
					fmt.Sprintf("site %q item selector must contain %%d", id), nil)
			}
			sels[role] = sel
		}
		s.Selectors = sels

		if o.URL != "" {
			s.URL = o.URL
		}
		if o.SettleDelay > 0 {
			s.SettleDelay = o.SettleDelay
		}
		if o.LoadDelay > 0 {
			s.LoadDelay = o.LoadDelay
		}
		if o.MaxIdleAdvances > 0 {
			s.MaxIdleAdvances = o.MaxIdleAdvances
		}
		r.sites[id] = s
	}
	return nil
}

// NaverMovieSite is the Naver search movie-review panel: an ordinal list
// that lazy-loads when its scroll container hits the bottom.
func NaverMovieSite() Site {
	return Site{
		ID:       NaverMovie,
		Name:     "NaverMovie",
		Filename: "reviews_NaverMovie.csv",
		URL:      "https://search.naver.com/search.naver?where=nexearch&sm=tab_etc&mra=bkEw&pkid=68&os=2085555&qvt=0&query=%EC%98%81%ED%99%94%20%EC%A3%BC%ED%86%A0%ED%94%BC%EC%95%84%20%EA%B4%80%EB%9E%8C%ED%8F%89",
		Selectors: map[string]page.Selector{
			"item":             page.XPath("//div[contains(@class, 'lego_review_list')]//li[%d]"),
			"comment":          page.XPath(".//span[contains(@class, 'desc') and contains(@class, '_text')]"),
			"rating":           page.XPath(".//div[contains(@class, 'area_text_box')]"),
			"date":             page.XPath(".//dl[contains(@class, 'cm_upload_info')]//dd[contains(@class, 'this_text_normal')]"),
			"scroll_container": page.CSS(".lego_review_list._scroller"),
			"reveal":           page.XPath("//button[contains(@class, 'btn_area_auto') and @title='스포일러']"),
		},
		SettleDelay:     2 * time.Second,
		LoadDelay:       1 * time.Second,
		MaxIdleAdvances: 1,
		NewStrategy: func(site Site, deps StrategyDeps) Strategy {
			return NewIndexedStrategy(site.URL, IndexedSelectors{
				Item:            site.Selectors["item"],
				Comment:         site.Selectors["comment"],
				Rating:          site.Selectors["rating"],
				Date:            site.Selectors["date"],
				ScrollContainer: site.Selectors["scroll_container"],
				Reveal:          site.Selectors["reveal"],
			}, site.SettleDelay, site.LoadDelay, deps.Logger)
		},
	}
}

// RottenTomatoesSite is the audience-review listing, paginated by a
// "Load More" button that appends cards.
func RottenTomatoesSite() Site {
	return Site{
		ID:       RottenTomatoes,
		Name:     "RottenTomatoes",
		Filename: "reviews_RottenTomatoes.csv",
		URL:      "https://www.rottentomatoes.com/m/zootopia/reviews/all-audience",
		Selectors: map[string]page.Selector{
			"card":             page.CSS("review-card"),
			"rating":           page.CSS("[slot='rating']"),
			"date":             page.CSS("[slot='timestamp']"),
			"comment":          page.CSS("[slot='content']"),
			"load_more":        page.CSS("rt-button[data-pagemediareviewsmanager='loadMoreBtn:click']"),
			"load_more_button": page.CSS("rt-button"),
			"consent":          page.CSS("#onetrust-accept-btn-handler"),
		},
		SettleDelay:     3 * time.Second,
		LoadDelay:       3 * time.Second,
		MaxIdleAdvances: 3,
		NewStrategy: func(site Site, deps StrategyDeps) Strategy {
			return NewLoadMoreStrategy(site.URL, LoadMoreSelectors{
				Card:           site.Selectors["card"],
				Rating:         site.Selectors["rating"],
				Date:           site.Selectors["date"],
				Comment:        site.Selectors["comment"],
				LoadMore:       site.Selectors["load_more"],
				LoadMoreButton: site.Selectors["load_more_button"],
				LoadMoreText:   "Load More",
				Consent:        site.Selectors["consent"],
			}, site.SettleDelay, site.LoadDelay, deps.Normalizer, deps.Logger)
		},
	}
}
