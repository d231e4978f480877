// Package snapshot implements page.Page over a static HTML document.
//
// CSS selectors are answered by goquery and XPath expressions by htmlquery,
// both over the same parsed node tree, so mutations made through one are
// visible to the other. Scrolls and clicks do nothing unless a hook is set;
// hooks receive the live document and may append content to simulate lazy
// loading. Waits return immediately.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/use-agent/reviewcrawl/page"
	"golang.org/x/net/html"
)

// Hook mutates doc in response to an interaction with target.
type Hook func(doc *goquery.Document, target *goquery.Selection) error

// Page is a page.Page backed by an in-memory document.
type Page struct {
	doc *goquery.Document

	// OnScroll runs when ScrollToBottom is called on any element.
	OnScroll Hook
	// OnClick runs when Click is called on any element.
	OnClick Hook
	// NavigateErr, when set, is returned by every Navigate call.
	NavigateErr error

	visited []string
	scrolls int
	clicks  int
	waited  time.Duration
	closes  int
}

var _ page.Page = (*Page)(nil)

// New parses markup into a Page.
func New(markup string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse html: %w", err)
	}
	return &Page{doc: doc}, nil
}

// Open reads and parses the HTML file at path.
func Open(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	return &Page{doc: doc}, nil
}

// Document exposes the live document.
func (p *Page) Document() *goquery.Document { return p.doc }

// Visited lists the URLs passed to Navigate.
func (p *Page) Visited() []string { return p.visited }

// Scrolls counts ScrollToBottom calls.
func (p *Page) Scrolls() int { return p.scrolls }

// Clicks counts Click calls.
func (p *Page) Clicks() int { return p.clicks }

// Waited is the total duration requested through Wait.
func (p *Page) Waited() time.Duration { return p.waited }

// Closes counts Close calls.
func (p *Page) Closes() int { return p.closes }

// Navigate records url. The document is not reloaded.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.visited = append(p.visited, url)
	return p.NavigateErr
}

func (p *Page) Find(ctx context.Context, sel page.Selector) ([]page.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.query(p.doc.Selection, sel)
}

// Wait records d and returns at once unless ctx is already done.
func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	p.waited += d
	return ctx.Err()
}

func (p *Page) Close() error {
	p.closes++
	return nil
}

func (p *Page) query(scope *goquery.Selection, sel page.Selector) ([]page.Element, error) {
	if sel.Kind == page.KindXPath {
		var out []page.Element
		for _, n := range scope.Nodes {
			nodes, err := htmlquery.QueryAll(n, sel.Expr)
			if err != nil {
				return nil, fmt.Errorf("snapshot: xpath %q: %w", sel.Expr, err)
			}
			for _, found := range nodes {
				if found.Type != html.ElementNode {
					continue
				}
				out = append(out, &element{page: p, sel: p.doc.FindNodes(found)})
			}
		}
		return out, nil
	}

	matched := scope.Find(sel.Expr)
	out := make([]page.Element, 0, matched.Length())
	matched.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{page: p, sel: s})
	})
	return out, nil
}

type element struct {
	page *Page
	sel  *goquery.Selection
}

func (e *element) Text() (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *element) Attr(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *element) Find(sel page.Selector) ([]page.Element, error) {
	return e.page.query(e.sel, sel)
}

func (e *element) ScrollIntoView() error { return nil }

func (e *element) ScrollToBottom() error {
	e.page.scrolls++
	if e.page.OnScroll == nil {
		return nil
	}
	return e.page.OnScroll(e.page.doc, e.sel)
}

func (e *element) Click() error {
	e.page.clicks++
	if e.page.OnClick == nil {
		return nil
	}
	return e.page.OnClick(e.page.doc, e.sel)
}
