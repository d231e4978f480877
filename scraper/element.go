package scraper

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/use-agent/reviewcrawl/models"
	"github.com/use-agent/reviewcrawl/page"
)

// element adapts *rod.Element to page.Element.
type element struct {
	el *rod.Element
}

func wrap(els rod.Elements) []page.Element {
	out := make([]page.Element, len(els))
	for i, el := range els {
		out[i] = element{el: el}
	}
	return out
}

func (e element) Text() (string, error) {
	text, err := e.el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e element) Attr(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e element) Find(sel page.Selector) ([]page.Element, error) {
	var (
		els rod.Elements
		err error
	)
	if sel.Kind == page.KindXPath {
		els, err = e.el.ElementsX(sel.Expr)
	} else {
		els, err = e.el.Elements(sel.Expr)
	}
	if err != nil {
		return nil, models.Categorize(err, models.ErrCodeExtraction, "query "+sel.String()+" failed")
	}
	return wrap(els), nil
}

func (e element) ScrollIntoView() error {
	return e.el.ScrollIntoView()
}

func (e element) ScrollToBottom() error {
	_, err := e.el.Eval(`() => { this.scrollTop = this.scrollHeight }`)
	return err
}

// Click runs HTMLElement.click() in the page instead of dispatching mouse
// events, so overlays and animations cannot swallow it.
func (e element) Click() error {
	_, err := e.el.Eval(`() => this.click()`)
	return err
}
