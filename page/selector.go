package page

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Kind is the selector family.
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

func (k Kind) String() string {
	if k == KindXPath {
		return "xpath"
	}
	return "css"
}

// xpathPrefix marks an XPath expression in configuration strings.
const xpathPrefix = "xpath:"

// Selector is a query in one of the supported families.
type Selector struct {
	Kind Kind
	Expr string
}

// CSS builds a CSS selector.
func CSS(expr string) Selector { return Selector{Kind: KindCSS, Expr: expr} }

// XPath builds an XPath selector.
func XPath(expr string) Selector { return Selector{Kind: KindXPath, Expr: expr} }

// String renders the selector in the form accepted by ParseSelector.
func (s Selector) String() string {
	if s.Kind == KindXPath {
		return xpathPrefix + s.Expr
	}
	return s.Expr
}

// IsZero reports whether the selector is unset.
func (s Selector) IsZero() bool { return s.Expr == "" }

// ParseSelector parses a configuration string. Strings prefixed with
// "xpath:" are XPath expressions; anything else is CSS and must compile.
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}
	if expr, ok := strings.CutPrefix(raw, xpathPrefix); ok {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			return Selector{}, fmt.Errorf("empty xpath expression")
		}
		return XPath(expr), nil
	}
	if _, err := cascadia.Compile(raw); err != nil {
		return Selector{}, fmt.Errorf("invalid css selector %q: %w", raw, err)
	}
	return CSS(raw), nil
}

// Format substitutes args into the selector expression using fmt verbs.
// It is used for ordinal selectors such as "li[%d]".
func (s Selector) Format(args ...any) Selector {
	return Selector{Kind: s.Kind, Expr: fmt.Sprintf(s.Expr, args...)}
}
