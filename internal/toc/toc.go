// Package toc renders a !contents directive into nested HTML lists that
// mirror a page's descendants.
package toc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/wikitoc/internal/directive"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMalformedInvocation is returned for invocations Match would never
// produce, such as a depth limit without recursion.
var ErrMalformedInvocation = errors.New("malformed contents invocation")

// Page is a node of the wiki hierarchy.
type Page interface {
	Name() string
	// Path is the dotted full path of the page, empty for the root.
	Path() string
	// Children returns the page's children in the provider's order.
	Children(ctx context.Context) ([]Page, error)
	// VirtualSource is the location of a page whose children stand in for
	// this page's own, or "" when there is none.
	VirtualSource() string
}

// Resolver fetches the child names of a virtual source, usually a page on
// another wiki.
type Resolver interface {
	ResolveChildren(ctx context.Context, source string) ([]string, error)
}

// Renderer turns directive invocations into table-of-contents markup.
// It keeps no state between calls and is safe for concurrent use.
type Renderer struct {
	resolver Resolver
}

// NewRenderer returns a Renderer that resolves virtual sources with
// resolver. A nil resolver makes rendering a virtual page fail.
func NewRenderer(resolver Resolver) *Renderer {
	return &Renderer{resolver: resolver}
}

// Render returns the table of contents of start as an HTML fragment.
func (r *Renderer) Render(ctx context.Context, start Page, inv directive.Invocation) (string, error) {
	if !inv.Valid() {
		return "", fmt.Errorf("%w: %+v", ErrMalformedInvocation, inv)
	}

	div, err := r.level(ctx, start, inv.Regrace, 1, inv.Depth())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	write(&b, div, 0)
	return b.String(), nil
}

// level renders the children of page as a toc{depth} container. budget is
// the number of further levels allowed below this one, -1 for no limit.
// Nested levels with nothing to list return nil.
func (r *Renderer) level(ctx context.Context, page Page, regrace bool, depth, budget int) (*html.Node, error) {
	ul := element(atom.Ul)

	if src := page.VirtualSource(); src != "" {
		names, err := r.virtualChildren(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("resolve virtual children of %q: %w", page.Path(), err)
		}
		for _, name := range names {
			i := element(atom.I)
			i.AppendChild(text(name))
			ul.AppendChild(item(childPath(page.Path(), name), i))
		}
	} else {
		children, err := page.Children(ctx)
		if err != nil {
			return nil, fmt.Errorf("list children of %q: %w", page.Path(), err)
		}
		for _, child := range children {
			li := item(childPath(page.Path(), child.Name()), text(label(child.Name(), regrace)))
			if budget != 0 && child.VirtualSource() == "" {
				next := budget
				if next > 0 {
					next--
				}
				sub, err := r.level(ctx, child, regrace, depth+1, next)
				if err != nil {
					return nil, err
				}
				if sub != nil {
					li.AppendChild(sub)
				}
			}
			ul.AppendChild(li)
		}
	}

	if depth > 1 && ul.FirstChild == nil {
		return nil, nil
	}
	div := element(atom.Div, attr("class", "toc"+strconv.Itoa(depth)))
	div.AppendChild(ul)
	return div, nil
}

func (r *Renderer) virtualChildren(ctx context.Context, source string) ([]string, error) {
	if r.resolver == nil {
		return nil, errors.New("no resolver configured")
	}
	return r.resolver.ResolveChildren(ctx, source)
}

func item(href string, content *html.Node) *html.Node {
	a := element(atom.A, attr("href", href))
	a.AppendChild(content)
	li := element(atom.Li)
	li.AppendChild(a)
	return li
}

func label(name string, regrace bool) string {
	if regrace {
		return Regrace(name)
	}
	return name
}

func childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
