// Package wikitext renders a wiki page's markup to HTML, expanding
// !contents directives and !define variables along the way.
package wikitext

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/wikitoc/internal/directive"
	"github.com/dgallion1/wikitoc/internal/toc"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// RegraceVariable, when defined as true on a page, regraces every table of
// contents on it.
const RegraceVariable = "REGRACE_TOC"

var define = regexp.MustCompile(`^!define ([A-Za-z_][A-Za-z0-9_]*) \{([^}]*)\}[ \t]*$`)

// Page is a page with markup to render.
type Page interface {
	toc.Page
	Content() string
}

// Renderer renders whole pages.
type Renderer struct {
	toc            *toc.Renderer
	md             goldmark.Markdown
	log            *slog.Logger
	regraceDefault bool
}

func NewRenderer(tocRenderer *toc.Renderer, log *slog.Logger, regraceDefault bool) *Renderer {
	return &Renderer{
		toc:            tocRenderer,
		md:             goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log:            log,
		regraceDefault: regraceDefault,
	}
}

// RenderPage returns the HTML for page. A directive that cannot be
// rendered fails the whole page.
func (r *Renderer) RenderPage(ctx context.Context, page Page) (string, error) {
	content := page.Content()
	if content != "" && !strings.HasSuffix(content, "\n") && !strings.HasSuffix(content, "\r") {
		content += "\n"
	}

	vars := map[string]string{}
	if r.regraceDefault {
		vars[RegraceVariable] = "true"
	}

	var out, markup bytes.Buffer
	flush := func() error {
		if markup.Len() == 0 {
			return nil
		}
		err := r.md.Convert(markup.Bytes(), &out)
		markup.Reset()
		if err != nil {
			return fmt.Errorf("render markup of %q: %w", page.Path(), err)
		}
		return nil
	}

	for rest := content; rest != ""; {
		if inv := directive.Match(rest); inv != nil {
			if err := flush(); err != nil {
				return "", err
			}
			if b, _ := strconv.ParseBool(vars[RegraceVariable]); b {
				inv.Regrace = true
			}
			html, err := r.toc.Render(ctx, page, *inv)
			if err != nil {
				return "", fmt.Errorf("render %q on %q: %w", inv.Text, page.Path(), err)
			}
			r.log.Debug("rendered contents", "page", page.Path(), "directive", inv.Text)
			out.WriteString(html)
			rest = rest[inv.Len:]
			continue
		}

		line, n := nextLine(rest)
		rest = rest[n:]
		if m := define.FindStringSubmatch(line); m != nil {
			vars[m[1]] = m[2]
			continue
		}
		markup.WriteString(line)
		markup.WriteByte('\n')
	}
	if err := flush(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// nextLine returns the first line of s without its terminator and the
// number of bytes it spans including the terminator.
func nextLine(s string) (string, int) {
	i := strings.IndexAny(s, "\r\n")
	if i < 0 {
		return s, len(s)
	}
	if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
		return s[:i], i + 2
	}
	return s[:i], i + 1
}
