package toc

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

// write serializes n one element per line, indented by one tab per level.
// Elements holding a single text node stay on one line.
func write(b *strings.Builder, n *html.Node, level int) {
	indent := strings.Repeat("\t", level)
	if n.Type == html.TextNode {
		b.WriteString(indent)
		b.WriteString(html.EscapeString(n.Data))
		b.WriteByte('\n')
		return
	}

	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	b.WriteByte('>')

	switch {
	case n.FirstChild == nil:
	case n.FirstChild == n.LastChild && n.FirstChild.Type == html.TextNode:
		b.WriteString(html.EscapeString(n.FirstChild.Data))
	default:
		b.WriteByte('\n')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			write(b, c, level+1)
		}
		b.WriteString(indent)
	}

	b.WriteString("</")
	b.WriteString(n.Data)
	b.WriteString(">\n")
}
