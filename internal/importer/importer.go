// Package importer turns uploaded documents into wiki page hierarchies.
package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/wikitoc/internal/wikipage"
)

// Section is a heading of an imported document and the text below it.
type Section struct {
	Title    string
	Text     string
	Children []*Section
}

// Outline is a parsed document. Text holds whatever precedes the first
// heading.
type Outline struct {
	Title    string
	Text     string
	Sections []*Section
}

// Parser converts raw document bytes into an Outline.
type Parser interface {
	Parse(r io.Reader, filename string) (*Outline, error)
}

// ForFile returns the parser for a filename's extension.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// DocumentName is the title a document gets when it carries none: the
// filename without directory or extension.
func DocumentName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Import grafts o under the page at parentPath. The document becomes one
// page whose content opens with a recursive, regraced table of contents;
// each section becomes a child page. It returns the document page's path.
func Import(store *wikipage.Store, parentPath string, o *Outline) (string, error) {
	parent, err := store.Find(parentPath)
	if err != nil {
		return "", err
	}

	taken := map[string]bool{}
	for _, c := range parent.ChildPages() {
		taken[c.Name()] = true
	}
	docPath := join(parent.Path(), uniqueName(WikiName(o.Title), taken))

	content := "!contents -R -g\n"
	if o.Text != "" {
		content += "\n" + o.Text + "\n"
	}
	if _, err := store.Put(docPath, content); err != nil {
		return "", fmt.Errorf("create document page: %w", err)
	}
	if err := graft(store, docPath, o.Sections); err != nil {
		return "", err
	}
	return docPath, nil
}

func graft(store *wikipage.Store, parentPath string, sections []*Section) error {
	taken := map[string]bool{}
	for _, s := range sections {
		path := join(parentPath, uniqueName(WikiName(s.Title), taken))
		content := s.Text
		if len(s.Children) > 0 {
			content = "!contents\n\n" + content
		}
		if _, err := store.Put(path, content); err != nil {
			return fmt.Errorf("create section page %s: %w", path, err)
		}
		if err := graft(store, path, s.Children); err != nil {
			return err
		}
	}
	return nil
}

// WikiName converts a heading into a page name by capitalizing and joining
// its ASCII alphanumeric words. Headings that would not form a WikiWord
// are padded with "Section" in front or "Page" behind.
func WikiName(title string) string {
	var b strings.Builder
	for _, w := range strings.FieldsFunc(title, func(r rune) bool { return !isAlnum(r) }) {
		if strings.ToUpper(w) == w {
			w = strings.ToLower(w)
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	name := b.String()
	if name == "" {
		return "UntitledPage"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "Section" + name
	}
	if !wikipage.IsWikiWord(name) {
		name += "Page"
	}
	if !wikipage.IsWikiWord(name) {
		return "UntitledPage"
	}
	return name
}

func uniqueName(name string, taken map[string]bool) string {
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = name + strconv.Itoa(n)
	}
	taken[candidate] = true
	return candidate
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// outlineBuilder nests sections by heading level.
type outlineBuilder struct {
	outline *Outline
	stack   []*frame
	text    strings.Builder
}

type frame struct {
	section *Section
	level   int
}

func newOutlineBuilder(title string) *outlineBuilder {
	return &outlineBuilder{outline: &Outline{Title: title}}
}

func (b *outlineBuilder) heading(level int, title string) {
	if title == "" {
		return
	}
	b.flush()
	s := &Section{Title: title}
	for len(b.stack) > 0 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	if len(b.stack) == 0 {
		b.outline.Sections = append(b.outline.Sections, s)
	} else {
		top := b.stack[len(b.stack)-1].section
		top.Children = append(top.Children, s)
	}
	b.stack = append(b.stack, &frame{section: s, level: level})
}

func (b *outlineBuilder) paragraph(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(t)
}

func (b *outlineBuilder) flush() {
	t := b.text.String()
	b.text.Reset()
	if t == "" {
		return
	}
	target := &b.outline.Text
	if len(b.stack) > 0 {
		target = &b.stack[len(b.stack)-1].section.Text
	}
	if *target != "" {
		*target += "\n\n"
	}
	*target += t
}

func (b *outlineBuilder) finish() *Outline {
	b.flush()
	return b.outline
}
