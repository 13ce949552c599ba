// Package wikipage holds the wiki page hierarchy.
package wikipage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dgallion1/wikitoc/internal/toc"
)

var (
	ErrNotFound    = errors.New("page not found")
	ErrInvalidName = errors.New("invalid page name")
	ErrRoot        = errors.New("operation not allowed on the root page")
)

var wikiWord = regexp.MustCompile(`^[A-Z](?:[a-z0-9]+[A-Z][a-z0-9]*)+$`)

// IsWikiWord reports whether name is a valid page name.
func IsWikiWord(name string) bool {
	return wikiWord.MatchString(name)
}

// ParsePath splits a dotted page path into names. The empty path is the root.
func ParsePath(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	names := strings.Split(path, ".")
	for _, n := range names {
		if !IsWikiWord(n) {
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidName, n, path)
		}
	}
	return names, nil
}

// Page is a node of the hierarchy. Its fields are guarded by the owning
// Store's lock.
type Page struct {
	store       *Store
	name        string
	parent      *Page
	content     string
	virtualWiki string
	children    []*Page
}

// Store is a concurrency-safe page tree with a named root.
type Store struct {
	mu   sync.RWMutex
	root *Page
}

// NewStore returns a store holding only a root page called rootName.
func NewStore(rootName string) *Store {
	s := &Store{}
	s.root = &Page{store: s, name: rootName}
	return s
}

func (s *Store) Root() *Page {
	return s.root
}

// Find returns the page at path. The empty path and the root's own name
// both address the root.
func (s *Store) Find(path string) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locate(path)
}

// locate resolves path from the root. The caller holds s.mu.
func (s *Store) locate(path string) (*Page, error) {
	if path == "" || path == s.root.name {
		return s.root, nil
	}
	names, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	p := s.root
	for _, n := range names {
		if p = p.child(n); p == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}
	return p, nil
}

// Put creates or updates the page at path, creating any missing ancestors
// with empty content. The empty path or the root's name updates the root.
func (s *Store) Put(path, content string) (*Page, error) {
	var names []string
	if path != s.root.name {
		var err error
		if names, err = ParsePath(path); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.root
	for _, n := range names {
		c := p.child(n)
		if c == nil {
			c = &Page{store: s, name: n, parent: p}
			p.children = append(p.children, c)
		}
		p = c
	}
	p.content = content
	return p, nil
}

// Remove deletes the page at path and its descendants.
func (s *Store) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.locate(path)
	if err != nil {
		return err
	}
	if p == s.root {
		return ErrRoot
	}

	siblings := p.parent.children
	for i, c := range siblings {
		if c == p {
			p.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	return nil
}

// SetVirtualWiki points the page at path to a page, usually on another
// wiki, whose children stand in for its own. An empty url clears it.
func (s *Store) SetVirtualWiki(path, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.locate(path)
	if err != nil {
		return err
	}
	p.virtualWiki = url
	return nil
}

// Walk visits every page depth first, parents before children. The root
// has depth 0. The tree is captured before fn is first called, so fn may
// modify the store.
func (s *Store) Walk(fn func(p *Page, depth int) error) error {
	type visit struct {
		page  *Page
		depth int
	}
	var visits []visit
	s.mu.RLock()
	stack := []visit{{s.root, 0}}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visits = append(visits, v)
		for i := len(v.page.children) - 1; i >= 0; i-- {
			stack = append(stack, visit{v.page.children[i], v.depth + 1})
		}
	}
	s.mu.RUnlock()

	for _, v := range visits {
		if err := fn(v.page, v.depth); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) child(name string) *Page {
	for _, c := range p.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (p *Page) Name() string { return p.name }

// Path returns the dotted path of the page below the root.
func (p *Page) Path() string {
	var names []string
	for q := p; q.parent != nil; q = q.parent {
		names = append(names, q.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, ".")
}

func (p *Page) Content() string {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	return p.content
}

func (p *Page) VirtualSource() string {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	return p.virtualWiki
}

// ChildPages returns a copy of the page's children in insertion order.
func (p *Page) ChildPages() []*Page {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	return append([]*Page(nil), p.children...)
}

// Children implements toc.Page.
func (p *Page) Children(ctx context.Context) ([]toc.Page, error) {
	kids := p.ChildPages()
	out := make([]toc.Page, len(kids))
	for i, c := range kids {
		out[i] = c
	}
	return out, nil
}

// Snapshot is a JSON-safe copy of a page.
type Snapshot struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Content     string   `json:"content"`
	VirtualWiki string   `json:"virtual_wiki,omitempty"`
	Children    []string `json:"children"`
}

func (p *Page) Snapshot() Snapshot {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	names := make([]string, 0, len(p.children))
	for _, c := range p.children {
		names = append(names, c.name)
	}
	return Snapshot{
		Name:        p.name,
		Path:        p.Path(),
		Content:     p.content,
		VirtualWiki: p.virtualWiki,
		Children:    names,
	}
}
