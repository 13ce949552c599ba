package wikipage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	contentFile    = "content.txt"
	propertiesFile = "properties.yaml"
)

// properties is the on-disk form of a page's attributes.
type properties struct {
	VirtualWiki string `yaml:"virtual_wiki,omitempty"`
}

// LoadDir reads a page tree from dir. Every subdirectory named as a
// WikiWord is a child page; its content.txt and properties.yaml are
// optional. Children are ordered by directory name.
func LoadDir(dir, rootName string) (*Store, error) {
	s := NewStore(rootName)
	if err := loadPage(s.root, dir); err != nil {
		return nil, err
	}
	return s, nil
}

func loadPage(p *Page, dir string) error {
	content, err := os.ReadFile(filepath.Join(dir, contentFile))
	switch {
	case err == nil:
		p.content = string(content)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read content of %q: %w", p.Path(), err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, propertiesFile))
	switch {
	case err == nil:
		var props properties
		if err := yaml.Unmarshal(raw, &props); err != nil {
			return fmt.Errorf("parse properties of %q: %w", p.Path(), err)
		}
		p.virtualWiki = props.VirtualWiki
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read properties of %q: %w", p.Path(), err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || !IsWikiWord(e.Name()) {
			continue
		}
		c := &Page{store: p.store, name: e.Name(), parent: p}
		if err := loadPage(c, filepath.Join(dir, e.Name())); err != nil {
			return err
		}
		p.children = append(p.children, c)
	}
	return nil
}

// SaveDir writes the tree to dir in the layout LoadDir reads. Page
// directories that no longer exist in the store are removed.
func (s *Store) SaveDir(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return savePage(s.root, dir)
}

func savePage(p *Page, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, contentFile), []byte(p.content), 0o644); err != nil {
		return fmt.Errorf("write content of %q: %w", p.Path(), err)
	}

	propsPath := filepath.Join(dir, propertiesFile)
	if p.virtualWiki != "" {
		raw, err := yaml.Marshal(properties{VirtualWiki: p.virtualWiki})
		if err != nil {
			return fmt.Errorf("marshal properties of %q: %w", p.Path(), err)
		}
		if err := os.WriteFile(propsPath, raw, 0o644); err != nil {
			return fmt.Errorf("write properties of %q: %w", p.Path(), err)
		}
	} else if err := os.Remove(propsPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove properties of %q: %w", p.Path(), err)
	}

	keep := make(map[string]bool, len(p.children))
	for _, c := range p.children {
		keep[c.name] = true
		if err := savePage(c, filepath.Join(dir, c.name)); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() && IsWikiWord(e.Name()) && !keep[e.Name()] {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("prune %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}
