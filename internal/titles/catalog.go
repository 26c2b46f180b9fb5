package titles

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// DocEntry is what the catalog knows about one document.
type DocEntry struct {
	Title string `yaml:"title,omitempty"`
	// Journal is the journal date (YYYY-MM-DD) when the doc is a journal page.
	Journal string `yaml:"journal,omitempty"`
}

type catalogFile struct {
	Docs map[string]DocEntry `yaml:"docs"`
}

// Catalog is an in-memory document title and journal date lookup.
type Catalog struct {
	mu   sync.RWMutex
	docs map[string]DocEntry
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{docs: make(map[string]DocEntry)}
}

// LoadCatalog reads a YAML catalog. A missing file yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse titles catalog: %w", err)
	}
	for id, entry := range file.Docs {
		c.docs[id] = entry
	}
	return c, nil
}

// Put records or replaces a document entry.
func (c *Catalog) Put(docID string, entry DocEntry) {
	c.mu.Lock()
	c.docs[docID] = entry
	c.mu.Unlock()
}

// DocTitle returns the document title.
func (c *Catalog) DocTitle(docID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.docs[docID]
	if !ok || entry.Title == "" {
		return "", false
	}
	return entry.Title, true
}

// JournalDate returns the journal date string for journal docs.
func (c *Catalog) JournalDate(docID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.docs[docID]
	if !ok || entry.Journal == "" {
		return "", false
	}
	return entry.Journal, true
}
