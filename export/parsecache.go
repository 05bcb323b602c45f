package export

import (
	"os"
	"sync"

	xmlnode "github.com/opendatakit-go/export-core/xmlnode"
)

// parseCache is a bounded path -> parsed document association populated
// during the date-read phase and consumed at most once per path during the
// main processing pass. Entries beyond maxEntries are evicted oldest-first;
// callers must tolerate cache misses by re-parsing.
type parseCache struct {
	mu        sync.Mutex
	maxEntries int
	order     []string
	entries   map[string]*xmlnode.Node
}

func newParseCache(maxEntries int) *parseCache {
	return &parseCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*xmlnode.Node),
	}
}

func (c *parseCache) put(path string, n *xmlnode.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[path]; !exists {
		c.order = append(c.order, path)
	}
	c.entries[path] = n
	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// take returns the cached document for path and removes it (consumed at
// most once), or nil if absent.
func (c *parseCache) take(path string) *xmlnode.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.entries[path]
	if !ok {
		return nil
	}
	delete(c.entries, path)
	return n
}

// parseSubmission returns the cached document for the submission.xml at
// path, or parses the file when the cache has no entry for it.
func parseSubmission(cache *parseCache, path string) (*xmlnode.Node, error) {
	if cache != nil {
		if n := cache.take(path); n != nil {
			return n, nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return xmlnode.Parse(f)
}
