package api

import (
	"sync"

	"github.com/krscope/krscope/internal/runs"
	"github.com/krscope/krscope/pkg/graph"
)

// DefaultGraphCacheSize is used when NewGraphCache is given a non-positive size.
const DefaultGraphCacheSize = 20

// CachedGraph is a decoded graph document together with its record.
type CachedGraph struct {
	Graph  *graph.Graph
	Record *runs.GraphRecord
}

// GraphCache is a thread-safe LRU cache for loaded graph documents.
type GraphCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*CachedGraph
	order   []string // oldest first
}

// NewGraphCache creates a cache with the given maximum number of entries.
func NewGraphCache(maxSize int) *GraphCache {
	if maxSize <= 0 {
		maxSize = DefaultGraphCacheSize
	}
	return &GraphCache{
		maxSize: maxSize,
		entries: make(map[string]*CachedGraph),
	}
}

// Get retrieves a graph from the cache, or nil if not found.
func (c *GraphCache) Get(id string) *CachedGraph {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil
	}

	c.moveToEnd(id)
	return entry
}

// Put adds a graph to the cache, evicting the least recently used if full.
func (c *GraphCache) Put(id string, entry *CachedGraph) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		c.entries[id] = entry
		c.moveToEnd(id)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[id] = entry
	c.order = append(c.order, id)
}

// Len returns the number of cached graphs.
func (c *GraphCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *GraphCache) moveToEnd(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, id)
			return
		}
	}
}
