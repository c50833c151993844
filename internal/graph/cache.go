package graph

import (
	"sync"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// Cache holds per-repository graphs. The graph itself is single-writer; the
// cache map needs exclusion because review and indexing jobs may touch
// different repositories concurrently.
type Cache struct {
	mu     sync.Mutex
	graphs map[string]*Graph
}

// NewCache creates an empty repository-scoped graph cache.
func NewCache() *Cache {
	return &Cache{graphs: make(map[string]*Graph)}
}

// Get returns the graph for a repository, creating it if absent.
func (c *Cache) Get(repositoryID string) *Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.graphs[repositoryID]
	if !ok {
		g = New()
		c.graphs[repositoryID] = g
		logging.GraphDebug("created graph cache entry for repository %s", repositoryID)
	}
	return g
}

// Clear drops the cached graph for a repository.
func (c *Cache) Clear(repositoryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, repositoryID)
	logging.GraphDebug("cleared graph cache for repository %s", repositoryID)
}

// Replace installs a freshly built graph for a repository.
func (c *Cache) Replace(repositoryID string, g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs[repositoryID] = g
}
