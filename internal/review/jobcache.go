package review

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// jobCacheSize bounds how many recent review results are retained.
const jobCacheSize = 256

// JobCache deduplicates identical review jobs within a TTL window. A second
// identical job within the window returns the first job's result without
// re-invoking any provider.
type JobCache struct {
	cache *expirable.LRU[string, *types.ReviewResult]
}

// NewJobCache creates a cache with the given TTL.
func NewJobCache(ttl time.Duration) *JobCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JobCache{cache: expirable.NewLRU[string, *types.ReviewResult](jobCacheSize, nil, ttl)}
}

// Key derives the idempotency key for a pr_review job.
func Key(repoID string, prNumber int, commitSHA string) string {
	return fmt.Sprintf("%s-%d-%s", repoID, prNumber, commitSHA)
}

// Get returns a cached result for the key, if still live.
func (c *JobCache) Get(key string) (*types.ReviewResult, bool) {
	return c.cache.Get(key)
}

// Put stores a completed result.
func (c *JobCache) Put(key string, result *types.ReviewResult) {
	c.cache.Add(key, result)
}
