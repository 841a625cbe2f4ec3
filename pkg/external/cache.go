package external

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/caddl-lab-desk/internal/domain"
)

// InsightCache keeps recent insights keyed by the prompt they answered, so
// re-running the analysis on unchanged findings does not call the model.
type InsightCache struct {
	entries *expirable.LRU[string, domain.Insight]
}

// NewInsightCache creates a cache. It returns nil for a non-positive size;
// a nil cache never hits.
func NewInsightCache(size int, ttl time.Duration) *InsightCache {
	if size <= 0 {
		return nil
	}
	return &InsightCache{entries: expirable.NewLRU[string, domain.Insight](size, nil, ttl)}
}

func (c *InsightCache) key(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return "insight:" + hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached insight.
func (c *InsightCache) Get(model, prompt string) (*domain.Insight, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.entries.Get(c.key(model, prompt))
	if !ok {
		return nil, false
	}
	v.Recommendations = append([]string(nil), v.Recommendations...)
	return &v, true
}

// Set stores an insight.
func (c *InsightCache) Set(model, prompt string, insight *domain.Insight) {
	if c == nil || insight == nil {
		return
	}
	v := *insight
	v.Recommendations = append([]string(nil), insight.Recommendations...)
	c.entries.Add(c.key(model, prompt), v)
}

// Len returns the number of live entries.
func (c *InsightCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
