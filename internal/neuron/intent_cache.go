package neuron

import (
	"strings"
	"sync"

	"github.com/axonforge/engine/pkg/domain"
)

// IntentCache maps normalized goal text to a previously-successful
// intent classification. Entries are only written after the goal they
// classified went on to succeed downstream — "cache only what worked" —
// so a bad classification is never reinforced.
type IntentCache struct {
	mu      sync.RWMutex
	entries map[string]domain.Intent
}

// NewIntentCache returns an empty cache.
func NewIntentCache() *IntentCache {
	return &IntentCache{entries: make(map[string]domain.Intent)}
}

// Get returns a cached intent for goalText, if one was recorded.
func (c *IntentCache) Get(goalText string) (domain.Intent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	intent, ok := c.entries[normalize(goalText)]
	return intent, ok
}

// Put records goalText's classification. Call only once the goal it
// classified has completed successfully.
func (c *IntentCache) Put(goalText string, intent domain.Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalize(goalText)] = intent
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
