package assign

// ResultCache memoizes Filter results per consumer identity. Entries live
// until the store reloads, the consumer's override changes, or Reset runs.
type ResultCache struct {
	entries map[string]FilterResult
	compute func(*ConsumerDefinition) FilterResult
	misses  int
}

// NewResultCache builds a cache that fills misses with compute.
func NewResultCache(compute func(*ConsumerDefinition) FilterResult) *ResultCache {
	return &ResultCache{
		entries: map[string]FilterResult{},
		compute: compute,
	}
}

// GetOrCompute returns the cached result for consumer, computing it on a miss.
func (c *ResultCache) GetOrCompute(consumer *ConsumerDefinition) FilterResult {
	if result, ok := c.entries[consumer.Identity]; ok {
		return result
	}
	c.misses++
	result := c.compute(consumer)
	c.entries[consumer.Identity] = result
	return result
}

// Invalidate drops the entry for identity.
func (c *ResultCache) Invalidate(identity string) {
	delete(c.entries, identity)
}

// Reset drops every entry.
func (c *ResultCache) Reset() {
	clear(c.entries)
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	return len(c.entries)
}

// Misses returns how many times compute ran.
func (c *ResultCache) Misses() int {
	return c.misses
}
