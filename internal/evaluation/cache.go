package evaluation

// Cache memoizes results by question and exact answer text for the lifetime
// of one session. It is not safe for concurrent use; the owning session
// serializes access.
type Cache struct {
	entries map[string]Result
	bypass  bool
}

// NewCache returns an empty cache. With bypass set, Get always misses but
// Put still records, so turning bypass off later sees earlier results.
func NewCache(bypass bool) *Cache {
	return &Cache{entries: make(map[string]Result), bypass: bypass}
}

// cacheKey joins the two parts with a NUL so ("a","bc") and ("ab","c")
// stay distinct. No normalization is applied to the answer.
func cacheKey(questionID, answer string) string {
	return questionID + "\x00" + answer
}

// Get returns a copy of the cached result, if any.
func (c *Cache) Get(questionID, answer string) (*Result, bool) {
	if c.bypass {
		return nil, false
	}
	r, ok := c.entries[cacheKey(questionID, answer)]
	if !ok {
		return nil, false
	}
	return &r, true
}

// Put stores r under (questionID, answer), replacing any earlier entry.
func (c *Cache) Put(questionID, answer string, r *Result) {
	c.entries[cacheKey(questionID, answer)] = *r
}

// SetBypass toggles lookup bypass.
func (c *Cache) SetBypass(bypass bool) {
	c.bypass = bypass
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}
