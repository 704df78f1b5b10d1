package text

// Cache interns strings under small increasing integer ids, in both
// directions. Ids start at 1; 0 is never issued. The cache is append-only
// for the lifetime of the host process: there is no per-entry eviction,
// only a whole-cache Clear.
type Cache struct {
	byID     map[uint32]string
	byString map[string]uint32
	next     uint32
}

// NewCache creates an empty string cache.
func NewCache() *Cache {
	return &Cache{
		byID:     make(map[uint32]string),
		byString: make(map[string]uint32),
		next:     1,
	}
}

// Intern returns the id for s, creating one if the string is new.
// Re-interning the same string returns the existing id.
func (c *Cache) Intern(s string) uint32 {
	if id, ok := c.byString[s]; ok {
		return id
	}
	id := c.next
	c.next++
	c.byID[id] = s
	c.byString[s] = id
	return id
}

// Lookup resolves an id back to its string.
func (c *Cache) Lookup(id uint32) (string, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// IDOf returns the id for an already-interned string without creating one.
func (c *Cache) IDOf(s string) (uint32, bool) {
	id, ok := c.byString[s]
	return id, ok
}

// Len returns the number of interned strings.
func (c *Cache) Len() int {
	return len(c.byID)
}

// Clear discards every entry and restarts ids from 1.
func (c *Cache) Clear() {
	c.byID = make(map[uint32]string)
	c.byString = make(map[string]uint32)
	c.next = 1
}
