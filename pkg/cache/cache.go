// Package cache is the bounded result cache for verification outcomes.
//
// Identity is derived solely from the normalized DSL text plus the
// sorted variable declarations, so semantically identical requests
// collide to the same key. Only terminal, reproducible outcomes are
// cached: SAT, UNSAT and successful engine answers. UNKNOWN and failures
// are never cached — they may succeed on retry.
package cache

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/Mindburn-Labs/verdict/core/pkg/canonicalize"
	"github.com/Mindburn-Labs/verdict/core/pkg/dsl"
	"github.com/Mindburn-Labs/verdict/core/pkg/solver"
	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// DefaultCapacity bounds entry count; DefaultTTL bounds entry age.
const (
	DefaultCapacity = 1024
	DefaultTTL      = time.Hour
)

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

type entry struct {
	key     string
	result  verdict.EngineResult
	expires time.Time
}

// Cache is an LRU with lazy TTL expiry. The mutex guards only map and
// list transitions; expensive work (solving, engine execution) must
// happen outside, so a miss never blocks other consumers for the
// duration of a solve.
type Cache struct {
	mu        sync.Mutex
	capacity  int
	ttl       time.Duration
	order     *list.List // front = most recent
	items     map[string]*list.Element
	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time // test seam
}

// New builds a cache. Non-positive capacity or TTL fall back to the
// defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Key derives the canonical cache key for a request: normalized DSL
// source plus variable declarations sorted by name, JCS-serialized and
// hashed.
func Key(src string, decls []solver.VariableDecl) (string, error) {
	sorted := make([]solver.VariableDecl, len(decls))
	copy(sorted, decls)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	return canonicalize.CanonicalHash(map[string]interface{}{
		"dsl":       dsl.Normalize(src),
		"variables": sorted,
	})
}

// Cacheable reports whether an engine result may enter the cache.
func Cacheable(res verdict.EngineResult) bool {
	return res.Success && res.Result != string(solver.StatusUnknown)
}

// Get returns the cached result for key, expiring it lazily when its
// TTL has passed.
func (c *Cache) Get(key string) (verdict.EngineResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return verdict.EngineResult{}, false
	}
	e := el.Value.(*entry)
	if c.now().After(e.expires) {
		c.removeLocked(el)
		c.evictions++
		c.misses++
		return verdict.EngineResult{}, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.result, true
}

// Put stores a cacheable result, evicting the least recently used entry
// when at capacity. Non-cacheable results are ignored.
func (c *Cache) Put(key string, res verdict.EngineResult) {
	if !Cacheable(res) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.result = res
		e.expires = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	for len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}
	el := c.order.PushFront(&entry{key: key, result: res, expires: c.now().Add(c.ttl)})
	c.items[key] = el
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Entries: len(c.items)}
}

// Invalidate drops a single entry. Dropping an absent key is a no-op
// and neither path counts as a miss.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// Purge drops every entry, keeping counters.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
}
