// Package cache maps an acquired repository URL to the local directory it
// was extracted into, with LRU eviction bounded by size and lazy+periodic
// TTL expiry (§4.G Cache).
package cache

import (
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is what a cache hit returns: the extracted path plus bookkeeping
// (§3 Cache entry).
type Entry struct {
	Path        string
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount int
}

// Stats is the snapshot returned by Stats().
type Stats struct {
	Size     int
	Hits     int64
	Misses   int64
	HitRate  float64
}

// Cache is a URL -> extracted-directory map with bounded size and
// time-based expiry. All methods are safe for concurrent use; the internal
// mutex serializes map operations as required by §5.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.LRU[string, *Entry]
	ttl     time.Duration
	maxSize int
	hits    int64
	misses  int64

	// onEvict removes the on-disk tree an evicted entry owned. Optional;
	// nil means the caller manages disk cleanup itself.
	onEvict func(path string)
}

// New creates a Cache bounded to maxSize entries, each expiring ttl after
// creation. onEvict, if non-nil, is invoked (outside the lock) whenever an
// entry is evicted for capacity or expiry, so the caller can remove the
// extracted tree it owns.
func New(maxSize int, ttl time.Duration, onEvict func(path string)) *Cache {
	c := &Cache{ttl: ttl, maxSize: maxSize, onEvict: onEvict}
	c.lru = lru.NewLRU[string, *Entry](maxSize, func(_ string, entry *Entry) {
		if c.onEvict != nil && entry != nil {
			go c.onEvict(entry.Path)
		}
	}, ttl)
	return c
}

// Get returns the cached path for url and true on a hit. An expired entry
// is treated as a miss and removed (lazy eviction).
func (c *Cache) Get(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(url)
	if !ok {
		c.misses++
		return "", false
	}

	entry.LastAccess = time.Now()
	entry.AccessCount++
	c.hits++
	return entry.Path, true
}

// Put records that url was acquired to path. Inserting past maxSize evicts
// the least-recently-used entry.
func (c *Cache) Put(url, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.lru.Add(url, &Entry{Path: path, CreatedAt: now, LastAccess: now, AccessCount: 0})
}

// Clear removes every entry, invoking onEvict for each so owned on-disk
// trees are cleaned up.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.hits = 0
	c.misses = 0
}

// Stats reports current size, cumulative hits/misses, and hit rate.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Size:    c.lru.Len(),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// RemoveStaleDirectories performs the "eagerly by a periodic sweep" half of
// the TTL invariant: the LRU already lazily expires entries on access, but a
// caller (the Controller's janitor loop) can invoke this to also scrub any
// on-disk directories orphaned by a process restart, given a root that is
// expected to contain only cache-managed trees.
func RemoveStaleDirectories(root string, olderThan time.Time) (removed int, err error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(olderThan) {
			if err := os.RemoveAll(root + string(os.PathSeparator) + entry.Name()); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
