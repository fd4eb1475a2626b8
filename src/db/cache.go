package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache groups, used by the admin clear endpoint.
const (
	CacheUsers     = "users"
	CacheDashboard = "dashboard"
	CacheBudgets   = "budgets"
)

var CacheGroups = []string{CacheUsers, CacheDashboard, CacheBudgets}

// DefaultTTL bounds how long any entry lives, even without a write.
const DefaultTTL = 5 * time.Minute

// entry carries the string key and tags alongside the value, since ristretto
// only hands the hashed key back when an item leaves the cache.
type entry struct {
	key   string
	value any
	tags  []string
}

// Cache wraps ristretto and remembers which keys belong to which tags, so a
// group of entries (one cache type, or everything cached for a user) can be
// dropped at once.
//
// Every user also has a generation that moves on each InvalidateUser (and
// ClearAll moves all of them). Readers that build a value from the store
// take the generation first and store through SetIfCurrent, so a build that
// overlapped a write never lands in the cache.
type Cache struct {
	c   *ristretto.Cache[string, *entry]
	ttl time.Duration

	mu    sync.Mutex
	tags  map[string]map[string]*entry
	gens  map[int64]uint64
	epoch uint64
}

func NewCache(maxCost int64) (*Cache, error) {
	if maxCost <= 0 {
		maxCost = 10000
	}
	cache := &Cache{
		ttl:  DefaultTTL,
		tags: make(map[string]map[string]*entry),
		gens: make(map[int64]uint64),
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *entry]{
		NumCounters:        maxCost * 10, // number of keys to track frequency of
		MaxCost:            maxCost,
		BufferItems:        64, // number of keys per Get buffer
		IgnoreInternalCost: true,
		OnExit:             cache.forget,
	})
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	cache.c = c
	return cache, nil
}

func UserTag(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func UserKey(userID int64) string {
	return fmt.Sprintf("%s:%d", CacheUsers, userID)
}

func DashboardKey(userID int64, month string) string {
	return fmt.Sprintf("%s:%d:%s", CacheDashboard, userID, month)
}

func BudgetsKey(userID int64, day string) string {
	return fmt.Sprintf("%s:%d:%s", CacheBudgets, userID, day)
}

func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.c.Get(key)
	if !ok || e == nil {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key and records it against every tag. The write is
// visible to Get once Set returns.
func (c *Cache) Set(key string, value any, tags ...string) {
	e := &entry{key: key, value: value, tags: tags}
	c.mu.Lock()
	c.track(e)
	c.mu.Unlock()
	c.store(e)
}

// Generation returns the user's current cache generation.
func (c *Cache) Generation(userID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(userID)
}

// SetIfCurrent is Set for a value built from the user's data. It stores
// nothing when the user's generation is no longer gen, and drops the entry
// again when an invalidation raced with the store. It reports whether the
// value stayed cached.
func (c *Cache) SetIfCurrent(userID int64, gen uint64, key string, value any, tags ...string) bool {
	e := &entry{key: key, value: value, tags: tags}
	c.mu.Lock()
	if c.generation(userID) != gen {
		c.mu.Unlock()
		return false
	}
	c.track(e)
	c.mu.Unlock()

	c.store(e)

	c.mu.Lock()
	current := c.generation(userID) == gen
	c.mu.Unlock()
	if !current {
		c.c.Del(key)
		return false
	}
	return true
}

func (c *Cache) Del(key string) {
	c.c.Del(key)
}

// ClearTag removes every entry recorded under tag.
func (c *Cache) ClearTag(tag string) {
	c.mu.Lock()
	keys := c.tags[tag]
	delete(c.tags, tag)
	c.mu.Unlock()
	for key := range keys {
		c.c.Del(key)
	}
}

// InvalidateUser drops everything cached for a user.
func (c *Cache) InvalidateUser(userID int64) {
	c.mu.Lock()
	c.gens[userID]++
	c.mu.Unlock()
	c.ClearTag(UserTag(userID))
}

func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.epoch++
	c.tags = make(map[string]map[string]*entry)
	c.mu.Unlock()
	c.c.Clear()
}

func (c *Cache) Close() {
	c.c.Close()
}

func (c *Cache) generation(userID int64) uint64 {
	return c.epoch + c.gens[userID]
}

// track records e under its tags. Callers hold mu.
func (c *Cache) track(e *entry) {
	for _, tag := range e.tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]*entry)
			c.tags[tag] = keys
		}
		keys[e.key] = e
	}
}

// store must run without mu held: ristretto calls forget synchronously when
// it replaces an existing value.
func (c *Cache) store(e *entry) {
	if !c.c.SetWithTTL(e.key, e, 1, c.ttl) {
		c.forget(e)
		return
	}
	c.c.Wait()
}

// forget runs whenever an entry leaves ristretto (delete, replace, eviction,
// rejection, expiry). A tag only loses the key if it still points at this
// exact entry, so a newer value under the same key stays tracked.
func (c *Cache) forget(e *entry) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range e.tags {
		keys := c.tags[tag]
		if keys[e.key] != e {
			continue
		}
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(c.tags, tag)
		}
	}
}
