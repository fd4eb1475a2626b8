package db

import "testing"

func TestCacheTags(t *testing.T) {
	c, err := NewCache(100)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer c.Close()

	c.Set(DashboardKey(1, "2026-10"), "one", CacheDashboard, UserTag(1))
	c.Set(DashboardKey(2, "2026-10"), "two", CacheDashboard, UserTag(2))
	c.Set(UserKey(1), "user", CacheUsers)

	if v, ok := c.Get(DashboardKey(1, "2026-10")); !ok || v != "one" {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	c.InvalidateUser(1)
	if _, ok := c.Get(DashboardKey(1, "2026-10")); ok {
		t.Error("expected user 1 dashboard to be invalidated")
	}
	if _, ok := c.Get(DashboardKey(2, "2026-10")); !ok {
		t.Error("expected user 2 dashboard to survive")
	}
	if _, ok := c.Get(UserKey(1)); !ok {
		t.Error("expected user lookup to survive dashboard invalidation")
	}

	c.ClearTag(CacheUsers)
	if _, ok := c.Get(UserKey(1)); ok {
		t.Error("expected users group to be cleared")
	}

	c.ClearAll()
	if _, ok := c.Get(DashboardKey(2, "2026-10")); ok {
		t.Error("expected cache to be empty after ClearAll")
	}
}

func tracked(c *Cache, tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tags[tag])
}

func TestCacheForgetsRemovedKeys(t *testing.T) {
	c, err := NewCache(100)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer c.Close()

	for _, day := range []string{"2026-10-01", "2026-10-02", "2026-10-03"} {
		c.Set(BudgetsKey(1, day), day, CacheBudgets, UserTag(1))
	}
	if n := tracked(c, CacheBudgets); n != 3 {
		t.Fatalf("tracked budgets = %d, want 3", n)
	}

	c.Del(BudgetsKey(1, "2026-10-01"))
	if n := tracked(c, CacheBudgets); n != 2 {
		t.Errorf("tracked budgets after Del = %d, want 2", n)
	}
	if n := tracked(c, UserTag(1)); n != 2 {
		t.Errorf("tracked user keys after Del = %d, want 2", n)
	}

	// Replacing a value must not drop the new value's tags.
	c.Set(BudgetsKey(1, "2026-10-02"), "replaced", CacheBudgets, UserTag(1))
	if n := tracked(c, CacheBudgets); n != 2 {
		t.Errorf("tracked budgets after replace = %d, want 2", n)
	}
	c.InvalidateUser(1)
	if _, ok := c.Get(BudgetsKey(1, "2026-10-02")); ok {
		t.Error("expected replaced value to be invalidated with its user")
	}
	if n := tracked(c, CacheBudgets); n != 0 {
		t.Errorf("tracked budgets after invalidation = %d, want 0", n)
	}
	if n := tracked(c, UserTag(1)); n != 0 {
		t.Errorf("tracked user keys after invalidation = %d, want 0", n)
	}
}

func TestCacheSetIfCurrent(t *testing.T) {
	c, err := NewCache(100)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer c.Close()

	key := DashboardKey(1, "2026-10")
	gen := c.Generation(1)
	c.InvalidateUser(1)
	if c.SetIfCurrent(1, gen, key, "stale", CacheDashboard, UserTag(1)) {
		t.Error("SetIfCurrent accepted a value built before an invalidation")
	}
	if _, ok := c.Get(key); ok {
		t.Error("stale value was cached")
	}
	if n := tracked(c, CacheDashboard); n != 0 {
		t.Errorf("tracked dashboards = %d, want 0", n)
	}

	// Other users are not affected.
	other := c.Generation(2)
	if !c.SetIfCurrent(2, other, DashboardKey(2, "2026-10"), "fresh", CacheDashboard, UserTag(2)) {
		t.Error("SetIfCurrent rejected an unaffected user")
	}

	gen = c.Generation(1)
	if !c.SetIfCurrent(1, gen, key, "fresh", CacheDashboard, UserTag(1)) {
		t.Fatal("SetIfCurrent rejected a current generation")
	}
	if v, ok := c.Get(key); !ok || v != "fresh" {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	c.ClearAll()
	if c.SetIfCurrent(2, other, DashboardKey(2, "2026-10"), "stale", CacheDashboard, UserTag(2)) {
		t.Error("SetIfCurrent accepted a value built before ClearAll")
	}
}
