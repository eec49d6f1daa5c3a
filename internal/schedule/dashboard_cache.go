package schedule

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// dashboardCache stores recently built dashboards to avoid repeated
// aggregation for identical queries. Entries remember which groups they
// cover so a structural change flushes only the affected views. The cache
// is never authoritative: invalidation makes re-reads reflect mutations
// immediately.
type dashboardCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]dashboardCacheEntry
}

type dashboardCacheEntry struct {
	dashboard Dashboard
	groupIDs  []string
	expiresAt time.Time
}

func newDashboardCache(ttl time.Duration, maxEntries int, now func() time.Time) *dashboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &dashboardCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]dashboardCacheEntry),
	}
}

func (c *dashboardCache) Get(key string) (Dashboard, bool) {
	if c == nil {
		return Dashboard{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Dashboard{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return Dashboard{}, false
	}
	return cloneDashboard(entry.dashboard), true
}

func (c *dashboardCache) Store(key string, groupIDs []string, dashboard Dashboard) {
	if c == nil {
		return
	}
	cloned := cloneDashboard(dashboard)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = dashboardCacheEntry{
		dashboard: cloned,
		groupIDs:  slices.Clone(groupIDs),
		expiresAt: expiry,
	}
}

// InvalidateGroup drops every cached dashboard that covers the group.
func (c *dashboardCache) InvalidateGroup(groupID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if slices.Contains(entry.groupIDs, groupID) {
			delete(c.entries, key)
		}
	}
}

func (c *dashboardCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *dashboardCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneDashboard(dashboard Dashboard) Dashboard {
	return Dashboard{
		Past:     slices.Clone(dashboard.Past),
		Upcoming: slices.Clone(dashboard.Upcoming),
	}
}

func buildDashboardCacheKey(memberID, groupID string, daysAhead, daysBehind int, today time.Time) string {
	builder := strings.Builder{}
	builder.WriteString(memberID)
	builder.WriteString("|")
	builder.WriteString(groupID)
	builder.WriteString("|")
	builder.WriteString(strconv.Itoa(daysAhead))
	builder.WriteString("|")
	builder.WriteString(strconv.Itoa(daysBehind))
	builder.WriteString("|")
	builder.WriteString(today.Format("2006-01-02"))
	return builder.String()
}
