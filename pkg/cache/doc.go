// Package cache provides a bounded, thread-safe LRU cache whose entries
// optionally expire after a fixed TTL.
//
// The preference engine keeps recently read user preference documents here
// so a burst of notifications to one user costs a single store read:
//
//	c := cache.New[string, preference.Preferences](10_000, time.Minute)
//	c.Set(userID, prefs)
//	prefs, ok := c.Get(userID)
//
// Expired entries are dropped lazily on access; when the cache is full the
// least recently used entry is evicted.
package cache
