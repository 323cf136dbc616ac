package dnsresolver

import (
	"net"
	"sync"
	"time"
)

// entry is one cached answer, scoped by the record's own TTL like the
// original resolver's cache_t rather than a single resolver-wide value.
type entry struct {
	ip        net.IP
	forbidden bool
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false // TTL=0 means "cache forever", matching the original's create==0 branch
	}
	return now.Sub(e.createdAt) > e.ttl
}

// Cache holds resolved/forbidden answers split by address family, guarded
// by its own mutex so concurrent resolves from multiple brokers don't
// race (§5 "recursive-mutex style locking", grounded on the teacher's
// upstreamState split-lock pattern).
type Cache struct {
	mu   sync.Mutex
	ipv4 map[string]entry
	ipv6 map[string]entry
}

func NewCache() *Cache {
	return &Cache{ipv4: make(map[string]entry), ipv6: make(map[string]entry)}
}

func (c *Cache) bucket(family int) map[string]entry {
	if family == 6 {
		return c.ipv6
	}
	return c.ipv4
}

// Get returns a cached IP for domain if present and not expired.
func (c *Cache) Get(family int, domain string) (ip net.IP, forbidden bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.bucket(family)[domain]
	if !found || e.expired(time.Now()) {
		return nil, false, false
	}
	return e.ip, e.forbidden, true
}

// Set stores a successful resolution with the record's TTL.
func (c *Cache) Set(family int, domain string, ip net.IP, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket(family)[domain] = entry{ip: ip, createdAt: time.Now(), ttl: ttl}
}

// SetForbidden marks domain as blacklisted for family, never expiring
// (mirrors the original's forbidden cache_t entries).
func (c *Cache) SetForbidden(family int, domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket(family)[domain] = entry{forbidden: true, createdAt: time.Now()}
}

// Clear drops every cached entry for both families.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ipv4 = make(map[string]entry)
	c.ipv6 = make(map[string]entry)
}
