/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package model

import (
	"fmt"
	"sync"
)

// SessionCounters is the set of cumulative traffic counters tracked per
// session for cumulative-to-differential conversion (spec.md §4.3).
type SessionCounters struct {
	TotalBytes         int64
	BytesFromClient    int64
	BytesFromServer    int64
	PacketsFromClient  int64
	PacketsFromServer  int64
}

// Diff computes this-minus-prev for every counter.
func (c SessionCounters) Diff(prev SessionCounters) SessionCounters {
	return SessionCounters{
		TotalBytes:        c.TotalBytes - prev.TotalBytes,
		BytesFromClient:   c.BytesFromClient - prev.BytesFromClient,
		BytesFromServer:   c.BytesFromServer - prev.BytesFromServer,
		PacketsFromClient: c.PacketsFromClient - prev.PacketsFromClient,
		PacketsFromServer: c.PacketsFromServer - prev.PacketsFromServer,
	}
}

// Regresses reports whether curr represents a regression versus prev: the
// update is rejected when either total_bytes or packets_from_client goes
// backwards (spec.md §4.3 cumulative-to-differential conversion).
func (c SessionCounters) Regresses(prev SessionCounters) bool {
	return c.TotalBytes < prev.TotalBytes || c.PacketsFromClient < prev.PacketsFromClient
}

// SessionKey is the composite key "tenant::location::device::session-id-32"
// (spec.md §3.1).
func SessionKey(tenant, location, device string, sessionID32 uint32) string {
	return fmt.Sprintf("%s::%s::%s::%d", tenant, location, device, sessionID32)
}

type sessionCacheEntry struct {
	counters SessionCounters
	// lruPrev/lruNext implement an intrusive doubly linked list for O(1)
	// LRU eviction, mirroring the bounded-cache treatment the teacher uses
	// for its own connection-tracking caches.
	lruPrev, lruNext string
}

// SessionCounterCache is the bounded, mutex-guarded cache named in spec.md
// §3.1/§5: a single mutex covers read-update-write; entries are created on
// first non-close update, updated thereafter, removed on session-close or
// evicted LRU-first when the cache is full.
type SessionCounterCache struct {
	mu       sync.Mutex
	maxSize  int
	entries  map[string]*sessionCacheEntry
	lruHead  string // most recently used
	lruTail  string // least recently used
}

func NewSessionCounterCache(maxSize int) *SessionCounterCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &SessionCounterCache{
		maxSize: maxSize,
		entries: make(map[string]*sessionCacheEntry, maxSize),
	}
}

func (c *SessionCounterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Update applies a non-close update. It rejects (ok=false) a regressing
// cumulative; on acceptance, it returns the per-counter diff against the
// previously stored cumulative (zero-valued on first sight).
func (c *SessionCounterCache) Update(key string, curr SessionCounters) (diff SessionCounters, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, exists := c.entries[key]
	if exists {
		if curr.Regresses(ent.counters) {
			return SessionCounters{}, false
		}
		diff = curr.Diff(ent.counters)
		ent.counters = curr
		c.touch(key)
		return diff, true
	}

	// first sighting: the diff is the cumulative itself
	diff = curr
	c.insert(key, curr)
	return diff, true
}

// Close applies the final update for a session and removes its cache entry,
// returning the diff against the last stored cumulative. If the session was
// never seen before, the diff is the closing cumulative itself.
func (c *SessionCounterCache) Close(key string, final SessionCounters) (diff SessionCounters, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, exists := c.entries[key]
	if !exists {
		c.deleteUnlocked(key) // no-op, defensive
		return final, true
	}
	if final.Regresses(ent.counters) {
		c.deleteUnlocked(key)
		return SessionCounters{}, false
	}
	diff = final.Diff(ent.counters)
	c.deleteUnlocked(key)
	return diff, true
}

func (c *SessionCounterCache) insert(key string, counters SessionCounters) {
	if len(c.entries) >= c.maxSize {
		c.evictOldestUnlocked()
	}
	c.entries[key] = &sessionCacheEntry{counters: counters}
	c.pushFrontUnlocked(key)
}

func (c *SessionCounterCache) deleteUnlocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	c.unlinkUnlocked(key)
	delete(c.entries, key)
}

func (c *SessionCounterCache) evictOldestUnlocked() {
	if c.lruTail == `` {
		return
	}
	oldest := c.lruTail
	c.deleteUnlocked(oldest)
}

func (c *SessionCounterCache) touch(key string) {
	c.unlinkUnlocked(key)
	c.pushFrontUnlocked(key)
}

func (c *SessionCounterCache) unlinkUnlocked(key string) {
	ent, ok := c.entries[key]
	if !ok {
		return
	}
	if ent.lruPrev != `` {
		if p, ok := c.entries[ent.lruPrev]; ok {
			p.lruNext = ent.lruNext
		}
	} else if c.lruHead == key {
		c.lruHead = ent.lruNext
	}
	if ent.lruNext != `` {
		if n, ok := c.entries[ent.lruNext]; ok {
			n.lruPrev = ent.lruPrev
		}
	} else if c.lruTail == key {
		c.lruTail = ent.lruPrev
	}
	ent.lruPrev, ent.lruNext = ``, ``
}

func (c *SessionCounterCache) pushFrontUnlocked(key string) {
	ent := c.entries[key]
	ent.lruPrev = ``
	ent.lruNext = c.lruHead
	if c.lruHead != `` {
		if h, ok := c.entries[c.lruHead]; ok {
			h.lruPrev = key
		}
	}
	c.lruHead = key
	if c.lruTail == `` {
		c.lruTail = key
	}
}
