package cache

import "time"

// bytesPerEntryEstimate is a rough per-entry footprint (map slot, entry
// struct, profile strings) used for the memory estimate in Stats. It is a
// monitoring aid, not an accounting guarantee.
const bytesPerEntryEstimate = 500

// Stats is a point-in-time snapshot of the cache counters. Monitoring
// only — nothing here feeds back into cache behavior.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Requests uint64

	// HitRate is hits/requests as a percentage, 0 when idle.
	HitRate float64

	// Size counts resident entries; Expired counts the subset whose
	// deadline has passed but which the janitor has not reaped yet.
	Size    int
	Expired int

	Evictions uint64

	BulkLoads    uint64
	LastBulkLoad time.Time
	LastCleanup  time.Time

	// MemoryEstimate is Size × a constant per-entry figure, in bytes.
	MemoryEstimate int64
}

// Stats assembles a snapshot. Counters are read atomically; the map scan
// for the expired count runs under the read lock.
func (c *userCache) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Requests:  c.requests.Load(),
		Evictions: c.evictions.Load(),
		BulkLoads: c.bulkLoads.Load(),
	}
	if s.Requests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Requests) * 100
	}

	c.mu.RLock()
	s.Size = len(c.entries)
	now := c.now()
	for _, e := range c.entries {
		if !e.exp.After(now) {
			s.Expired++
		}
	}
	s.LastBulkLoad = c.lastBulkLoad
	s.LastCleanup = c.lastCleanup
	c.mu.RUnlock()

	s.MemoryEstimate = int64(s.Size) * bytesPerEntryEstimate
	return s
}
