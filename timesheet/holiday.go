package timesheet

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// =============================================================================
// HOLIDAYS - Lookup contract and process-wide cache
// =============================================================================

// HolidaySource fetches public holidays, keyed by "YYYY-MM-DD" date with
// the holiday name as value. Implementations may fail.
type HolidaySource interface {
	FetchHolidays(ctx context.Context, year int, stateCode string) (map[string]string, error)
}

// HolidayLookup is what generation consumes. It never fails: an
// unavailable source yields an empty map.
type HolidayLookup interface {
	Holidays(ctx context.Context, year int, stateCode string) map[string]string
}

type holidayKey struct {
	year  int
	state string
}

// HolidayCache memoizes a HolidaySource per (year, state code). Entries
// live until Invalidate or Clear. Safe for concurrent use.
type HolidayCache struct {
	source HolidaySource
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[holidayKey]map[string]string
}

// NewHolidayCache wraps source. A nil logger discards logs.
func NewHolidayCache(source HolidaySource, logger *zap.Logger) *HolidayCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayCache{
		source:  source,
		logger:  logger,
		entries: make(map[holidayKey]map[string]string),
	}
}

// Holidays returns the cached holidays, fetching them on first use.
// Fetch failures are logged and produce an empty map that is not cached,
// so the next call retries.
func (c *HolidayCache) Holidays(ctx context.Context, year int, stateCode string) map[string]string {
	key := holidayKey{year: year, state: stateCode}

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return copyHolidays(cached)
	}

	fetched, err := c.fetch(ctx, year, stateCode)
	if err != nil {
		c.logger.Warn("holiday lookup failed, continuing without holidays",
			zap.Int("year", year),
			zap.String("state", stateCode),
			zap.Error(err))
		return map[string]string{}
	}

	c.mu.Lock()
	c.entries[key] = fetched
	c.mu.Unlock()
	return copyHolidays(fetched)
}

func (c *HolidayCache) fetch(ctx context.Context, year int, stateCode string) (map[string]string, error) {
	if c.source == nil {
		return nil, fmt.Errorf("no holiday source configured")
	}
	fetched, err := c.source.FetchHolidays(ctx, year, stateCode)
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		fetched = map[string]string{}
	}
	return copyHolidays(fetched), nil
}

// Invalidate drops one (year, state code) entry.
func (c *HolidayCache) Invalidate(year int, stateCode string) {
	c.mu.Lock()
	delete(c.entries, holidayKey{year: year, state: stateCode})
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *HolidayCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[holidayKey]map[string]string)
	c.mu.Unlock()
}

// Len returns the number of cached (year, state code) entries.
func (c *HolidayCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyHolidays(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
