package application

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/session-scheduler/internal/recurrence"
)

const (
	defaultPreviewCacheSize = 256
	defaultPreviewCacheTTL  = 5 * time.Minute
)

// previewCache remembers rule previews. Previews are pure functions of the
// rule and the requested count, so entries never need invalidation.
type previewCache struct {
	entries *expirable.LRU[string, RulePreview]
}

func newPreviewCache(size int, ttl time.Duration) *previewCache {
	if size <= 0 {
		size = defaultPreviewCacheSize
	}
	if ttl <= 0 {
		ttl = defaultPreviewCacheTTL
	}
	return &previewCache{entries: expirable.NewLRU[string, RulePreview](size, nil, ttl)}
}

func (c *previewCache) Get(key string) (RulePreview, bool) {
	if c == nil {
		return RulePreview{}, false
	}
	preview, ok := c.entries.Get(key)
	if !ok {
		return RulePreview{}, false
	}
	return clonePreview(preview), true
}

func (c *previewCache) Store(key string, preview RulePreview) {
	if c == nil {
		return
	}
	c.entries.Add(key, clonePreview(preview))
}

func (c *previewCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func clonePreview(p RulePreview) RulePreview {
	if p.Occurrences != nil {
		p.Occurrences = append([]Occurrence(nil), p.Occurrences...)
	}
	return p
}

// previewCacheKey identifies a rule by its normalized fields. The zone name
// is included because occurrence instants depend on it.
func previewCacheKey(rule recurrence.Rule, maxCount int) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s|%d",
		rule.Weekday,
		rule.RangeStart.Format(time.RFC3339Nano),
		rule.RangeEnd.Format(time.RFC3339Nano),
		rule.RangeStart.Location(),
		rule.FrequencyWeeks,
		rule.ClockTime,
		rule.DurationHours.String(),
		maxCount,
	)
}
