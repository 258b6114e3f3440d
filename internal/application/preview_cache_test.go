package application

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/example/session-scheduler/internal/recurrence"
)

func TestPreviewCache(t *testing.T) {
	cache := newPreviewCache(2, time.Minute)

	preview := RulePreview{Total: 3, Occurrences: []Occurrence{{Sequence: 1}}}
	cache.Store("a", preview)
	preview.Occurrences[0].Sequence = 7

	got, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got.Occurrences[0].Sequence)

	got.Occurrences[0].Sequence = 9
	again, _ := cache.Get("a")
	assert.Equal(t, 1, again.Occurrences[0].Sequence)

	cache.Store("b", RulePreview{})
	cache.Store("c", RulePreview{})
	assert.Equal(t, 2, cache.Len())
	_, ok = cache.Get("a")
	assert.False(t, ok, "oldest entry is evicted")

	var nilCache *previewCache
	_, ok = nilCache.Get("a")
	assert.False(t, ok)
	assert.Zero(t, nilCache.Len())
}

func TestPreviewCacheKey(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	base := recurrence.Rule{
		Weekday:        recurrence.Monday,
		RangeStart:     time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		RangeEnd:       time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		FrequencyWeeks: 1,
		ClockTime:      "10:00",
		DurationHours:  decimal.RequireFromString("1.5"),
	}

	shifted := base
	shifted.RangeStart = time.Date(2025, 1, 6, 0, 0, 0, 0, tokyo)

	assert.Equal(t, previewCacheKey(base, 5), previewCacheKey(base, 5))
	assert.NotEqual(t, previewCacheKey(base, 5), previewCacheKey(base, 6))
	assert.NotEqual(t, previewCacheKey(base, 5), previewCacheKey(shifted, 5))
}
