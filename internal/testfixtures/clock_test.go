package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.Equal(t, ReferenceTime(), clock.Now())
	assert.Equal(t, ReferenceTime(), clock.Now(), "a frozen clock does not move on read")

	assert.Equal(t, ReferenceTime().Add(90*time.Minute), clock.Advance(90*time.Minute))

	later := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	clock.Set(later)
	now := clock.NowFunc()
	assert.Equal(t, later, now())

	var nilClock *Clock
	assert.NotNil(t, nilClock.NowFunc())
}

func TestSteppingClock(t *testing.T) {
	clock := NewSteppingClock(ReferenceTime(), time.Second)

	first := clock.Now()
	second := clock.Now()
	assert.Equal(t, time.Second, second.Sub(first))
}
