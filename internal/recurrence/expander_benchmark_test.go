package recurrence

import (
	"testing"
	"time"
)

func BenchmarkGenerate_YearOfWeeklySessions(b *testing.B) {
	rule := mondayRule()
	rule.RangeStart = day(2025, time.January, 1)
	rule.RangeEnd = day(2025, time.December, 31)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if got := Generate(rule); len(got) != 52 {
			b.Fatalf("expected 52 occurrences, got %d", len(got))
		}
	}
}
