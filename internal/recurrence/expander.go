package recurrence

import "time"

// Generate expands rule into its full, ordered list of occurrences. It does
// not validate; an infeasible rule yields an empty list.
func Generate(rule Rule) []Occurrence {
	return expand(rule, rule.startDate(), rule.endDate())
}

// GenerateWithinWindow expands only the occurrences whose dates fall inside
// both the rule's range and [windowStart, windowEnd]. Sequence numbers keep
// their position within the full expansion, so a window equal to the rule's
// range produces exactly Generate(rule). The rule's phase is also kept: the
// window is clamped but never used as a new anchor, so a window that opens on
// an off-phase week skips to the next on-phase date.
func GenerateWithinWindow(rule Rule, windowStart, windowEnd time.Time) []Occurrence {
	loc := rule.location()

	lower := rule.startDate()
	if ws := dateOf(windowStart, loc); ws.After(lower) {
		lower = ws
	}
	upper := rule.endDate()
	if we := dateOf(windowEnd, loc); we.Before(upper) {
		upper = we
	}
	return expand(rule, lower, upper)
}

// IsActiveOn reports whether rule has an occurrence on target's calendar date.
func IsActiveOn(rule Rule, target time.Time) bool {
	if rule.FrequencyWeeks < MinFrequencyWeeks {
		return false
	}
	first, ok := rule.firstDate()
	if !ok {
		return false
	}

	date := dateOf(target, rule.location())
	if date.Before(rule.startDate()) || date.After(rule.endDate()) {
		return false
	}
	if date.Weekday() != first.Weekday() {
		return false
	}

	days := daysBetween(first, date)
	if days < 0 {
		return false
	}
	return (days/daysPerWeek)%rule.FrequencyWeeks == 0
}

// Preview returns at most maxCount leading occurrences together with the
// size of the full expansion.
func Preview(rule Rule, maxCount int) ([]Occurrence, int) {
	all := Generate(rule)
	total := len(all)
	if maxCount < 0 {
		maxCount = 0
	}
	if maxCount < total {
		all = all[:maxCount]
	}
	return all, total
}

// expand walks the rule's date sequence starting from the first step on or
// after lower and stops after upper.
func expand(rule Rule, lower, upper time.Time) []Occurrence {
	if rule.FrequencyWeeks < MinFrequencyWeeks {
		return nil
	}
	hour, minute, ok := rule.clock()
	if !ok {
		return nil
	}
	first, ok := rule.firstDate()
	if !ok {
		return nil
	}

	step := rule.FrequencyWeeks * daysPerWeek
	k := 0
	if lower.After(first) {
		k = (daysBetween(first, lower) + step - 1) / step
	}

	loc := rule.location()
	duration := rule.Duration()

	var occurrences []Occurrence
	for date := first.AddDate(0, 0, k*step); !date.After(upper); date = first.AddDate(0, 0, k*step) {
		start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
		occurrences = append(occurrences, Occurrence{
			SourceID: rule.SourceID,
			Sequence: k + 1,
			Start:    start,
			End:      start.Add(duration),
		})
		k++
	}
	return occurrences
}
