package nlq

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeRange is a half-open [From, To) timestamp window derived from a
// temporal phrase in a question.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// monthNames is scanned in calendar order so a question naming several
// months always resolves to the same one. The word "may" is always read as
// the month, even where the question means the modal verb.
var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// ExtractTimeRange scans the question for a bounded vocabulary of relative
// and absolute time phrases and converts the first recognised one into a
// timestamp window. An unrecognised phrase simply yields ok=false — the
// caller degrades to no temporal filter, never an error.
func ExtractTimeRange(question string, now time.Time) (TimeRange, bool) {
	q := strings.ToLower(question)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(q, "today"):
		return TimeRange{From: today, To: today.AddDate(0, 0, 1)}, true
	case strings.Contains(q, "yesterday"):
		return TimeRange{From: today.AddDate(0, 0, -1), To: today}, true
	case strings.Contains(q, "last week"):
		weekStart := startOfWeek(today)
		return TimeRange{From: weekStart.AddDate(0, 0, -7), To: weekStart}, true
	case strings.Contains(q, "this week"):
		weekStart := startOfWeek(today)
		return TimeRange{From: weekStart, To: weekStart.AddDate(0, 0, 7)}, true
	case strings.Contains(q, "last month"):
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return TimeRange{From: monthStart.AddDate(0, -1, 0), To: monthStart}, true
	case strings.Contains(q, "this month"):
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return TimeRange{From: monthStart, To: monthStart.AddDate(0, 1, 0)}, true
	case strings.Contains(q, "last year"):
		yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return TimeRange{From: yearStart.AddDate(-1, 0, 0), To: yearStart}, true
	case strings.Contains(q, "this year"):
		yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return TimeRange{From: yearStart, To: yearStart.AddDate(1, 0, 0)}, true
	}

	for _, name := range monthNames {
		if !containsWord(q, name) {
			continue
		}
		month := monthsByName[name]
		year := now.Year()
		if month > now.Month() {
			year--
		}
		from := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
		return TimeRange{From: from, To: from.AddDate(0, 1, 0)}, true
	}

	if match := yearPattern.FindString(q); match != "" {
		year, err := strconv.Atoi(match)
		if err == nil {
			from := time.Date(year, 1, 1, 0, 0, 0, 0, now.Location())
			return TimeRange{From: from, To: from.AddDate(1, 0, 0)}, true
		}
	}

	return TimeRange{}, false
}

// temporalWords are tokens consumed by the extractor; they carry no retrieval
// signal and are dropped from the key-term set.
var temporalWords = map[string]struct{}{
	"today": {}, "yesterday": {}, "last": {}, "this": {}, "week": {},
	"month": {}, "year": {}, "ago": {}, "recently": {},
}

func isTemporalWord(word string) bool {
	lower := strings.ToLower(word)
	if _, ok := temporalWords[lower]; ok {
		return true
	}
	if _, ok := monthsByName[lower]; ok {
		return true
	}
	return yearPattern.MatchString(lower)
}

func startOfWeek(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // treat Sunday as the end of the week
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isAlnum(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isAlnum(text[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
