// Package smartdate turns free-form date text ("yesterday", "3 weeks ago",
// "last friday", "15-03-2024") into a concrete point in time.
//
// Parsing never fails: input that matches no rule resolves to the reference
// time. Rules are tried in a fixed order and the first match wins:
//
//  1. D-M-Y / D/M/Y / D.M.Y (two-digit years are 2000+YY)
//  2. Y-M-D / Y/M/D / Y.M.D
//  3. "today", "yesterday"
//  4. "<N> day(s)|week(s)|month(s)|year(s) ago"
//  5. "last <weekday>" (strictly before today)
//  6. "<weekday>" (most recent, today included)
//  7. common layouts, then natural-language phrases ("next tuesday", "2 hours ago")
package smartdate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	dmyPattern  = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})$`)
	ymdPattern  = regexp.MustCompile(`^(\d{4})[/.\-](\d{1,2})[/.\-](\d{1,2})$`)
	agoPattern  = regexp.MustCompile(`^(\d+)\s+(days?|weeks?|months?|years?)\s+ago$`)
	lastPattern = regexp.MustCompile(`^last\s+([a-z]+)$`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// fallbackLayouts are tried, in order, before natural-language parsing.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon, 02 Jan 2006",
	"Mon Jan 2 2006",
	time.RFC1123,
	time.RFC1123Z,
}

var natural = newNaturalParser()

func newNaturalParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Parse interprets input relative to the current time.
func Parse(input string) time.Time {
	return ParseAt(input, time.Now())
}

// ParseAt interprets input relative to now. Calendar dates are returned at
// midnight in now's location; relative forms keep now's time of day.
func ParseAt(input string, now time.Time) time.Time {
	trimmed := strings.TrimSpace(input)
	s := strings.ToLower(trimmed)
	if s == "" {
		return now
	}

	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		day, month, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return calendarDate(year, month, day, now.Location())
	}

	if m := ymdPattern.FindStringSubmatch(s); m != nil {
		return calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), now.Location())
	}

	switch s {
	case "today":
		return now
	case "yesterday":
		return now.AddDate(0, 0, -1)
	}

	if m := agoPattern.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return subtract(now, n, m[2])
		}
	}

	if m := lastPattern.FindStringSubmatch(s); m != nil {
		if wd, ok := weekdays[m[1]]; ok {
			diff := (int(now.Weekday()) - int(wd) + 7) % 7
			if diff == 0 {
				diff = 7
			}
			return now.AddDate(0, 0, -diff)
		}
	}

	if wd, ok := weekdays[s]; ok {
		diff := (int(now.Weekday()) - int(wd) + 7) % 7
		return now.AddDate(0, 0, -diff)
	}

	if t, ok := parseLayouts(trimmed, now.Location()); ok {
		return t
	}

	if t, ok := parseNatural(s, now); ok {
		return t
	}

	return now
}

func subtract(now time.Time, n int, unit string) time.Time {
	switch {
	case strings.HasPrefix(unit, "day"):
		return now.AddDate(0, 0, -n)
	case strings.HasPrefix(unit, "week"):
		return now.AddDate(0, 0, -7*n)
	case strings.HasPrefix(unit, "month"):
		return now.AddDate(0, -n, 0)
	default:
		return now.AddDate(-n, 0, 0)
	}
}

// calendarDate normalizes out-of-range components the way time.Date does
// (31-02 becomes 2/3 March).
func calendarDate(year, month, day int, loc *time.Location) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

func parseLayouts(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNatural(s string, now time.Time) (t time.Time, ok bool) {
	// rule callbacks index into regexp groups; a bad match must not escape
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	r, err := natural.Parse(s, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
