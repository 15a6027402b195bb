package feed

import (
	"regexp"
	"strings"
	"time"
)

// window is the active time range for a fetch: [start, end) in per-day mode,
// [start, +inf) in lookback mode.
type window struct {
	start   time.Time
	end     time.Time
	bounded bool
}

func (f *Fetcher) buildWindow(now time.Time, opts Options) window {
	if opts.PerDay {
		dayStart := midnight(now)
		if opts.TargetDate != "" {
			if t, err := time.ParseInLocation("2006-01-02", opts.TargetDate, now.Location()); err == nil {
				dayStart = t
			}
		}
		return window{start: dayStart, end: dayStart.AddDate(0, 0, 1), bounded: true}
	}

	days := opts.LookbackDays
	if days <= 0 {
		days = 30
	}
	return window{start: now.Add(-time.Duration(days) * 24 * time.Hour)}
}

// contains tests t against the window, tolerating timezone mismatch: when the
// entry timestamp carried no explicit zone its clock value is reinterpreted in
// the window's zone, and when it did, the window boundaries are reinterpreted
// in the entry's zone. Clock values are never converted, so an entry is not
// excluded purely because only one side has zone information.
func (w window) contains(t time.Time, explicitZone bool) bool {
	start, end := w.start, w.end
	if explicitZone {
		start = rezone(start, t.Location())
		if w.bounded {
			end = rezone(end, t.Location())
		}
	} else {
		t = rezone(t, w.start.Location())
	}

	if t.Before(start) {
		return false
	}
	if w.bounded && !t.Before(end) {
		return false
	}
	return true
}

// rezone rebuilds t's clock value in loc without converting it.
func rezone(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// zonePattern matches the explicit timezone suffixes that RSS dates carry:
// "Z", numeric offsets, and the common abbreviations.
var zonePattern = regexp.MustCompile(`(?i)(Z|[+-][0-9]{2}:?[0-9]{2}|\b(UT|GMT|UTC|EST|EDT|CST|CDT|MST|MDT|PST|PDT))$`)

func hasExplicitZone(raw string) bool {
	return zonePattern.MatchString(strings.TrimSpace(raw))
}
