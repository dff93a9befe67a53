package preference

import "time"

const minutesPerDay = 24 * 60

// parseClock returns minutes since midnight for "HH:MM".
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func validClock(s string) bool {
	_, ok := parseClock(s)
	return ok
}

// InQuietHours reports whether t falls inside the window. The window is
// closed at Start and open at End; Start after End wraps past midnight.
// fallback is used when the window has no valid timezone of its own.
// Disabled, empty or malformed windows never match.
func InQuietHours(q QuietHours, t time.Time, fallback *time.Location) bool {
	if !q.Enabled {
		return false
	}
	start, ok1 := parseClock(q.Start)
	end, ok2 := parseClock(q.End)
	if !ok1 || !ok2 || start == end {
		return false
	}

	loc := fallback
	if q.Timezone != "" {
		if l, err := time.LoadLocation(q.Timezone); err == nil {
			loc = l
		}
	}
	if loc != nil {
		t = t.In(loc)
	}
	now := (t.Hour()*60 + t.Minute()) % minutesPerDay

	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}
