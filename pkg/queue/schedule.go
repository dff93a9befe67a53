package queue

import (
	"fmt"
	"time"
)

// Schedule determines when a periodic task runs next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// Every runs a task at a fixed interval. It panics on a non-positive d.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic("queue: Every requires a positive interval")
	}
	return intervalSchedule{every: d}
}

// DailyAt runs a task once a day at hour:minute in the location of the clock.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour % 24, minute: minute % 60}
}

// ParseDaily parses an "HH:MM" time of day into a daily schedule.
func ParseDaily(hhmm string) (Schedule, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, hhmm, err)
	}
	return DailyAt(t.Hour(), t.Minute()), nil
}
