package gameserver

import (
	"fmt"
	"sync"
	"time"
)

// Clock is the engine's time source. The engine reads it once per tick;
// tests substitute a ManualClock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock advanced explicitly by tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
//
// Precondition: d must be non-negative.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// TimePeriod is a named phase of the game day.
type TimePeriod string

const (
	PeriodMidnight  TimePeriod = "Midnight"
	PeriodLateNight TimePeriod = "Late Night"
	PeriodDawn      TimePeriod = "Dawn"
	PeriodMorning   TimePeriod = "Morning"
	PeriodAfternoon TimePeriod = "Afternoon"
	PeriodDusk      TimePeriod = "Dusk"
	PeriodEvening   TimePeriod = "Evening"
	PeriodNight     TimePeriod = "Night"
)

// GameHour is a game-clock hour in [0, 23].
type GameHour int

// Period returns the named time period for this hour.
//
// Precondition: h is in [0, 23].
// Postcondition: Returns one of the eight TimePeriod constants.
func (h GameHour) Period() TimePeriod {
	switch {
	case h == 0:
		return PeriodMidnight
	case h >= 1 && h <= 4:
		return PeriodLateNight
	case h >= 5 && h <= 6:
		return PeriodDawn
	case h >= 7 && h <= 11:
		return PeriodMorning
	case h >= 12 && h <= 16:
		return PeriodAfternoon
	case h >= 17 && h <= 18:
		return PeriodDusk
	case h >= 19 && h <= 21:
		return PeriodEvening
	default: // 22-23
		return PeriodNight
	}
}

// String returns the hour in "HH:00" format.
func (h GameHour) String() string {
	return fmt.Sprintf("%02d:00", int(h))
}

// Calendar tracks game time of day. It is advanced by the engine tick and
// owned by the engine worker.
type Calendar struct {
	hour         GameHour
	hourDuration time.Duration
	lastAdvance  time.Time
}

// NewCalendar creates a calendar starting at startHour, advancing one game
// hour per hourDuration of engine time.
//
// Precondition: hourDuration > 0.
func NewCalendar(startHour int, hourDuration time.Duration) *Calendar {
	return &Calendar{hour: GameHour(startHour % 24), hourDuration: hourDuration}
}

// Hour returns the current game hour.
func (c *Calendar) Hour() GameHour { return c.hour }

// Advance rolls the game hour forward when enough engine time has passed.
//
// Postcondition: Returns true when the hour changed.
func (c *Calendar) Advance(now time.Time) bool {
	if c.lastAdvance.IsZero() {
		c.lastAdvance = now
		return false
	}
	if now.Sub(c.lastAdvance) < c.hourDuration {
		return false
	}
	c.lastAdvance = now
	c.hour = (c.hour + 1) % 24
	return true
}
