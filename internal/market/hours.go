package market

import (
	"time"
)

// TradingWindow is the daily open-to-close span of an exchange
type TradingWindow struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// Calendar holds one exchange's trading hours and holidays. The strategy
// trades US equities and options only, so a single NYSE calendar is enough.
type Calendar struct {
	Code     string
	Timezone *time.Location
	Window   TradingWindow
	holidays map[string]struct{}
}

// NewNYSECalendar builds the NYSE calendar with regular hours 9:30-16:00 ET
// and the 2026 full-day holidays.
func NewNYSECalendar() *Calendar {
	nyLoc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// tzdata missing on the host; ET is the whole point of this calendar
		panic("market: cannot load America/New_York: " + err.Error())
	}

	holidays := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, nyLoc),   // New Year's Day
		time.Date(2026, 1, 19, 0, 0, 0, 0, nyLoc),  // MLK Day
		time.Date(2026, 2, 16, 0, 0, 0, 0, nyLoc),  // Presidents Day
		time.Date(2026, 4, 3, 0, 0, 0, 0, nyLoc),   // Good Friday
		time.Date(2026, 5, 25, 0, 0, 0, 0, nyLoc),  // Memorial Day
		time.Date(2026, 6, 19, 0, 0, 0, 0, nyLoc),  // Juneteenth
		time.Date(2026, 7, 3, 0, 0, 0, 0, nyLoc),   // Independence Day (observed)
		time.Date(2026, 9, 7, 0, 0, 0, 0, nyLoc),   // Labor Day
		time.Date(2026, 11, 26, 0, 0, 0, 0, nyLoc), // Thanksgiving
		time.Date(2026, 12, 25, 0, 0, 0, 0, nyLoc), // Christmas
	}

	c := &Calendar{
		Code:     "XNYS",
		Timezone: nyLoc,
		Window:   TradingWindow{OpenHour: 9, OpenMinute: 30, CloseHour: 16, CloseMinute: 0},
		holidays: make(map[string]struct{}, len(holidays)),
	}
	for _, h := range holidays {
		c.holidays[h.Format("2006-01-02")] = struct{}{}
	}
	return c
}

// IsTradingDay reports whether the exchange opens on t's date
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.Timezone)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[local.Format("2006-01-02")]
	return !holiday
}

// IsOpenAt reports whether the exchange is inside its trading window at t
func (c *Calendar) IsOpenAt(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	local := t.In(c.Timezone)
	return !local.Before(c.openAt(local)) && local.Before(c.closeAt(local))
}

// NextOpen returns the next opening timestamp at or after t
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.Timezone)
	for i := 0; i < 14; i++ {
		day := local.AddDate(0, 0, i)
		if !c.IsTradingDay(day) {
			continue
		}
		open := c.openAt(day)
		if i == 0 && !local.Before(open) {
			continue
		}
		return open
	}
	// Two weeks without a trading day does not happen on a real calendar
	return local
}

// CloseTime returns the closing timestamp for t's trading day
func (c *Calendar) CloseTime(t time.Time) time.Time {
	return c.closeAt(t.In(c.Timezone))
}

func (c *Calendar) openAt(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), c.Window.OpenHour, c.Window.OpenMinute, 0, 0, c.Timezone)
}

func (c *Calendar) closeAt(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), c.Window.CloseHour, c.Window.CloseMinute, 0, 0, c.Timezone)
}
