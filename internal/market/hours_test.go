package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nyTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

func TestCalendar_IsTradingDay(t *testing.T) {
	c := NewNYSECalendar()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"regular monday", nyTime(t, 2026, 3, 2, 12, 0), true},
		{"saturday", nyTime(t, 2026, 3, 7, 12, 0), false},
		{"sunday", nyTime(t, 2026, 3, 8, 12, 0), false},
		{"new years day", nyTime(t, 2026, 1, 1, 12, 0), false},
		{"juneteenth", nyTime(t, 2026, 6, 19, 12, 0), false},
		{"christmas", nyTime(t, 2026, 12, 25, 12, 0), false},
		{"day after christmas holiday", nyTime(t, 2026, 12, 28, 12, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsTradingDay(tt.at))
		})
	}
}

func TestCalendar_IsOpenAt(t *testing.T) {
	c := NewNYSECalendar()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", nyTime(t, 2026, 3, 2, 9, 29), false},
		{"at the open", nyTime(t, 2026, 3, 2, 9, 30), true},
		{"midday", nyTime(t, 2026, 3, 2, 12, 0), true},
		{"just before close", nyTime(t, 2026, 3, 2, 15, 59), true},
		{"at the close", nyTime(t, 2026, 3, 2, 16, 0), false},
		{"weekend midday", nyTime(t, 2026, 3, 7, 12, 0), false},
		{"holiday midday", nyTime(t, 2026, 6, 19, 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsOpenAt(tt.at))
		})
	}
}

func TestCalendar_NextOpen(t *testing.T) {
	c := NewNYSECalendar()

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			"before the open same day",
			nyTime(t, 2026, 3, 2, 8, 0),
			nyTime(t, 2026, 3, 2, 9, 30),
		},
		{
			"after the open rolls to tomorrow",
			nyTime(t, 2026, 3, 2, 10, 0),
			nyTime(t, 2026, 3, 3, 9, 30),
		},
		{
			"friday evening rolls over the weekend",
			nyTime(t, 2026, 3, 6, 18, 0),
			nyTime(t, 2026, 3, 9, 9, 30),
		},
		{
			"thursday before good friday skips to monday",
			nyTime(t, 2026, 4, 2, 18, 0),
			nyTime(t, 2026, 4, 6, 9, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, c.NextOpen(tt.at).Equal(tt.want),
				"NextOpen = %s, want %s", c.NextOpen(tt.at), tt.want)
		})
	}
}

func TestCalendar_CloseTime(t *testing.T) {
	c := NewNYSECalendar()
	at := nyTime(t, 2026, 3, 2, 10, 0)
	assert.True(t, c.CloseTime(at).Equal(nyTime(t, 2026, 3, 2, 16, 0)))
}
