package normalize

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseROCTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{
			name:  "full timestamp with slashes",
			input: "114/01/08 09:30:00",
			want:  time.Date(2025, 1, 8, 9, 30, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "timestamp without seconds",
			input: "114/1/8 9:30",
			want:  time.Date(2025, 1, 8, 9, 30, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "date only defaults to midnight",
			input: "113-12-31",
			want:  time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "two digit year",
			input: "99/6/15",
			want:  time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "empty string",
			input: "",
			ok:    false,
		},
		{
			name:  "gregorian format rejected",
			input: "2025-01-08",
			ok:    false,
		},
		{
			name:  "garbage rejected",
			input: "not a date",
			ok:    false,
		},
		{
			name:  "month out of range rejected",
			input: "114/13/01",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseROCTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
			}
		})
	}
}

// The offset year always maps onto offset+1911, and a formatted round trip
// preserves year, month and day.
func TestParseROCTimeEpochRoundTrip(t *testing.T) {
	for _, sep := range []string{"/", "-"} {
		for _, rocYear := range []int{95, 110, 114} {
			s := fmt.Sprintf("%d%s03%s21", rocYear, sep, sep)
			got, ok := ParseROCTime(s)
			require.True(t, ok, "parse %q", s)
			assert.Equal(t, rocYear+1911, got.Year())

			again := fmt.Sprintf("%d%s%d%s%d", got.Year()-1911, sep, int(got.Month()), sep, got.Day())
			back, ok := ParseROCTime(again)
			require.True(t, ok)
			assert.Equal(t, got.Year(), back.Year())
			assert.Equal(t, got.Month(), back.Month())
			assert.Equal(t, got.Day(), back.Day())
		}
	}
}

func TestShiftID(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		ts := time.Date(2025, 1, 8, hour, 15, 0, 0, time.UTC)
		want := fmt.Sprintf("%02d", hour/2+1)
		assert.Equal(t, want, ShiftID(ts), "hour %d", hour)
	}

	assert.Equal(t, "01", ShiftID(time.Time{}))
}

func TestShiftTimeRange(t *testing.T) {
	assert.Equal(t, "00:00-02:00", ShiftTimeRange("01"))
	assert.Equal(t, "08:00-10:00", ShiftTimeRange("05"))
	assert.Equal(t, "22:00-24:00", ShiftTimeRange("12"))
	assert.Equal(t, "99", ShiftTimeRange("99"))
}

func TestDayOfWeek(t *testing.T) {
	// 2025-01-06 is a Monday.
	monday := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DayOfWeek(monday))
	assert.Equal(t, 6, DayOfWeek(monday.AddDate(0, 0, 6)))
}
