package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// rocEpochOffset converts a Republic-of-China calendar year to a Gregorian
// year (ROC year 1 = 1912).
const rocEpochOffset = 1911

var rocPatterns = []struct {
	re      *regexp.Regexp
	hasTime bool
	hasSec  bool
}{
	{regexp.MustCompile(`^(\d{2,3})[/-](\d{1,2})[/-](\d{1,2})\s+(\d{1,2}):(\d{2}):(\d{2})`), true, true},
	{regexp.MustCompile(`^(\d{2,3})[/-](\d{1,2})[/-](\d{1,2})\s+(\d{1,2}):(\d{2})`), true, false},
	{regexp.MustCompile(`^(\d{2,3})[/-](\d{1,2})[/-](\d{1,2})`), false, false},
}

// ParseROCTime parses an ROC-calendar date-time string. Accepted shapes are
// "YYY/M/D H:MM:SS", "YYY/M/D H:MM" and "YYY/M/D" with "/" or "-" separators.
// Missing time components default to midnight. Returns false when the string
// matches none of the accepted shapes.
func ParseROCTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, p := range rocPatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}

		year := mustAtoi(m[1]) + rocEpochOffset
		month := mustAtoi(m[2])
		day := mustAtoi(m[3])

		hour, minute, sec := 0, 0, 0
		if p.hasTime {
			hour = mustAtoi(m[4])
			minute = mustAtoi(m[5])
			if p.hasSec {
				sec = mustAtoi(m[6])
			}
		}

		if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 59 {
			return time.Time{}, false
		}

		return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC), true
	}

	return time.Time{}, false
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ShiftID derives the two-hour enforcement shift ("01".."12") from a
// timestamp. The zero time maps to shift "01".
func ShiftID(t time.Time) string {
	if t.IsZero() {
		return "01"
	}
	return fmt.Sprintf("%02d", t.Hour()/2+1)
}

// ShiftTimeRange returns the "HH:00-HH:00" label for a shift ID, or the ID
// itself when it is not a valid shift.
func ShiftTimeRange(shiftID string) string {
	n, err := strconv.Atoi(shiftID)
	if err != nil || n < 1 || n > 12 {
		return shiftID
	}
	start := (n - 1) * 2
	return fmt.Sprintf("%02d:00-%02d:00", start, start+2)
}

// AllShiftIDs lists the twelve shift identifiers in order.
func AllShiftIDs() []string {
	ids := make([]string, 0, 12)
	for n := 1; n <= 12; n++ {
		ids = append(ids, fmt.Sprintf("%02d", n))
	}
	return ids
}

// DayOfWeek reports the weekday with Monday=0 .. Sunday=6, the numbering the
// stored records use.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
