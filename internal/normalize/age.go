package normalize

import (
	"strconv"
	"strings"
	"time"
)

// UnknownAgeGroup is reported when no usable age is available.
const UnknownAgeGroup = "未知"

// ElderlyAge is the threshold above which a person counts as elderly.
const ElderlyAge = 65

// ClassifyAge buckets a raw age value into one of the five ordinal age
// groups and flags the 65+ group as elderly. Fractional ages are truncated;
// non-numeric or empty input maps to the unknown group.
func ClassifyAge(raw string) (group string, elderly bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownAgeGroup, false
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return UnknownAgeGroup, false
	}

	return AgeGroup(int(f))
}

// AgeGroup buckets an integer age.
func AgeGroup(age int) (group string, elderly bool) {
	switch {
	case age < 18:
		return "<18", false
	case age < 25:
		return "18-24", false
	case age < 45:
		return "25-44", false
	case age < ElderlyAge:
		return "45-64", false
	default:
		return "65+", true
	}
}

// AgeAt computes the full years between a birth date and a reference time,
// counting a year only once the birthday has passed.
func AgeAt(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}
