package normalize

import (
	"regexp"
	"strings"
)

// Fallback values for addresses that cannot be resolved.
const (
	UnknownDistrict = "未知"
	UnknownLocation = "未知地點"
)

var (
	districtPattern     = regexp.MustCompile(`[\p{Han}]{2,3}區`)
	houseNumberPattern  = regexp.MustCompile(`\d+[-之]?\d*號[前後旁]?`)
	neighborhoodPattern = regexp.MustCompile(`[\p{Han}]{2,4}里`)
	cityPrefixPattern   = regexp.MustCompile(`臺南市|台南市`)
	roadPattern         = regexp.MustCompile(`[\p{Han}]+[路街道巷]`)
	intersectionRoad    = regexp.MustCompile(`[\p{Han}]+[路街道]`)
	intersectionSplit   = regexp.MustCompile(`[/、]`)
)

// DeidentifyAddress reduces a raw free-text address to an administrative
// district and a road-level location description. House numbers and
// neighborhood names are stripped so that no locator finer than a road or
// intersection survives; this is the only place raw addresses are handled.
func DeidentifyAddress(address string) (district, locationDesc string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return UnknownDistrict, UnknownLocation
	}

	district = UnknownDistrict
	if m := districtPattern.FindString(address); m != "" {
		district = m
	}

	clean := houseNumberPattern.ReplaceAllString(address, "")
	clean = neighborhoodPattern.ReplaceAllString(clean, "")
	clean = cityPrefixPattern.ReplaceAllString(clean, "")
	clean = districtPattern.ReplaceAllString(clean, "")

	if m := roadPattern.FindString(clean); m != "" {
		locationDesc = m
	} else {
		locationDesc = strings.TrimSpace(clean)
		if locationDesc == "" {
			locationDesc = UnknownLocation
		}
	}

	// Intersections arrive as "roadA/roadB" or "roadA、roadB"; keep both
	// road names when at least two can be extracted.
	if strings.ContainsAny(address, "/、") {
		var roads []string
		for _, part := range intersectionSplit.Split(address, -1) {
			if m := intersectionRoad.FindString(part); m != "" {
				roads = append(roads, m)
			}
		}
		if len(roads) >= 2 {
			locationDesc = roads[0] + "與" + roads[1] + "路口"
		}
	}

	return district, truncateRunes(locationDesc, 100)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
