package normalize

import (
	"math/rand"
	"strings"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// DefaultCoordinate is used for districts missing from the centroid table.
var DefaultCoordinate = Coordinate{Lat: 23.0, Lng: 120.2}

// districtCentroids maps each administrative district to its reference
// centroid. Fixed reference data, used as a map-display fallback when a
// record carries no coordinates of its own.
var districtCentroids = map[string]Coordinate{
	"新化區": {23.0386, 120.3108},
	"山上區": {23.0975, 120.3547},
	"左鎮區": {23.0578, 120.4014},
	"玉井區": {23.1239, 120.4614},
	"楠西區": {23.1814, 120.4853},
	"南化區": {23.1417, 120.4731},
	"善化區": {23.1322, 120.2967},
	"大內區": {23.1203, 120.3508},
	"仁德區": {22.9722, 120.2331},
	"歸仁區": {22.9667, 120.2933},
	"關廟區": {22.9617, 120.3278},
	"龍崎區": {22.9622, 120.3847},
	"永康區": {23.0264, 120.2567},
	"東區":  {22.9833, 120.2167},
	"南區":  {22.9500, 120.1833},
	"北區":  {23.0000, 120.2000},
	"中西區": {22.9917, 120.1917},
	"安南區": {23.0500, 120.1667},
	"安平區": {22.9917, 120.1667},
	"新營區": {23.3103, 120.3167},
	"鹽水區": {23.3203, 120.2661},
	"白河區": {23.3517, 120.4156},
	"柳營區": {23.2778, 120.3114},
	"後壁區": {23.3664, 120.3583},
	"東山區": {23.3258, 120.4036},
	"麻豆區": {23.1817, 120.2483},
	"下營區": {23.2347, 120.2647},
	"六甲區": {23.2314, 120.3472},
	"官田區": {23.1944, 120.3139},
	"佳里區": {23.1650, 120.1772},
	"學甲區": {23.2328, 120.1803},
	"西港區": {23.1222, 120.2028},
	"七股區": {23.1450, 120.1267},
	"將軍區": {23.1997, 120.1092},
	"北門區": {23.2672, 120.1261},
	"新市區": {23.0794, 120.2911},
	"安定區": {23.1014, 120.2353},
}

// jitterDegrees bounds the uniform offset applied to centroid fallbacks so
// that records in the same district do not stack on one map point
// (roughly a few hundred meters).
const jitterDegrees = 0.003

// DistrictCentroid returns the reference centroid for a district, without
// jitter. Used for display of district-level aggregates.
func DistrictCentroid(district string) Coordinate {
	if c, ok := lookupCentroid(district); ok {
		return c
	}
	return DefaultCoordinate
}

// JitteredCentroid returns the district centroid displaced by a small uniform
// random offset drawn from rng. The random source is injected so callers can
// seed it for reproducible output. Returns false when the district cannot be
// resolved against the centroid table.
func JitteredCentroid(district string, rng *rand.Rand) (Coordinate, bool) {
	c, ok := lookupCentroid(district)
	if !ok {
		return Coordinate{}, false
	}
	c.Lat += (rng.Float64()*2 - 1) * jitterDegrees
	c.Lng += (rng.Float64()*2 - 1) * jitterDegrees
	return c, true
}

func lookupCentroid(district string) (Coordinate, bool) {
	district = strings.TrimSpace(district)
	if district == "" {
		return Coordinate{}, false
	}

	clean := strings.NewReplacer("臺南市", "", "台南市", "").Replace(district)
	clean = strings.TrimPrefix(clean, "市")

	if c, ok := districtCentroids[clean]; ok {
		return c, true
	}
	for name, c := range districtCentroids {
		if strings.Contains(clean, name) || strings.Contains(name, clean) {
			return c, true
		}
	}
	return Coordinate{}, false
}
