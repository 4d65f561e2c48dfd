package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeidentifyAddress(t *testing.T) {
	tests := []struct {
		name         string
		address      string
		wantDistrict string
		wantLocation string
	}{
		{
			name:         "empty address",
			address:      "",
			wantDistrict: "未知",
			wantLocation: "未知地點",
		},
		{
			name:         "house number stripped",
			address:      "臺南市新化區中山路123號",
			wantDistrict: "新化區",
			wantLocation: "中山路",
		},
		{
			name:         "house number with qualifier stripped",
			address:      "台南市永康區中華路45-1號前",
			wantDistrict: "永康區",
			wantLocation: "中華路",
		},
		{
			name:         "neighborhood name stripped",
			address:      "臺南市善化區光文里民生路88號",
			wantDistrict: "善化區",
			wantLocation: "民生路",
		},
		{
			name:         "intersection with slash",
			address:      "新化區中山路/民族路",
			wantDistrict: "新化區",
			wantLocation: "中山路與民族路路口",
		},
		{
			name:         "intersection with enumeration comma",
			address:      "永康區中華路、正南街",
			wantDistrict: "永康區",
			wantLocation: "中華路與正南街路口",
		},
		{
			name:         "no district present",
			address:      "中山路100號",
			wantDistrict: "未知",
			wantLocation: "中山路",
		},
		{
			name:         "no road found falls back to remainder",
			address:      "新化區某處",
			wantDistrict: "新化區",
			wantLocation: "某處",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			district, location := DeidentifyAddress(tt.address)
			assert.Equal(t, tt.wantDistrict, district)
			assert.Equal(t, tt.wantLocation, location)
		})
	}
}

// Output must never carry a house number, whatever the input shape.
func TestDeidentifyAddressStripsAllHouseNumbers(t *testing.T) {
	addresses := []string{
		"臺南市新化區中山路123號",
		"永康區中華路45-1號旁",
		"東區裕農路1之2號後",
		"台南市安南區安中路999號",
	}

	for _, addr := range addresses {
		_, location := DeidentifyAddress(addr)
		assert.False(t, houseNumberPattern.MatchString(location),
			"location %q derived from %q still contains a house number", location, addr)
		assert.False(t, strings.Contains(location, "號"),
			"location %q derived from %q still contains 號", location, addr)
	}
}

func TestDeidentifyAddressTruncates(t *testing.T) {
	long := strings.Repeat("甲", 150)
	_, location := DeidentifyAddress(long)
	assert.LessOrEqual(t, len([]rune(location)), 100)
}
