package importer

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/normalize"
)

// ErrBlankRow marks a row with too little content to be a record at all.
// Callers skip these silently instead of counting them as errors.
var ErrBlankRow = errors.New("blank row")

// blankRowThreshold: a row without a case ID and fewer non-empty cells than
// this is treated as padding, not as a bad record.
const blankRowThreshold = 3

// Column name synonyms seen across the source agencies' crash exports.
var (
	caseIDColumns     = []string{"案件編號", "案號", "事故編號", "編號", "案件序號", "序號", "CaseID", "case_id"}
	crashTimeColumns  = []string{"發生時間", "事故時間", "發生日期時間", "日期時間", "時間", "發生日期"}
	crashPlaceColumns = []string{"發生地點", "事故地點", "地點", "地址", "發生地址", "事故位置"}
	severityColumns   = []string{"交通事故類別", "事故類別", "類別", "嚴重程度", "事故等級"}
	ageColumns        = []string{"當事人年齡", "年齡", "Age"}
	birthColumns      = []string{"出生年月日", "出生日期", "生日"}
	partyTypeColumns  = []string{"當事人車種", "車種"}
	causeColumns      = []string{"肇事主要原因", "肇事原因"}
	genderColumns     = []string{"當事人性別", "性別"}
	alcoholColumns    = []string{"酒測值", "飲酒情形"}
)

// BuildCrashRecord converts one spreadsheet row into a de-identified crash
// record. Returns ErrBlankRow for padding rows and a *models.ValidationError
// when a required field is missing or malformed. rng drives the coordinate
// jitter applied to district-centroid fallbacks.
func BuildCrashRecord(row Row, batchID string, rng *rand.Rand) (*models.CrashRecord, error) {
	caseID := findCaseID(row)
	if caseID == "" {
		if row.NonEmptyCells() < blankRowThreshold {
			return nil, ErrBlankRow
		}
		return nil, &models.ValidationError{
			Field:   "case_id",
			Message: fmt.Sprintf("第 %d 列：缺少案件編號", row.Number),
		}
	}

	occurred, ok := parseFirstTime(row, crashTimeColumns)
	if !ok {
		return nil, &models.ValidationError{
			Field:   "occurred_time",
			Message: fmt.Sprintf("第 %d 列：發生時間格式錯誤或缺失", row.Number),
		}
	}

	district, locationDesc := normalize.DeidentifyAddress(row.Field(crashPlaceColumns...))

	severity := strings.ToUpper(row.Field(severityColumns...))
	if severity != "A1" && severity != "A2" && severity != "A3" {
		severity = "A3"
	}

	ageGroup, isElderly := crashDriverAge(row, occurred)

	lat, lng := rowCoordinates(row)
	if lat == nil || lng == nil {
		if c, ok := normalize.JitteredCentroid(district, rng); ok {
			lat, lng = &c.Lat, &c.Lng
		}
	}

	dow := normalize.DayOfWeek(occurred)

	rec := &models.CrashRecord{
		CaseID:           caseID,
		ImportBatchID:    &batchID,
		OccurredDate:     occurred.Truncate(24 * time.Hour),
		OccurredTime:     occurred,
		ShiftID:          normalize.ShiftID(occurred),
		District:         &district,
		LocationDesc:     &locationDesc,
		Latitude:         lat,
		Longitude:        lng,
		Severity:         severity,
		SeverityWeight:   models.SeverityWeight(severity),
		Year:             occurred.Year(),
		Month:            int(occurred.Month()),
		DayOfWeek:        &dow,
		DriverAgeGroup:   &ageGroup,
		IsElderly:        isElderly,
		DriverGender:     optional(row.Field(genderColumns...)),
		Weather:          optional(row.Field("天候")),
		Light:            optional(row.Field("光線")),
		PartyType:        optional(row.Field(partyTypeColumns...)),
		Cause:            optional(truncate(row.Field(causeColumns...), 200)),
		SuspectedAlcohol: suspectedAlcohol(row.Field(alcoholColumns...)),
		CreatedAt:        time.Now().UTC(),
	}
	return rec, nil
}

// findCaseID resolves the case ID across header synonyms, accepting only
// values that contain at least one digit. Title and note rows often repeat
// label text in the ID column.
func findCaseID(row Row) string {
	for _, col := range caseIDColumns {
		v := row.Field(col)
		if v != "" && containsDigit(v) {
			return v
		}
	}
	return ""
}

// crashDriverAge prefers an explicit age column, falling back to computing
// the age from a birth date column at the time of the crash.
func crashDriverAge(row Row, occurred time.Time) (string, bool) {
	if raw := row.Field(ageColumns...); raw != "" {
		return normalize.ClassifyAge(raw)
	}
	if raw := row.Field(birthColumns...); raw != "" {
		if birth, ok := normalize.ParseROCTime(raw); ok {
			age := normalize.AgeAt(birth, occurred)
			return normalize.AgeGroup(age)
		}
	}
	return normalize.ClassifyAge("")
}

// suspectedAlcohol interprets a breathalyzer or drinking-status cell. Any
// positive reading or drinking-related text marks the record.
func suspectedAlcohol(v string) bool {
	if v == "" {
		return false
	}
	if strings.Contains(v, "飲酒") || strings.Contains(v, "酒後") {
		return true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
		return true
	}
	return false
}

func parseFirstTime(row Row, columns []string) (time.Time, bool) {
	for _, col := range columns {
		if v := row.Field(col); v != "" {
			if t, ok := normalize.ParseROCTime(v); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func rowCoordinates(row Row) (*float64, *float64) {
	lat := parseFloatCell(row.Field("緯度"))
	lng := parseFloatCell(row.Field("經度"))
	if lat == nil || lng == nil {
		return nil, nil
	}
	return lat, lng
}

func parseFloatCell(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
