package importer

import (
	"fmt"
	"strings"
	"time"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/normalize"
)

// Column names used in enforcement ticket exports.
var (
	ticketTimeColumns   = []string{"違規時間(出)", "建檔時間"}
	ticketGenderColumns = []string{"違規人性別", "性別"}
)

// BuildTicketRecord converts one spreadsheet row into a de-identified ticket
// record with precomputed topic flags. Returns ErrBlankRow for padding rows
// and a *models.ValidationError when a required field is missing or
// malformed.
func BuildTicketRecord(row Row, batchID string) (*models.TicketRecord, error) {
	ticketNumber := row.Field("舉發單號")
	if ticketNumber == "" {
		if row.NonEmptyCells() < blankRowThreshold {
			return nil, ErrBlankRow
		}
		return nil, &models.ValidationError{
			Field:   "ticket_number",
			Message: fmt.Sprintf("第 %d 列：缺少舉發單號", row.Number),
		}
	}

	violated, ok := parseFirstTime(row, ticketTimeColumns)
	if !ok {
		return nil, &models.ValidationError{
			Field:   "violation_time",
			Message: fmt.Sprintf("第 %d 列：違規時間格式錯誤", row.Number),
		}
	}

	fullLocation := strings.TrimSpace(row.Field("違規地點一") + " " + row.Field("違規地點備註"))
	district, locationDesc := normalize.DeidentifyAddress(fullLocation)

	code, name := splitViolationClause(row.Field("違規條款1"))
	flags := normalize.ClassifyViolation(code, name)

	ageGroup, isElderly := normalize.ClassifyAge(row.Field("違規人年齡"))

	lat, lng := rowCoordinates(row)
	dow := normalize.DayOfWeek(violated)

	rec := &models.TicketRecord{
		TicketNumber:   ticketNumber,
		ImportBatchID:  &batchID,
		ViolationDate:  violated.Truncate(24 * time.Hour),
		ViolationTime:  violated,
		ShiftID:        normalize.ShiftID(violated),
		District:       &district,
		LocationDesc:   &locationDesc,
		Latitude:       lat,
		Longitude:      lng,
		ViolationCode:  code,
		ViolationName:  optional(truncate(name, 200)),
		TopicDUI:       flags.DUI,
		TopicRedLight:  flags.RedLight,
		TopicDangerous: flags.Dangerous,
		Year:           violated.Year(),
		Month:          int(violated.Month()),
		DayOfWeek:      &dow,
		UnitCode:       optional(truncate(row.Field("舉發單位"), 50)),
		DriverAgeGroup: &ageGroup,
		IsElderly:      isElderly,
		VehicleType:    optional(row.Field("車種")),
		DriverGender:   optional(row.Field(ticketGenderColumns...)),
		CreatedAt:      time.Now().UTC(),
	}
	return rec, nil
}

// splitViolationClause splits a clause cell like "35010001 酒後駕車" into the
// leading code and the remaining clause name.
func splitViolationClause(full string) (code, name string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	code = parts[0]
	if len(parts) > 1 {
		name = strings.TrimSpace(parts[1])
	}
	return code, name
}
