package models

import (
	"time"
)

// Severity weights used when scoring crash records.
const (
	SeverityWeightA1 = 5
	SeverityWeightA2 = 3
	SeverityWeightA3 = 1
)

// SeverityWeight maps a severity class (A1/A2/A3) to its scoring weight.
// Unknown classes get the lowest weight.
func SeverityWeight(severity string) int {
	switch severity {
	case "A1":
		return SeverityWeightA1
	case "A2":
		return SeverityWeightA2
	default:
		return SeverityWeightA3
	}
}

// CrashRecord is a de-identified traffic crash. Address, plate and personal
// identifiers never reach this struct; only the district, a generalized
// location description and bucketed driver attributes survive import.
// NULL-able columns are pointers.
type CrashRecord struct {
	ID               int64     `json:"id" db:"id"`
	CaseID           string    `json:"case_id" db:"case_id"`
	ImportBatchID    *string   `json:"import_batch_id,omitempty" db:"import_batch_id"`
	OccurredDate     time.Time `json:"occurred_date" db:"occurred_date"`
	OccurredTime     time.Time `json:"occurred_time" db:"occurred_time"`
	ShiftID          string    `json:"shift_id" db:"shift_id"`
	District         *string   `json:"district,omitempty" db:"district"`
	LocationDesc     *string   `json:"location_desc,omitempty" db:"location_desc"`
	Latitude         *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude        *float64  `json:"longitude,omitempty" db:"longitude"`
	Severity         string    `json:"severity" db:"severity"`
	SeverityWeight   int       `json:"severity_weight" db:"severity_weight"`
	Year             int       `json:"year" db:"year"`
	Month            int       `json:"month" db:"month"`
	DayOfWeek        *int      `json:"day_of_week,omitempty" db:"day_of_week"`
	DriverAgeGroup   *string   `json:"driver_age_group,omitempty" db:"driver_age_group"`
	IsElderly        bool      `json:"is_elderly" db:"is_elderly"`
	DriverGender     *string   `json:"driver_gender,omitempty" db:"driver_gender"`
	Weather          *string   `json:"weather,omitempty" db:"weather"`
	Light            *string   `json:"light,omitempty" db:"light"`
	PartyType        *string   `json:"party_type,omitempty" db:"party_type"`
	Cause            *string   `json:"cause,omitempty" db:"cause"`
	SuspectedAlcohol bool      `json:"suspected_alcohol" db:"suspected_alcohol"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// TicketRecord is a de-identified enforcement ticket. Topic flags are
// precomputed at import time so aggregate queries stay index-friendly.
type TicketRecord struct {
	ID             int64     `json:"id" db:"id"`
	TicketNumber   string    `json:"ticket_number" db:"ticket_number"`
	ImportBatchID  *string   `json:"import_batch_id,omitempty" db:"import_batch_id"`
	ViolationDate  time.Time `json:"violation_date" db:"violation_date"`
	ViolationTime  time.Time `json:"violation_time" db:"violation_time"`
	ShiftID        string    `json:"shift_id" db:"shift_id"`
	District       *string   `json:"district,omitempty" db:"district"`
	LocationDesc   *string   `json:"location_desc,omitempty" db:"location_desc"`
	Latitude       *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude      *float64  `json:"longitude,omitempty" db:"longitude"`
	ViolationCode  string    `json:"violation_code" db:"violation_code"`
	ViolationName  *string   `json:"violation_name,omitempty" db:"violation_name"`
	TopicDUI       bool      `json:"topic_dui" db:"topic_dui"`
	TopicRedLight  bool      `json:"topic_red_light" db:"topic_red_light"`
	TopicDangerous bool      `json:"topic_dangerous" db:"topic_dangerous"`
	Year           int       `json:"year" db:"year"`
	Month          int       `json:"month" db:"month"`
	DayOfWeek      *int      `json:"day_of_week,omitempty" db:"day_of_week"`
	UnitCode       *string   `json:"unit_code,omitempty" db:"unit_code"`
	DriverAgeGroup *string   `json:"driver_age_group,omitempty" db:"driver_age_group"`
	IsElderly      bool      `json:"is_elderly" db:"is_elderly"`
	VehicleType    *string   `json:"vehicle_type,omitempty" db:"vehicle_type"`
	DriverGender   *string   `json:"driver_gender,omitempty" db:"driver_gender"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ImportStats accumulates the outcome of one import run.
type ImportStats struct {
	TotalRows int `json:"total_rows"`
	NewCount  int `json:"new_count"`
	Skipped   int `json:"skipped_count"`
	Errors    int `json:"error_count"`
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
