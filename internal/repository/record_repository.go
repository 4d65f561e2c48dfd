package repository

import (
	"context"
	"fmt"
	"time"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/normalize"
	"enforcement-platform/pkg/database"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// RecordRepository provides data access for crash and ticket records
type RecordRepository interface {
	// Import operations
	CrashExists(ctx context.Context, caseID string) (bool, error)
	TicketExists(ctx context.Context, ticketNumber string) (bool, error)
	InsertCrashBatch(ctx context.Context, records []*models.CrashRecord) (int, error)
	InsertTicketBatch(ctx context.Context, records []*models.TicketRecord) (int, error)

	// Counts
	CountCrashes(ctx context.Context, filter CrashFilter) (int, error)
	CountTickets(ctx context.Context, filter TicketFilter) (int, error)
	CrashSeverityCounts(ctx context.Context, filter CrashFilter) (map[string]int, error)
	TicketTopicCounts(ctx context.Context, filter TicketFilter) (TopicCounts, error)

	// District aggregates
	CrashDistrictStats(ctx context.Context, filter CrashFilter, limit int) ([]DistrictCrashStats, error)
	CrashDistrictCounts(ctx context.Context, filter CrashFilter, limit int) ([]DistrictCount, error)
	TicketDistrictCounts(ctx context.Context, filter TicketFilter, limit int) ([]DistrictCount, error)

	// Shift aggregates
	CrashShiftCounts(ctx context.Context, filter CrashFilter) ([]ShiftCount, error)
	TicketShiftCounts(ctx context.Context, filter TicketFilter) ([]ShiftCount, error)
	CrashDistrictShiftCounts(ctx context.Context, filter CrashFilter) ([]DistrictShiftCount, error)
	TicketDistrictShiftCounts(ctx context.Context, filter TicketFilter) ([]DistrictShiftCount, error)

	// Location aggregates
	CrashLocationStats(ctx context.Context, filter CrashFilter, limit int) ([]LocationCrashStats, error)
	TicketLocationCounts(ctx context.Context, filter TicketFilter, limit int) ([]LocationCount, error)

	// Demographic aggregates
	TicketAgeGroupCounts(ctx context.Context, filter TicketFilter) ([]GroupCount, error)
	TicketGenderCounts(ctx context.Context, filter TicketFilter) ([]GroupCount, error)
	TopViolations(ctx context.Context, filter TicketFilter, limit int) ([]ViolationCount, error)

	// Utility operations
	MaxDataDate(ctx context.Context) (time.Time, bool, error)
	ResetData(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// DateRange bounds a query on the record date column. Zero values leave the
// corresponding bound open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CrashFilter defines filters for crash record aggregates
type CrashFilter struct {
	Range           DateRange
	Severity        string // "", "A1", "A2", "A1+A2"
	ShiftID         string
	District        string
	ElderlyOnly     bool
	Year            int // 0 = unset
	Month           int // 0 = unset
	RequireLocation bool
	RequireDistrict bool
}

// TicketFilter defines filters for ticket record aggregates
type TicketFilter struct {
	Range           DateRange
	Topic           normalize.TopicCode // "" = all topics
	ShiftID         string
	District        string
	ElderlyOnly     bool
	Year            int
	Month           int
	RequireLocation bool
	RequireDistrict bool
}

// TopicCounts carries per-topic ticket counts
type TopicCounts struct {
	DUI       int `db:"dui" json:"dui"`
	RedLight  int `db:"red_light" json:"red_light"`
	Dangerous int `db:"dangerous" json:"dangerous_driving"`
}

// DistrictCount is a per-district record count
type DistrictCount struct {
	District string `db:"district" json:"district"`
	Count    int    `db:"count" json:"count"`
}

// DistrictCrashStats is a per-district crash severity breakdown
type DistrictCrashStats struct {
	District      string `db:"district" json:"district"`
	Total         int    `db:"total" json:"total"`
	A1Count       int    `db:"a1_count" json:"a1_count"`
	A2Count       int    `db:"a2_count" json:"a2_count"`
	A3Count       int    `db:"a3_count" json:"a3_count"`
	SeverityScore int    `db:"severity_score" json:"severity_score"`
}

// ShiftCount is a per-shift record count
type ShiftCount struct {
	ShiftID string `db:"shift_id" json:"shift_id"`
	Count   int    `db:"count" json:"count"`
}

// DistrictShiftCount is a record count for one district/shift combination
type DistrictShiftCount struct {
	District string `db:"district" json:"district"`
	ShiftID  string `db:"shift_id" json:"shift_id"`
	Count    int    `db:"count" json:"count"`
}

// LocationCrashStats is a per-location crash severity breakdown with the
// averaged coordinates of the records behind it
type LocationCrashStats struct {
	District     string   `db:"district" json:"district"`
	LocationDesc string   `db:"location_desc" json:"location_desc"`
	Total        int      `db:"total" json:"total"`
	A1Count      int      `db:"a1_count" json:"a1_count"`
	A2Count      int      `db:"a2_count" json:"a2_count"`
	A3Count      int      `db:"a3_count" json:"a3_count"`
	AvgLat       *float64 `db:"avg_lat" json:"avg_lat,omitempty"`
	AvgLng       *float64 `db:"avg_lng" json:"avg_lng,omitempty"`
}

// LocationCount is a per-location record count with averaged coordinates
type LocationCount struct {
	District     string   `db:"district" json:"district"`
	LocationDesc string   `db:"location_desc" json:"location_desc"`
	Count        int      `db:"count" json:"count"`
	AvgLat       *float64 `db:"avg_lat" json:"avg_lat,omitempty"`
	AvgLng       *float64 `db:"avg_lng" json:"avg_lng,omitempty"`
}

// GroupCount is a count keyed by a nullable category column
type GroupCount struct {
	Key   *string `db:"key" json:"key"`
	Count int     `db:"count" json:"count"`
}

// ViolationCount is a per-clause ticket count
type ViolationCount struct {
	Code  string  `db:"violation_code" json:"code"`
	Name  *string `db:"violation_name" json:"name"`
	Count int     `db:"count" json:"count"`
}

// recordRepository implements RecordRepository
type recordRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) RecordRepository {
	return &recordRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// crashWhere builds the WHERE clause for a crash filter with numbered args
func crashWhere(filter CrashFilter) (string, []interface{}) {
	clause := " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if !filter.Range.Start.IsZero() {
		clause += fmt.Sprintf(" AND occurred_date >= $%d", argNum)
		args = append(args, filter.Range.Start)
		argNum++
	}
	if !filter.Range.End.IsZero() {
		clause += fmt.Sprintf(" AND occurred_date <= $%d", argNum)
		args = append(args, filter.Range.End)
		argNum++
	}
	switch filter.Severity {
	case "A1", "A2":
		clause += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, filter.Severity)
		argNum++
	case "A1+A2":
		clause += " AND severity IN ('A1', 'A2')"
	}
	if filter.ShiftID != "" {
		clause += fmt.Sprintf(" AND shift_id = $%d", argNum)
		args = append(args, filter.ShiftID)
		argNum++
	}
	if filter.District != "" {
		clause += fmt.Sprintf(" AND district = $%d", argNum)
		args = append(args, filter.District)
		argNum++
	}
	if filter.ElderlyOnly {
		clause += " AND is_elderly = TRUE"
	}
	if filter.Year != 0 {
		clause += fmt.Sprintf(" AND year = $%d", argNum)
		args = append(args, filter.Year)
		argNum++
	}
	if filter.Month != 0 {
		clause += fmt.Sprintf(" AND month = $%d", argNum)
		args = append(args, filter.Month)
		argNum++
	}
	if filter.RequireLocation {
		clause += " AND location_desc IS NOT NULL AND location_desc <> ''"
	}
	if filter.RequireDistrict {
		clause += " AND district IS NOT NULL"
	}

	return clause, args
}

// ticketWhere builds the WHERE clause for a ticket filter with numbered args
func ticketWhere(filter TicketFilter) (string, []interface{}) {
	clause := " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if !filter.Range.Start.IsZero() {
		clause += fmt.Sprintf(" AND violation_date >= $%d", argNum)
		args = append(args, filter.Range.Start)
		argNum++
	}
	if !filter.Range.End.IsZero() {
		clause += fmt.Sprintf(" AND violation_date <= $%d", argNum)
		args = append(args, filter.Range.End)
		argNum++
	}
	switch filter.Topic {
	case normalize.TopicDUI:
		clause += " AND topic_dui = TRUE"
	case normalize.TopicRedLight:
		clause += " AND topic_red_light = TRUE"
	case normalize.TopicDangerous:
		clause += " AND topic_dangerous = TRUE"
	}
	if filter.ShiftID != "" {
		clause += fmt.Sprintf(" AND shift_id = $%d", argNum)
		args = append(args, filter.ShiftID)
		argNum++
	}
	if filter.District != "" {
		clause += fmt.Sprintf(" AND district = $%d", argNum)
		args = append(args, filter.District)
		argNum++
	}
	if filter.ElderlyOnly {
		clause += " AND is_elderly = TRUE"
	}
	if filter.Year != 0 {
		clause += fmt.Sprintf(" AND year = $%d", argNum)
		args = append(args, filter.Year)
		argNum++
	}
	if filter.Month != 0 {
		clause += fmt.Sprintf(" AND month = $%d", argNum)
		args = append(args, filter.Month)
		argNum++
	}
	if filter.RequireLocation {
		clause += " AND location_desc IS NOT NULL AND location_desc <> ''"
	}
	if filter.RequireDistrict {
		clause += " AND district IS NOT NULL"
	}

	return clause, args
}

func withLimit(query string, limit int) string {
	if limit > 0 {
		return query + fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}

// CrashExists reports whether a crash with the case ID is already stored.
// This is only a fast path; the UNIQUE constraint on case_id is the
// authoritative dedup guard.
func (r *recordRepository) CrashExists(ctx context.Context, caseID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM crash_records WHERE case_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, "crash_exists", &exists, query, caseID); err != nil {
		return false, fmt.Errorf("failed to check crash existence: %w", err)
	}
	return exists, nil
}

// TicketExists reports whether a ticket with the number is already stored
func (r *recordRepository) TicketExists(ctx context.Context, ticketNumber string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ticket_records WHERE ticket_number = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, "ticket_exists", &exists, query, ticketNumber); err != nil {
		return false, fmt.Errorf("failed to check ticket existence: %w", err)
	}
	return exists, nil
}

// InsertCrashBatch inserts crash records in a single transaction, skipping
// rows whose case_id is already present. Returns the number actually
// inserted so the caller can account for concurrent duplicates.
func (r *recordRepository) InsertCrashBatch(ctx context.Context, records []*models.CrashRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.ImportBatchSize.Observe(float64(len(records)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Crash batch insert completed", logging.Fields{
			"count":       len(records),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crash_records (
			case_id, import_batch_id, occurred_date, occurred_time, shift_id,
			district, location_desc, latitude, longitude,
			severity, severity_weight, year, month, day_of_week,
			driver_age_group, is_elderly, driver_gender,
			weather, light, party_type, cause, suspected_alcohol, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (case_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.CaseID, rec.ImportBatchID, rec.OccurredDate, rec.OccurredTime, rec.ShiftID,
			rec.District, rec.LocationDesc, rec.Latitude, rec.Longitude,
			rec.Severity, rec.SeverityWeight, rec.Year, rec.Month, rec.DayOfWeek,
			rec.DriverAgeGroup, rec.IsElderly, rec.DriverGender,
			rec.Weather, rec.Light, rec.PartyType, rec.Cause, rec.SuspectedAlcohol, rec.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert crash record: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.ImportRecordsTotal.WithLabelValues("crash").Add(float64(inserted))

	return inserted, nil
}

// InsertTicketBatch inserts ticket records in a single transaction, skipping
// rows whose ticket_number is already present
func (r *recordRepository) InsertTicketBatch(ctx context.Context, records []*models.TicketRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.ImportBatchSize.Observe(float64(len(records)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Ticket batch insert completed", logging.Fields{
			"count":       len(records),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ticket_records (
			ticket_number, import_batch_id, violation_date, violation_time, shift_id,
			district, location_desc, latitude, longitude,
			violation_code, violation_name, topic_dui, topic_red_light, topic_dangerous,
			year, month, day_of_week, unit_code,
			driver_age_group, is_elderly, vehicle_type, driver_gender, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (ticket_number) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.TicketNumber, rec.ImportBatchID, rec.ViolationDate, rec.ViolationTime, rec.ShiftID,
			rec.District, rec.LocationDesc, rec.Latitude, rec.Longitude,
			rec.ViolationCode, rec.ViolationName, rec.TopicDUI, rec.TopicRedLight, rec.TopicDangerous,
			rec.Year, rec.Month, rec.DayOfWeek, rec.UnitCode,
			rec.DriverAgeGroup, rec.IsElderly, rec.VehicleType, rec.DriverGender, rec.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert ticket record: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.ImportRecordsTotal.WithLabelValues("ticket").Add(float64(inserted))

	return inserted, nil
}

// CountCrashes counts crash records matching the filter
func (r *recordRepository) CountCrashes(ctx context.Context, filter CrashFilter) (int, error) {
	where, args := crashWhere(filter)
	query := "SELECT COUNT(*) FROM crash_records" + where

	var count int
	if err := r.db.GetContext(ctx, "count_crashes", &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count crashes: %w", err)
	}
	return count, nil
}

// CountTickets counts ticket records matching the filter
func (r *recordRepository) CountTickets(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := ticketWhere(filter)
	query := "SELECT COUNT(*) FROM ticket_records" + where

	var count int
	if err := r.db.GetContext(ctx, "count_tickets", &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}

// CrashSeverityCounts counts crashes per severity class
func (r *recordRepository) CrashSeverityCounts(ctx context.Context, filter CrashFilter) (map[string]int, error) {
	where, args := crashWhere(filter)
	query := "SELECT severity, COUNT(*) AS count FROM crash_records" + where + " GROUP BY severity"

	var rows []struct {
		Severity string `db:"severity"`
		Count    int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, "crash_severity_counts", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count crash severities: %w", err)
	}

	counts := map[string]int{"A1": 0, "A2": 0, "A3": 0}
	for _, row := range rows {
		counts[row.Severity] = row.Count
	}
	return counts, nil
}

// TicketTopicCounts counts tickets per topic flag. The flags are independent,
// so a ticket may be counted under several topics.
func (r *recordRepository) TicketTopicCounts(ctx context.Context, filter TicketFilter) (TopicCounts, error) {
	where, args := ticketWhere(filter)
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN topic_dui THEN 1 ELSE 0 END), 0) AS dui,
			COALESCE(SUM(CASE WHEN topic_red_light THEN 1 ELSE 0 END), 0) AS red_light,
			COALESCE(SUM(CASE WHEN topic_dangerous THEN 1 ELSE 0 END), 0) AS dangerous
		FROM ticket_records` + where

	var counts TopicCounts
	if err := r.db.GetContext(ctx, "ticket_topic_counts", &counts, query, args...); err != nil {
		return TopicCounts{}, fmt.Errorf("failed to count ticket topics: %w", err)
	}
	return counts, nil
}

// CrashDistrictStats aggregates crash severity per district, highest
// severity score first
func (r *recordRepository) CrashDistrictStats(ctx context.Context, filter CrashFilter, limit int) ([]DistrictCrashStats, error) {
	filter.RequireDistrict = true
	where, args := crashWhere(filter)
	query := `
		SELECT district,
		       COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN severity = 'A1' THEN 1 ELSE 0 END), 0) AS a1_count,
		       COALESCE(SUM(CASE WHEN severity = 'A2' THEN 1 ELSE 0 END), 0) AS a2_count,
		       COALESCE(SUM(CASE WHEN severity = 'A3' THEN 1 ELSE 0 END), 0) AS a3_count,
		       COALESCE(SUM(severity_weight), 0) AS severity_score
		FROM crash_records` + where + `
		GROUP BY district
		ORDER BY severity_score DESC, district`

	var stats []DistrictCrashStats
	if err := r.db.SelectContext(ctx, "crash_district_stats", &stats, withLimit(query, limit), args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate crash districts: %w", err)
	}
	return stats, nil
}

// CrashDistrictCounts counts crashes per district, most first
func (r *recordRepository) CrashDistrictCounts(ctx context.Context, filter CrashFilter, limit int) ([]DistrictCount, error) {
	filter.RequireDistrict = true
	where, args := crashWhere(filter)
	query := `
		SELECT district, COUNT(*) AS count
		FROM crash_records` + where + `
		GROUP BY district
		ORDER BY count DESC, district`

	var counts []DistrictCount
	if err := r.db.SelectContext(ctx, "crash_district_counts", &counts, withLimit(query, limit), args...); err != nil {
		return nil, fmt.Errorf("failed to count crash districts: %w", err)
	}
	return counts, nil
}

// TicketDistrictCounts counts tickets per district, most first
func (r *recordRepository) TicketDistrictCounts(ctx context.Context, filter TicketFilter, limit int) ([]DistrictCount, error) {
	filter.RequireDistrict = true
	where, args := ticketWhere(filter)
	query := `
		SELECT district, COUNT(*) AS count
		FROM ticket_records` + where + `
		GROUP BY district
		ORDER BY count DESC, district`

	var counts []DistrictCount
	if err := r.db.SelectContext(ctx, "ticket_district_counts", &counts, withLimit(query, limit), args...); err != nil {
		return nil, fmt.Errorf("failed to count ticket districts: %w", err)
	}
	return counts, nil
}

// CrashShiftCounts counts crashes per two-hour shift
func (r *recordRepository) CrashShiftCounts(ctx context.Context, filter CrashFilter) ([]ShiftCount, error) {
	where, args := crashWhere(filter)
	query := `
		SELECT shift_id, COUNT(*) AS count
		FROM crash_records` + where + `
		GROUP BY shift_id
		ORDER BY shift_id`

	var counts []ShiftCount
	if err := r.db.SelectContext(ctx, "crash_shift_counts", &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count crash shifts: %w", err)
	}
	return counts, nil
}

// TicketShiftCounts counts tickets per two-hour shift
func (r *recordRepository) TicketShiftCounts(ctx context.Context, filter TicketFilter) ([]ShiftCount, error) {
	where, args := ticketWhere(filter)
	query := `
		SELECT shift_id, COUNT(*) AS count
		FROM ticket_records` + where + `
		GROUP BY shift_id
		ORDER BY shift_id`

	var counts []ShiftCount
	if err := r.db.SelectContext(ctx, "ticket_shift_counts", &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count ticket shifts: %w", err)
	}
	return counts, nil
}

// CrashDistrictShiftCounts counts crashes per district/shift combination
func (r *recordRepository) CrashDistrictShiftCounts(ctx context.Context, filter CrashFilter) ([]DistrictShiftCount, error) {
	filter.RequireDistrict = true
	where, args := crashWhere(filter)
	query := `
		SELECT district, shift_id, COUNT(*) AS count
		FROM crash_records` + where + `
		GROUP BY district, shift_id
		ORDER BY district, shift_id`

	var counts []DistrictShiftCount
	if err := r.db.SelectContext(ctx, "crash_district_shift_counts", &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count crash district/shifts: %w", err)
	}
	return counts, nil
}

// TicketDistrictShiftCounts counts tickets per district/shift combination
func (r *recordRepository) TicketDistrictShiftCounts(ctx context.Context, filter TicketFilter) ([]DistrictShiftCount, error) {
	filter.RequireDistrict = true
	where, args := ticketWhere(filter)
	query := `
		SELECT district, shift_id, COUNT(*) AS count
		FROM ticket_records` + where + `
		GROUP BY district, shift_id
		ORDER BY district, shift_id`

	var counts []DistrictShiftCount
	if err := r.db.SelectContext(ctx, "ticket_district_shift_counts", &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count ticket district/shifts: %w", err)
	}
	return counts, nil
}

// CrashLocationStats aggregates crash severity per district+location, most
// crashes first
func (r *recordRepository) CrashLocationStats(ctx context.Context, filter CrashFilter, limit int) ([]LocationCrashStats, error) {
	filter.RequireLocation = true
	where, args := crashWhere(filter)
	query := `
		SELECT COALESCE(district, '') AS district,
		       location_desc,
		       COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN severity = 'A1' THEN 1 ELSE 0 END), 0) AS a1_count,
		       COALESCE(SUM(CASE WHEN severity = 'A2' THEN 1 ELSE 0 END), 0) AS a2_count,
		       COALESCE(SUM(CASE WHEN severity = 'A3' THEN 1 ELSE 0 END), 0) AS a3_count,
		       AVG(latitude) AS avg_lat,
		       AVG(longitude) AS avg_lng
		FROM crash_records` + where + `
		GROUP BY district, location_desc
		ORDER BY total DESC, district, location_desc`

	var stats []LocationCrashStats
	if err := r.db.SelectContext(ctx, "crash_location_stats", &stats, withLimit(query, limit), args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate crash locations: %w", err)
	}
	return stats, nil
}

// TicketLocationCounts counts tickets per district+location, most first
func (r *recordRepository) TicketLocationCounts(ctx context.Context, filter TicketFilter, limit int) ([]LocationCount, error) {
	filter.RequireLocation = true
	where, args := ticketWhere(filter)
	query := `
		SELECT COALESCE(district, '') AS district,
		       location_desc,
		       COUNT(*) AS count,
		       AVG(latitude) AS avg_lat,
		       AVG(longitude) AS avg_lng
		FROM ticket_records` + where + `
		GROUP BY district, location_desc
		ORDER BY count DESC, district, location_desc`

	var counts []LocationCount
	if err := r.db.SelectContext(ctx, "ticket_location_counts", &counts, withLimit(query, limit), args...); err != nil {
		return nil, fmt.Errorf("failed to count ticket locations: %w", err)
	}
	return counts, nil
}

// TicketAgeGroupCounts counts tickets per driver age group
func (r *recordRepository) TicketAgeGroupCounts(ctx context.Context, filter TicketFilter) ([]GroupCount, error) {
	where, args := ticketWhere(filter)
	query := `
		SELECT driver_age_group AS key, COUNT(*) AS count
		FROM ticket_records` + where + `
		GROUP BY driver_age_group
		ORDER BY count DESC`

	var counts []GroupCount
	if err := r.db.SelectContext(ctx, "ticket_age_group_counts", &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count ticket age groups: %w", err)
	}
	return counts, nil
}

// TicketGenderCounts counts tickets per driver gender category
func (r *recordRepository) TicketGenderCounts(ctx context.Context, filter TicketFilter) ([]GroupCount, error) {
	where, args := ticketWhere(filter)
	query := `
		SELECT driver_gender AS key, COUNT(*) AS count
		FROM ticket_records` + where + `
		GROUP BY driver_gender
		ORDER BY count DESC`

	var counts []GroupCount
	if err := r.db.SelectContext(ctx, "ticket_gender_counts", &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count ticket genders: %w", err)
	}
	return counts, nil
}

// TopViolations lists the most ticketed violation clauses
func (r *recordRepository) TopViolations(ctx context.Context, filter TicketFilter, limit int) ([]ViolationCount, error) {
	where, args := ticketWhere(filter)
	query := `
		SELECT violation_code, violation_name, COUNT(*) AS count
		FROM ticket_records` + where + `
		GROUP BY violation_code, violation_name
		ORDER BY count DESC, violation_code`

	var counts []ViolationCount
	if err := r.db.SelectContext(ctx, "top_violations", &counts, withLimit(query, limit), args...); err != nil {
		return nil, fmt.Errorf("failed to count violations: %w", err)
	}
	return counts, nil
}

// MaxDataDate returns the latest stored crash or violation date. ok is false
// when no records exist at all.
func (r *recordRepository) MaxDataDate(ctx context.Context) (time.Time, bool, error) {
	query := `
		SELECT GREATEST(
			(SELECT MAX(occurred_date) FROM crash_records),
			(SELECT MAX(violation_date) FROM ticket_records)
		) AS max_date`

	var maxDate *time.Time
	if err := r.db.GetContext(ctx, "max_data_date", &maxDate, query); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get max data date: %w", err)
	}
	if maxDate == nil {
		return time.Time{}, false, nil
	}
	return *maxDate, true, nil
}

// ResetData removes all stored records and resets the identity sequences.
// Administrative operation only.
func (r *recordRepository) ResetData(ctx context.Context) error {
	query := `TRUNCATE TABLE crash_records, ticket_records RESTART IDENTITY`

	if _, err := r.db.ExecContext(ctx, "reset_data", query); err != nil {
		return fmt.Errorf("failed to reset data: %w", err)
	}

	r.logger.Warn(ctx, "[REPO_RESET] All crash and ticket records removed", logging.Fields{})

	return nil
}

// HealthCheck performs a repository health check
func (r *recordRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
