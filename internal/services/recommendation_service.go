package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/normalize"
	"enforcement-platform/internal/repository"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// Per-ticket pressure weight of each enforcement topic.
var vpiWeights = map[normalize.TopicCode]float64{
	normalize.TopicDUI:       10.0,
	normalize.TopicRedLight:  2.0,
	normalize.TopicDangerous: 1.5,
}

// Blend weights (violation pressure, crash risk) per topic.
var scoreWeights = map[normalize.TopicCode][2]float64{
	normalize.TopicDUI:       {0.6, 0.4},
	normalize.TopicRedLight:  {0.5, 0.5},
	normalize.TopicDangerous: {0.4, 0.6},
}

var topicNames = map[normalize.TopicCode]string{
	normalize.TopicDUI:       "酒駕",
	normalize.TopicRedLight:  "闖紅燈",
	normalize.TopicDangerous: "危險駕駛",
}

// The hotspot reports label red-light running with the 闘 variant; the
// upstream data dictionary carries both spellings.
var hotspotFocusNames = map[normalize.TopicCode]string{
	normalize.TopicDUI:       "酒駕",
	normalize.TopicRedLight:  "闘紅燈",
	normalize.TopicDangerous: "危險駕駛",
}

// CalculateVPI computes the violation pressure index: the ticket volume
// scaled by how strongly the topic predicts harm.
func CalculateVPI(ticketCount int, topic normalize.TopicCode) float64 {
	w, ok := vpiWeights[topic]
	if !ok {
		w = 1.0
	}
	return float64(ticketCount) * w
}

// CalculateCRI computes the crash risk index. Fatal (A1) and injury (A2)
// crashes weigh far more than the base crash count.
func CalculateCRI(crashCount, a1Count, a2Count int) float64 {
	return float64(crashCount) + float64(a1Count)*5.0 + float64(a2Count)*2.0
}

// CalculateScore blends VPI and CRI into the final recommendation score
// using the per-topic alpha/beta weights.
func CalculateScore(vpi, cri float64, topic normalize.TopicCode) float64 {
	w, ok := scoreWeights[topic]
	if !ok {
		w = [2]float64{0.5, 0.5}
	}
	return w[0]*vpi + w[1]*cri
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

const dateLayout = "2006-01-02"

// Period describes the date window a report covers.
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

func periodOf(start, end time.Time, days int) Period {
	return Period{
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		Days:      days,
	}
}

// SiteRecommendation is one ranked enforcement target.
type SiteRecommendation struct {
	SiteID      string  `json:"site_id"`
	SiteName    string  `json:"site_name"`
	District    string  `json:"district"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TicketCount int     `json:"ticket_count"`
	CrashCount  int     `json:"crash_count"`
	VPI         float64 `json:"vpi"`
	CRI         float64 `json:"cri"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
}

// Top5Response carries the ranked enforcement recommendations for one topic.
type Top5Response struct {
	TopicCode       string               `json:"topic_code"`
	ShiftID         string               `json:"shift_id,omitempty"`
	Period          Period               `json:"period"`
	Recommendations []SiteRecommendation `json:"recommendations"`
	TotalSites      int                  `json:"total_sites"`
}

// HeatPoint is one district-level intensity point on the violation heatmap.
type HeatPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Intensity int     `json:"intensity"`
	SiteName  string  `json:"site_name"`
	District  string  `json:"district"`
}

// HeatmapResponse carries the violation heatmap for one topic.
type HeatmapResponse struct {
	TopicCode   string      `json:"topic_code"`
	ShiftID     string      `json:"shift_id,omitempty"`
	Period      Period      `json:"period"`
	Points      []HeatPoint `json:"points"`
	TotalPoints int         `json:"total_points"`
}

// BriefingLocation is one ranked district on a shift briefing card.
type BriefingLocation struct {
	Rank     int    `json:"rank"`
	District string `json:"district"`
	Count    int    `json:"count"`
}

// BriefingCard is the pre-shift enforcement briefing for one topic and shift.
type BriefingCard struct {
	Date            string             `json:"date"`
	ShiftID         string             `json:"shift_id"`
	ShiftTime       string             `json:"shift_time"`
	TopicCode       string             `json:"topic_code"`
	TopicName       string             `json:"topic_name"`
	TopLocations    []BriefingLocation `json:"top_locations"`
	TotalViolations int                `json:"total_violations"`
	Recommendation  string             `json:"recommendation"`
}

// HotspotAccidents summarizes crash volume and severity in one district.
type HotspotAccidents struct {
	Total         int `json:"total"`
	A1Count       int `json:"a1_count"`
	A2Count       int `json:"a2_count"`
	A3Count       int `json:"a3_count"`
	SeverityScore int `json:"severity_score"`
}

// HotspotViolations summarizes enforcement volume in one district.
type HotspotViolations struct {
	Total            int `json:"total"`
	DUI              int `json:"dui"`
	RedLight         int `json:"red_light"`
	DangerousDriving int `json:"dangerous_driving"`
}

// HotspotRecommendation names the topic most worth enforcing in a district.
type HotspotRecommendation struct {
	PriorityTopic    *string `json:"priority_topic"`
	EnforcementFocus string  `json:"enforcement_focus"`
}

// DistrictHotspot is one district's crash hotspot entry.
type DistrictHotspot struct {
	District       string                `json:"district"`
	Latitude       float64               `json:"latitude"`
	Longitude      float64               `json:"longitude"`
	Accidents      HotspotAccidents      `json:"accidents"`
	Violations     HotspotViolations     `json:"violations"`
	Recommendation HotspotRecommendation `json:"recommendation"`
}

// HotspotSummary totals the severity classes across all hotspots.
type HotspotSummary struct {
	TotalAccidents int `json:"total_accidents"`
	A1Total        int `json:"a1_total"`
	A2Total        int `json:"a2_total"`
	A3Total        int `json:"a3_total"`
}

// AccidentHotspotsResponse ranks districts by crash severity score.
type AccidentHotspotsResponse struct {
	QueryPeriod    Period            `json:"query_period"`
	Hotspots       []DistrictHotspot `json:"hotspots"`
	TotalDistricts int               `json:"total_districts"`
	Summary        HotspotSummary    `json:"summary"`
}

// ShiftActivity is the crash and violation volume of one two-hour shift.
type ShiftActivity struct {
	ShiftID    string `json:"shift_id"`
	TimeRange  string `json:"time_range"`
	Accidents  int    `json:"accidents"`
	Violations int    `json:"violations"`
}

// PeakRecommendations names the shifts worth reinforcing in a district.
type PeakRecommendations struct {
	PriorityShifts        []string `json:"priority_shifts"`
	EnforcementSuggestion string   `json:"enforcement_suggestion"`
	Rationale             string   `json:"rationale"`
}

// PeakTimesResponse is the per-shift activity profile of one district.
type PeakTimesResponse struct {
	District        string              `json:"district"`
	QueryPeriod     Period              `json:"query_period"`
	Shifts          []ShiftActivity     `json:"shifts"`
	Recommendations PeakRecommendations `json:"recommendations"`
}

// AccidentHeatPoint is one district-level point on the crash heatmap.
type AccidentHeatPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Intensity int     `json:"intensity"`
	A1Count   int     `json:"a1_count"`
	A2Count   int     `json:"a2_count"`
	District  string  `json:"district"`
}

// AccidentHeatmapResponse carries the crash heatmap.
type AccidentHeatmapResponse struct {
	ShiftID     string              `json:"shift_id,omitempty"`
	Period      Period              `json:"period"`
	Points      []AccidentHeatPoint `json:"points"`
	TotalPoints int                 `json:"total_points"`
}

// CrossAnalysisEntry measures the enforcement gap of one district/shift
// combination: crash volume not matched by enforcement presence.
type CrossAnalysisEntry struct {
	District       string  `json:"district"`
	ShiftID        string  `json:"shift_id"`
	TimeRange      string  `json:"time_range"`
	Accidents      int     `json:"accidents"`
	Violations     int     `json:"violations"`
	EnforcementGap float64 `json:"enforcement_gap"`
	Priority       string  `json:"priority"`
}

// CrossSummary counts entries per priority level.
type CrossSummary struct {
	TotalCombinations   int `json:"total_combinations"`
	HighPriorityCount   int `json:"high_priority_count"`
	MediumPriorityCount int `json:"medium_priority_count"`
	LowPriorityCount    int `json:"low_priority_count"`
}

// CrossRecommendations highlights the combinations worth acting on first.
type CrossRecommendations struct {
	HighPriorityTargets []CrossAnalysisEntry `json:"high_priority_targets"`
	Suggestion          string               `json:"suggestion"`
}

// CrossAnalysisResponse is the crash-versus-enforcement gap report.
type CrossAnalysisResponse struct {
	QueryPeriod     Period               `json:"query_period"`
	DistrictFilter  string               `json:"district_filter,omitempty"`
	CrossAnalysis   []CrossAnalysisEntry `json:"cross_analysis"`
	Summary         CrossSummary         `json:"summary"`
	Recommendations CrossRecommendations `json:"recommendations"`
}

// RecommendationService scores districts for precision enforcement
type RecommendationService struct {
	repo    repository.RecordRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(repo repository.RecordRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *RecommendationService {
	return &RecommendationService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// today returns the current date truncated to midnight UTC.
func (s *RecommendationService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dataEndDate bounds report windows by the latest stored record so a stale
// database still produces meaningful reports.
func (s *RecommendationService) dataEndDate(ctx context.Context) (time.Time, error) {
	today := s.today()
	maxDate, ok, err := s.repo.MaxDataDate(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to resolve data end date: %w", err)
	}
	if !ok || maxDate.After(today) {
		return today, nil
	}
	return maxDate, nil
}

func requireTopic(code string) (normalize.TopicCode, error) {
	if !normalize.ValidTopic(code) {
		return "", &models.ValidationError{
			Field:   "topic_code",
			Value:   code,
			Message: "Invalid topic_code",
		}
	}
	return normalize.TopicCode(code), nil
}

// Top5 ranks districts by the blended VPI/CRI score for one topic and
// returns the five strongest enforcement targets.
func (s *RecommendationService) Top5(ctx context.Context, topicCode, shiftID string, days int) (*Top5Response, error) {
	timer := s.metrics.NewTimer(s.metrics.ScoringDuration)
	defer timer.ObserveDuration()

	topic, err := requireTopic(topicCode)
	if err != nil {
		return nil, err
	}

	end := s.today()
	start := end.AddDate(0, 0, -days)

	ticketCounts, err := s.repo.TicketDistrictCounts(ctx, repository.TicketFilter{
		Range:           repository.DateRange{Start: start, End: end},
		Topic:           topic,
		ShiftID:         shiftID,
		RequireDistrict: true,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket district counts: %w", err)
	}

	crashStats, err := s.repo.CrashDistrictStats(ctx, repository.CrashFilter{
		Range:           repository.DateRange{Start: start, End: end},
		RequireDistrict: true,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load crash district stats: %w", err)
	}

	crashByDistrict := make(map[string]repository.DistrictCrashStats, len(crashStats))
	for _, cs := range crashStats {
		crashByDistrict[cs.District] = cs
	}

	recs := make([]SiteRecommendation, 0, len(ticketCounts))
	for _, tc := range ticketCounts {
		if tc.District == "" {
			continue
		}
		cs := crashByDistrict[tc.District]

		vpi := CalculateVPI(tc.Count, topic)
		cri := CalculateCRI(cs.Total, cs.A1Count, cs.A2Count)
		score := CalculateScore(vpi, cri, topic)

		coord := normalize.DistrictCentroid(tc.District)
		recs = append(recs, SiteRecommendation{
			SiteID:      tc.District,
			SiteName:    tc.District,
			District:    tc.District,
			Latitude:    coord.Lat,
			Longitude:   coord.Lng,
			TicketCount: tc.Count,
			CrashCount:  cs.Total,
			VPI:         round2(vpi),
			CRI:         round2(cri),
			Score:       round2(score),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].TicketCount != recs[j].TicketCount {
			return recs[i].TicketCount > recs[j].TicketCount
		}
		return recs[i].District < recs[j].District
	})

	top := recs
	if len(top) > 5 {
		top = top[:5]
	}
	for i := range top {
		top[i].Rank = i + 1
	}

	return &Top5Response{
		TopicCode:       topicCode,
		ShiftID:         shiftID,
		Period:          periodOf(start, end, days),
		Recommendations: top,
		TotalSites:      len(recs),
	}, nil
}

// Heatmap returns district-level violation intensity for one topic.
func (s *RecommendationService) Heatmap(ctx context.Context, topicCode, shiftID string, days int) (*HeatmapResponse, error) {
	topic, err := requireTopic(topicCode)
	if err != nil {
		return nil, err
	}

	end := s.today()
	start := end.AddDate(0, 0, -days)

	counts, err := s.repo.TicketDistrictCounts(ctx, repository.TicketFilter{
		Range:           repository.DateRange{Start: start, End: end},
		Topic:           topic,
		ShiftID:         shiftID,
		RequireDistrict: true,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load heatmap counts: %w", err)
	}

	points := make([]HeatPoint, 0, len(counts))
	for _, dc := range counts {
		if dc.District == "" {
			continue
		}
		coord := normalize.DistrictCentroid(dc.District)
		points = append(points, HeatPoint{
			Latitude:  coord.Lat,
			Longitude: coord.Lng,
			Intensity: dc.Count,
			SiteName:  dc.District + "（區域統計）",
			District:  dc.District,
		})
	}

	return &HeatmapResponse{
		TopicCode:   topicCode,
		ShiftID:     shiftID,
		Period:      periodOf(start, end, days),
		Points:      points,
		TotalPoints: len(points),
	}, nil
}

// Briefing builds the pre-shift briefing card: the three districts with the
// heaviest violation volume for the topic over the trailing 30 days.
func (s *RecommendationService) Briefing(ctx context.Context, topicCode, shiftID, date string) (*BriefingCard, error) {
	topic, err := requireTopic(topicCode)
	if err != nil {
		return nil, err
	}

	target := s.today()
	if date != "" {
		target, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, &models.ValidationError{
				Field:   "date",
				Value:   date,
				Message: "Invalid date format",
			}
		}
	}
	start := target.AddDate(0, 0, -30)

	filter := repository.TicketFilter{
		Range:           repository.DateRange{Start: start, End: target},
		Topic:           topic,
		ShiftID:         shiftID,
		RequireDistrict: true,
	}

	topDistricts, err := s.repo.TicketDistrictCounts(ctx, filter, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to load top districts: %w", err)
	}
	total, err := s.repo.CountTickets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count violations: %w", err)
	}

	locations := make([]BriefingLocation, 0, len(topDistricts))
	for i, dc := range topDistricts {
		locations = append(locations, BriefingLocation{
			Rank:     i + 1,
			District: dc.District,
			Count:    dc.Count,
		})
	}

	focusArea := "熱點區域"
	if len(topDistricts) > 0 {
		focusArea = topDistricts[0].District
	}

	return &BriefingCard{
		Date:            target.Format(dateLayout),
		ShiftID:         shiftID,
		ShiftTime:       normalize.ShiftTimeRange(shiftID),
		TopicCode:       topicCode,
		TopicName:       topicNames[topic],
		TopLocations:    locations,
		TotalViolations: total,
		Recommendation:  fmt.Sprintf("建議在%s加強%s取締", focusArea, topicNames[topic]),
	}, nil
}

// AccidentHotspots ranks districts by crash severity score and pairs each
// with its enforcement volume to suggest a priority topic.
func (s *RecommendationService) AccidentHotspots(ctx context.Context, days int) (*AccidentHotspotsResponse, error) {
	timer := s.metrics.NewTimer(s.metrics.AnalyticsDuration.WithLabelValues("accident_hotspots"))
	defer timer.ObserveDuration()

	end, err := s.dataEndDate(ctx)
	if err != nil {
		return nil, err
	}
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	crashStats, err := s.repo.CrashDistrictStats(ctx, repository.CrashFilter{
		Range:           dateRange,
		RequireDistrict: true,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load crash hotspots: %w", err)
	}

	hotspots := make([]DistrictHotspot, 0, len(crashStats))
	var summary HotspotSummary

	for _, cs := range crashStats {
		if cs.District == "" {
			continue
		}
		summary.TotalAccidents += cs.Total
		summary.A1Total += cs.A1Count
		summary.A2Total += cs.A2Count
		summary.A3Total += cs.A3Count

		districtFilter := repository.TicketFilter{Range: dateRange, District: cs.District}
		topics, err := s.repo.TicketTopicCounts(ctx, districtFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to load district topic counts: %w", err)
		}
		violationTotal, err := s.repo.CountTickets(ctx, districtFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to count district violations: %w", err)
		}

		priority := priorityTopic(topics)
		focus := "需要更多數據分析"
		var priorityPtr *string
		if priority != "" {
			code := string(priority)
			priorityPtr = &code
			focus = fmt.Sprintf("建議加強%s取締", hotspotFocusNames[priority])
		}

		coord := normalize.DistrictCentroid(cs.District)
		hotspots = append(hotspots, DistrictHotspot{
			District:  cs.District,
			Latitude:  coord.Lat,
			Longitude: coord.Lng,
			Accidents: HotspotAccidents{
				Total:         cs.Total,
				A1Count:       cs.A1Count,
				A2Count:       cs.A2Count,
				A3Count:       cs.A3Count,
				SeverityScore: cs.SeverityScore,
			},
			Violations: HotspotViolations{
				Total:            violationTotal,
				DUI:              topics.DUI,
				RedLight:         topics.RedLight,
				DangerousDriving: topics.Dangerous,
			},
			Recommendation: HotspotRecommendation{
				PriorityTopic:    priorityPtr,
				EnforcementFocus: focus,
			},
		})
	}

	return &AccidentHotspotsResponse{
		QueryPeriod:    periodOf(start, end, days),
		Hotspots:       hotspots,
		TotalDistricts: len(hotspots),
		Summary:        summary,
	}, nil
}

// priorityTopic picks the topic with the largest ticket volume, in the fixed
// DUI, red-light, dangerous-driving order on ties. Empty when all are zero.
func priorityTopic(counts repository.TopicCounts) normalize.TopicCode {
	best := normalize.TopicCode("")
	bestCount := 0
	for _, candidate := range []struct {
		topic normalize.TopicCode
		count int
	}{
		{normalize.TopicDUI, counts.DUI},
		{normalize.TopicRedLight, counts.RedLight},
		{normalize.TopicDangerous, counts.Dangerous},
	} {
		if candidate.count > bestCount {
			best = candidate.topic
			bestCount = candidate.count
		}
	}
	return best
}

// PeakTimes profiles crash and violation volume across the twelve shifts of
// one district and names the shifts worth reinforcing.
func (s *RecommendationService) PeakTimes(ctx context.Context, district string, days int) (*PeakTimesResponse, error) {
	end, err := s.dataEndDate(ctx)
	if err != nil {
		return nil, err
	}
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	crashShifts, err := s.repo.CrashShiftCounts(ctx, repository.CrashFilter{Range: dateRange, District: district})
	if err != nil {
		return nil, fmt.Errorf("failed to load crash shift counts: %w", err)
	}
	ticketShifts, err := s.repo.TicketShiftCounts(ctx, repository.TicketFilter{Range: dateRange, District: district})
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket shift counts: %w", err)
	}

	crashes := make(map[string]int, len(crashShifts))
	for _, sc := range crashShifts {
		crashes[sc.ShiftID] = sc.Count
	}
	violations := make(map[string]int, len(ticketShifts))
	for _, sc := range ticketShifts {
		violations[sc.ShiftID] = sc.Count
	}

	shifts := make([]ShiftActivity, 0, 12)
	for _, id := range normalize.AllShiftIDs() {
		shifts = append(shifts, ShiftActivity{
			ShiftID:    id,
			TimeRange:  normalize.ShiftTimeRange(id),
			Accidents:  crashes[id],
			Violations: violations[id],
		})
	}

	ranked := make([]ShiftActivity, len(shifts))
	copy(ranked, shifts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Accidents > ranked[j].Accidents
	})

	var priorityShifts []string
	var priorityRanges []string
	for _, sa := range ranked[:3] {
		if sa.Accidents > 0 {
			priorityShifts = append(priorityShifts, sa.ShiftID)
			priorityRanges = append(priorityRanges, sa.TimeRange)
		}
	}

	suggestion := "無明顯高峰時段"
	if len(priorityShifts) > 0 {
		if len(priorityRanges) > 2 {
			priorityRanges = priorityRanges[:2]
		}
		suggestion = fmt.Sprintf("建議在%s加強取締", strings.Join(priorityRanges, ", "))
	}

	return &PeakTimesResponse{
		District:    district,
		QueryPeriod: periodOf(start, end, days),
		Shifts:      shifts,
		Recommendations: PeakRecommendations{
			PriorityShifts:        priorityShifts,
			EnforcementSuggestion: suggestion,
			Rationale:             "該時段事故發生率較高",
		},
	}, nil
}

// AccidentHeatmap returns district-level crash intensity points.
func (s *RecommendationService) AccidentHeatmap(ctx context.Context, shiftID string, days int) (*AccidentHeatmapResponse, error) {
	end, err := s.dataEndDate(ctx)
	if err != nil {
		return nil, err
	}
	start := end.AddDate(0, 0, -days)

	stats, err := s.repo.CrashDistrictStats(ctx, repository.CrashFilter{
		Range:           repository.DateRange{Start: start, End: end},
		ShiftID:         shiftID,
		RequireDistrict: true,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load crash heatmap: %w", err)
	}

	points := make([]AccidentHeatPoint, 0, len(stats))
	for _, cs := range stats {
		if cs.District == "" {
			continue
		}
		coord := normalize.DistrictCentroid(cs.District)
		points = append(points, AccidentHeatPoint{
			Latitude:  coord.Lat,
			Longitude: coord.Lng,
			Intensity: cs.Total,
			A1Count:   cs.A1Count,
			A2Count:   cs.A2Count,
			District:  cs.District,
		})
	}

	return &AccidentHeatmapResponse{
		ShiftID:     shiftID,
		Period:      periodOf(start, end, days),
		Points:      points,
		TotalPoints: len(points),
	}, nil
}

// CrossAnalysis measures the enforcement gap of every district/shift
// combination: crash volume discounted by a tenth of the violation volume.
func (s *RecommendationService) CrossAnalysis(ctx context.Context, district string, days int) (*CrossAnalysisResponse, error) {
	timer := s.metrics.NewTimer(s.metrics.AnalyticsDuration.WithLabelValues("cross_analysis"))
	defer timer.ObserveDuration()

	end, err := s.dataEndDate(ctx)
	if err != nil {
		return nil, err
	}
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	crashStats, err := s.repo.CrashDistrictShiftCounts(ctx, repository.CrashFilter{
		Range:           dateRange,
		District:        district,
		RequireDistrict: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load crash cross stats: %w", err)
	}
	ticketStats, err := s.repo.TicketDistrictShiftCounts(ctx, repository.TicketFilter{
		Range:           dateRange,
		District:        district,
		RequireDistrict: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket cross stats: %w", err)
	}

	violationsByKey := make(map[string]int, len(ticketStats))
	for _, ts := range ticketStats {
		violationsByKey[ts.District+"|"+ts.ShiftID] = ts.Count
	}

	entries := make([]CrossAnalysisEntry, 0, len(crashStats))
	var summary CrossSummary
	for _, cs := range crashStats {
		violationCount := violationsByKey[cs.District+"|"+cs.ShiftID]

		gap := float64(cs.Count)
		if violationCount > 0 {
			gap = float64(cs.Count) - float64(violationCount)*0.1
		}

		priority := "LOW"
		switch {
		case gap > 5:
			priority = "HIGH"
			summary.HighPriorityCount++
		case gap > 2:
			priority = "MEDIUM"
			summary.MediumPriorityCount++
		default:
			summary.LowPriorityCount++
		}

		entries = append(entries, CrossAnalysisEntry{
			District:       cs.District,
			ShiftID:        cs.ShiftID,
			TimeRange:      normalize.ShiftTimeRange(cs.ShiftID),
			Accidents:      cs.Count,
			Violations:     violationCount,
			EnforcementGap: round1(gap),
			Priority:       priority,
		})
	}
	summary.TotalCombinations = len(entries)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EnforcementGap > entries[j].EnforcementGap
	})

	var highPriority []CrossAnalysisEntry
	for _, e := range entries {
		if e.Priority == "HIGH" {
			highPriority = append(highPriority, e)
		}
	}
	if len(highPriority) > 5 {
		highPriority = highPriority[:5]
	}

	return &CrossAnalysisResponse{
		QueryPeriod:    periodOf(start, end, days),
		DistrictFilter: district,
		CrossAnalysis:  entries,
		Summary:        summary,
		Recommendations: CrossRecommendations{
			HighPriorityTargets: highPriority,
			Suggestion:          "針對執法缺口高的區域/時段加強取締，可有效降低事故發生率",
		},
	}, nil
}
