package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/normalize"
	"enforcement-platform/internal/repository"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// TopicInfo is the display metadata of one enforcement topic.
type TopicInfo struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

var topicCatalog = []TopicInfo{
	{Code: "DUI", Name: "酒駕精準打擊", Emoji: "🍺", Description: "酒後駕車及肇事防制", Color: "#E57373"},
	{Code: "RED_LIGHT", Name: "闖紅燈", Emoji: "🚦", Description: "號誌違規防制", Color: "#FFB74D"},
	{Code: "DANGEROUS_DRIVING", Name: "危險駕駛", Emoji: "⚡", Description: "超速及危險駕駛防制", Color: "#64B5F6"},
}

// CountWithElderly is a record count with its elderly share.
type CountWithElderly struct {
	Total             int     `json:"total"`
	Elderly           int     `json:"elderly"`
	ElderlyPercentage float64 `json:"elderly_percentage"`
}

// OverviewResponse is the top-level dashboard summary.
type OverviewResponse struct {
	Period  Period                 `json:"period"`
	Tickets CountWithElderly       `json:"tickets"`
	Crashes CountWithElderly       `json:"crashes"`
	Topics  repository.TopicCounts `json:"topics"`
	Note    string                 `json:"note"`
}

// MonthPeriod names a calendar month.
type MonthPeriod struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// MonthlyBucket is one month's record volume.
type MonthlyBucket struct {
	Tickets int                    `json:"tickets"`
	Crashes int                    `json:"crashes"`
	Topics  repository.TopicCounts `json:"topics"`
}

// LastYearBucket is the same-month volume one year earlier.
type LastYearBucket struct {
	Year    int                    `json:"year"`
	Tickets int                    `json:"tickets"`
	Crashes int                    `json:"crashes"`
	Topics  repository.TopicCounts `json:"topics"`
}

// MonthComparison carries the year-over-year change rates.
type MonthComparison struct {
	TicketsChange float64 `json:"tickets_change"`
	CrashesChange float64 `json:"crashes_change"`
	TicketsTrend  string  `json:"tickets_trend"`
	CrashesTrend  string  `json:"crashes_trend"`
}

// MonthlyResponse compares one month against the same month last year.
type MonthlyResponse struct {
	Period     MonthPeriod     `json:"period"`
	Current    MonthlyBucket   `json:"current"`
	LastYear   LastYearBucket  `json:"last_year"`
	Comparison MonthComparison `json:"comparison"`
	Note       string          `json:"note"`
}

// SeverityCount is a per-severity crash count.
type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// AgeGroupCount is a per-age-bucket count. The bucket is nil when the source
// rows carried no age at all.
type AgeGroupCount struct {
	AgeGroup *string `json:"age_group"`
	Count    int     `json:"count"`
}

// GenderCount is a per-gender count.
type GenderCount struct {
	Gender *string `json:"gender"`
	Count  int     `json:"count"`
}

// DemographicsSection groups the bucketed demographic counts.
type DemographicsSection struct {
	AgeGroups []AgeGroupCount `json:"age_groups"`
	Gender    []GenderCount   `json:"gender"`
}

// DistributionSection groups counts over shifts and districts.
type DistributionSection struct {
	Shifts    []repository.ShiftCount    `json:"shifts"`
	Districts []repository.DistrictCount `json:"districts"`
}

// ElderlyTicketStats is the elderly violation volume with its topic split.
type ElderlyTicketStats struct {
	Total  int                    `json:"total"`
	Topics repository.TopicCounts `json:"topics"`
}

// ElderlyCrashStats is the elderly crash volume with its severity split.
type ElderlyCrashStats struct {
	Total    int             `json:"total"`
	Severity []SeverityCount `json:"severity"`
}

// ElderlyResponse is the elderly road-safety report.
type ElderlyResponse struct {
	Period       Period              `json:"period"`
	Tickets      ElderlyTicketStats  `json:"tickets"`
	Crashes      ElderlyCrashStats   `json:"crashes"`
	Demographics DemographicsSection `json:"demographics"`
	Distribution DistributionSection `json:"distribution"`
	Note         string              `json:"note"`
}

// ShiftAnalysisEntry is the full activity profile of one two-hour shift.
type ShiftAnalysisEntry struct {
	ShiftID     string                 `json:"shift_id"`
	ShiftNumber int                    `json:"shift_number"`
	TimeRange   string                 `json:"time_range"`
	Tickets     int                    `json:"tickets"`
	Crashes     int                    `json:"crashes"`
	Topics      repository.TopicCounts `json:"topics"`
	Elderly     int                    `json:"elderly"`
}

// ShiftAnalysisResponse profiles all twelve shifts.
type ShiftAnalysisResponse struct {
	Period Period               `json:"period"`
	Shifts []ShiftAnalysisEntry `json:"shifts"`
	Note   string               `json:"note"`
}

// DistrictShare is a per-district count with its share of the total.
type DistrictShare struct {
	District   string  `json:"district"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ViolationTopicSplit counts tickets per topic plus the remainder.
type ViolationTopicSplit struct {
	DUI              int `json:"dui"`
	RedLight         int `json:"red_light"`
	DangerousDriving int `json:"dangerous_driving"`
	Others           int `json:"others"`
}

// ViolationStatsResponse is the violation composition report.
type ViolationStatsResponse struct {
	Period        Period                      `json:"period"`
	TotalTickets  int                         `json:"total_tickets"`
	Districts     []DistrictShare             `json:"districts"`
	TopViolations []repository.ViolationCount `json:"top_violations"`
	Topics        ViolationTopicSplit         `json:"topics"`
}

// HotspotRankingOptions selects the window and filters of a hotspot ranking.
// Year and Month, when both set, override Days.
type HotspotRankingOptions struct {
	Year            int
	Month           int
	Days            int
	TopN            int
	Severity        string
	CompareBaseline bool
}

// RankingPeriod is the resolved window of a hotspot ranking. Days is omitted
// when the window came from an explicit year/month.
type RankingPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  *int   `json:"days"`
	Year  *int   `json:"year"`
	Month *int   `json:"month"`
}

// BaselinePeriod is the comparison window one year earlier.
type BaselinePeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Type  string `json:"type"`
}

// AccidentHotspotItem is one ranked crash location.
type AccidentHotspotItem struct {
	Rank      int      `json:"rank"`
	Location  string   `json:"location"`
	District  string   `json:"district"`
	A1Count   int      `json:"a1_count"`
	A2Count   int      `json:"a2_count"`
	A3Count   int      `json:"a3_count"`
	Total     int      `json:"total"`
	TrendPct  *float64 `json:"trend_pct"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// AccidentHotspotRankingResponse ranks crash locations by volume.
type AccidentHotspotRankingResponse struct {
	Period        RankingPeriod         `json:"period"`
	Baseline      *BaselinePeriod       `json:"baseline"`
	Hotspots      []AccidentHotspotItem `json:"hotspots"`
	TotalInPeriod int                   `json:"total_in_period"`
}

// SimplePeriod is a plain start/end/days window.
type SimplePeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// TicketHotspotItem is one ranked violation location.
type TicketHotspotItem struct {
	Rank      int      `json:"rank"`
	Location  string   `json:"location"`
	District  string   `json:"district"`
	Count     int      `json:"count"`
	Topic     string   `json:"topic"`
	TrendPct  *float64 `json:"trend_pct"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// TicketHotspotRankingResponse ranks violation locations by volume.
type TicketHotspotRankingResponse struct {
	Period   SimplePeriod        `json:"period"`
	Topic    string              `json:"topic"`
	Hotspots []TicketHotspotItem `json:"hotspots"`
}

// OverlapRates carries the overlap of accident hotspots against each
// enforcement hotspot set.
type OverlapRates struct {
	AccidentVsAllTickets float64 `json:"accident_vs_all_tickets"`
	AccidentVsDUI        float64 `json:"accident_vs_dui"`
	AccidentVsRedLight   float64 `json:"accident_vs_red_light"`
	AccidentVsDangerous  float64 `json:"accident_vs_dangerous"`
}

// HotspotOverlapResponse reports how well enforcement locations align with
// accident locations.
type HotspotOverlapResponse struct {
	Period               SimplePeriod `json:"period"`
	TopN                 int          `json:"top_n"`
	AccidentHotspotCount int          `json:"accident_hotspot_count"`
	OverlapRates         OverlapRates `json:"overlap_rates"`
	Interpretation       string       `json:"interpretation"`
}

// TopicCatalogResponse lists the enforcement topics.
type TopicCatalogResponse struct {
	Topics []TopicInfo `json:"topics"`
	Total  int         `json:"total"`
}

// TopicCrashCounts is the crash volume relevant to a topic window.
type TopicCrashCounts struct {
	Total   int `json:"total"`
	Elderly int `json:"elderly"`
}

// TopicStatsResponse is the full statistics page of one topic.
type TopicStatsResponse struct {
	Topic        TopicInfo           `json:"topic"`
	Period       Period              `json:"period"`
	ShiftID      string              `json:"shift_id,omitempty"`
	Tickets      CountWithElderly    `json:"tickets"`
	Crashes      TopicCrashCounts    `json:"crashes"`
	Demographics DemographicsSection `json:"demographics"`
	Distribution DistributionSection `json:"distribution"`
	Note         string              `json:"note"`
}

// MonthTrend is one month of a topic trend with its year-over-year change.
type MonthTrend struct {
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	Count         int     `json:"count"`
	LastYearCount int     `json:"last_year_count"`
	ChangeRate    float64 `json:"change_rate"`
	Trend         string  `json:"trend"`
}

// TrendSummary averages a topic trend series.
type TrendSummary struct {
	TotalMonths       int     `json:"total_months"`
	AverageCount      float64 `json:"average_count"`
	AverageChangeRate float64 `json:"average_change_rate"`
}

// TopicTrendsResponse is the monthly trend series of one topic.
type TopicTrendsResponse struct {
	Topic   TopicInfo    `json:"topic"`
	Months  []MonthTrend `json:"months"`
	Summary TrendSummary `json:"summary"`
	Note    string       `json:"note"`
}

// AnalyticsService produces the aggregate statistics reports
type AnalyticsService struct {
	repo    repository.RecordRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repo repository.RecordRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalyticsService {
	return &AnalyticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

func (s *AnalyticsService) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// percentage returns part/total*100 rounded to one decimal, 0 when total is 0.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

// changeRate returns the year-over-year change in percent, 0 when there is
// no baseline to compare against.
func changeRate(current, baseline int) float64 {
	if baseline == 0 {
		return 0
	}
	return round1(float64(current-baseline) / float64(baseline) * 100)
}

func trendLabel(change float64) string {
	switch {
	case change > 0:
		return "上升"
	case change < 0:
		return "下降"
	default:
		return "持平"
	}
}

// Overview summarizes the trailing window: record volume, topic split and
// elderly share.
func (s *AnalyticsService) Overview(ctx context.Context, days int) (*OverviewResponse, error) {
	timer := s.metrics.NewTimer(s.metrics.AnalyticsDuration.WithLabelValues("overview"))
	defer timer.ObserveDuration()

	end := s.today()
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	totalTickets, err := s.repo.CountTickets(ctx, repository.TicketFilter{Range: dateRange})
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	totalCrashes, err := s.repo.CountCrashes(ctx, repository.CrashFilter{Range: dateRange})
	if err != nil {
		return nil, fmt.Errorf("failed to count crashes: %w", err)
	}
	topics, err := s.repo.TicketTopicCounts(ctx, repository.TicketFilter{Range: dateRange})
	if err != nil {
		return nil, fmt.Errorf("failed to count ticket topics: %w", err)
	}
	elderlyTickets, err := s.repo.CountTickets(ctx, repository.TicketFilter{Range: dateRange, ElderlyOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly tickets: %w", err)
	}
	elderlyCrashes, err := s.repo.CountCrashes(ctx, repository.CrashFilter{Range: dateRange, ElderlyOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly crashes: %w", err)
	}

	return &OverviewResponse{
		Period: periodOf(start, end, days),
		Tickets: CountWithElderly{
			Total:             totalTickets,
			Elderly:           elderlyTickets,
			ElderlyPercentage: percentage(elderlyTickets, totalTickets),
		},
		Crashes: CountWithElderly{
			Total:             totalCrashes,
			Elderly:           elderlyCrashes,
			ElderlyPercentage: percentage(elderlyCrashes, totalCrashes),
		},
		Topics: topics,
		Note:   "統計資料已完全去識別化",
	}, nil
}

// Monthly compares one calendar month against the same month a year earlier.
func (s *AnalyticsService) Monthly(ctx context.Context, year, month int) (*MonthlyResponse, error) {
	if year < 1 || month < 1 || month > 12 {
		return nil, &models.ValidationError{
			Field:   "period",
			Value:   fmt.Sprintf("%d-%d", year, month),
			Message: "無效的年月",
		}
	}

	monthBucket := func(y int) (MonthlyBucket, error) {
		tickets, err := s.repo.CountTickets(ctx, repository.TicketFilter{Year: y, Month: month})
		if err != nil {
			return MonthlyBucket{}, fmt.Errorf("failed to count tickets: %w", err)
		}
		crashes, err := s.repo.CountCrashes(ctx, repository.CrashFilter{Year: y, Month: month})
		if err != nil {
			return MonthlyBucket{}, fmt.Errorf("failed to count crashes: %w", err)
		}
		topics, err := s.repo.TicketTopicCounts(ctx, repository.TicketFilter{Year: y, Month: month})
		if err != nil {
			return MonthlyBucket{}, fmt.Errorf("failed to count ticket topics: %w", err)
		}
		return MonthlyBucket{Tickets: tickets, Crashes: crashes, Topics: topics}, nil
	}

	current, err := monthBucket(year)
	if err != nil {
		return nil, err
	}
	lastYear, err := monthBucket(year - 1)
	if err != nil {
		return nil, err
	}

	ticketsChange := changeRate(current.Tickets, lastYear.Tickets)
	crashesChange := changeRate(current.Crashes, lastYear.Crashes)

	return &MonthlyResponse{
		Period:  MonthPeriod{Year: year, Month: month},
		Current: current,
		LastYear: LastYearBucket{
			Year:    year - 1,
			Tickets: lastYear.Tickets,
			Crashes: lastYear.Crashes,
			Topics:  lastYear.Topics,
		},
		Comparison: MonthComparison{
			TicketsChange: ticketsChange,
			CrashesChange: crashesChange,
			TicketsTrend:  trendLabel(ticketsChange),
			CrashesTrend:  trendLabel(crashesChange),
		},
		Note: "僅統計分析，無個資",
	}, nil
}

// Elderly builds the elderly road-safety report for the trailing window.
func (s *AnalyticsService) Elderly(ctx context.Context, days int) (*ElderlyResponse, error) {
	end := s.today()
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	ticketFilter := repository.TicketFilter{Range: dateRange, ElderlyOnly: true}
	crashFilter := repository.CrashFilter{Range: dateRange, ElderlyOnly: true}

	totalTickets, err := s.repo.CountTickets(ctx, ticketFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly tickets: %w", err)
	}
	topics, err := s.repo.TicketTopicCounts(ctx, ticketFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly ticket topics: %w", err)
	}
	ageGroups, err := s.repo.TicketAgeGroupCounts(ctx, ticketFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly age groups: %w", err)
	}
	genders, err := s.repo.TicketGenderCounts(ctx, ticketFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly genders: %w", err)
	}
	shifts, err := s.repo.TicketShiftCounts(ctx, ticketFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly ticket shifts: %w", err)
	}
	totalCrashes, err := s.repo.CountCrashes(ctx, crashFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly crashes: %w", err)
	}
	severities, err := s.repo.CrashSeverityCounts(ctx, crashFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly crash severities: %w", err)
	}
	districts, err := s.repo.CrashDistrictCounts(ctx, crashFilter, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly crash districts: %w", err)
	}

	severityCounts := make([]SeverityCount, 0, 3)
	for _, sev := range []string{"A1", "A2", "A3"} {
		severityCounts = append(severityCounts, SeverityCount{Severity: sev, Count: severities[sev]})
	}

	return &ElderlyResponse{
		Period:  periodOf(start, end, days),
		Tickets: ElderlyTicketStats{Total: totalTickets, Topics: topics},
		Crashes: ElderlyCrashStats{Total: totalCrashes, Severity: severityCounts},
		Demographics: DemographicsSection{
			AgeGroups: toAgeGroupCounts(ageGroups),
			Gender:    toGenderCounts(genders),
		},
		Distribution: DistributionSection{
			Shifts:    shifts,
			Districts: districts,
		},
		Note: "高齡者防治統計，已完全去識別化",
	}, nil
}

func toAgeGroupCounts(groups []repository.GroupCount) []AgeGroupCount {
	out := make([]AgeGroupCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, AgeGroupCount{AgeGroup: g.Key, Count: g.Count})
	}
	return out
}

func toGenderCounts(groups []repository.GroupCount) []GenderCount {
	out := make([]GenderCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, GenderCount{Gender: g.Key, Count: g.Count})
	}
	return out
}

// Shifts profiles all twelve two-hour shifts over the trailing window.
func (s *AnalyticsService) Shifts(ctx context.Context, days int) (*ShiftAnalysisResponse, error) {
	end := s.today()
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	ticketShifts, err := s.repo.TicketShiftCounts(ctx, repository.TicketFilter{Range: dateRange})
	if err != nil {
		return nil, fmt.Errorf("failed to count ticket shifts: %w", err)
	}
	crashShifts, err := s.repo.CrashShiftCounts(ctx, repository.CrashFilter{Range: dateRange})
	if err != nil {
		return nil, fmt.Errorf("failed to count crash shifts: %w", err)
	}
	elderlyShifts, err := s.repo.TicketShiftCounts(ctx, repository.TicketFilter{Range: dateRange, ElderlyOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly ticket shifts: %w", err)
	}

	topicShifts := make(map[normalize.TopicCode]map[string]int, 3)
	for _, topic := range normalize.AllTopics() {
		counts, err := s.repo.TicketShiftCounts(ctx, repository.TicketFilter{Range: dateRange, Topic: topic})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s shifts: %w", topic, err)
		}
		topicShifts[topic] = shiftCountMap(counts)
	}

	tickets := shiftCountMap(ticketShifts)
	crashes := shiftCountMap(crashShifts)
	elderly := shiftCountMap(elderlyShifts)

	entries := make([]ShiftAnalysisEntry, 0, 12)
	for i, id := range normalize.AllShiftIDs() {
		entries = append(entries, ShiftAnalysisEntry{
			ShiftID:     id,
			ShiftNumber: i + 1,
			TimeRange:   normalize.ShiftTimeRange(id),
			Tickets:     tickets[id],
			Crashes:     crashes[id],
			Topics: repository.TopicCounts{
				DUI:       topicShifts[normalize.TopicDUI][id],
				RedLight:  topicShifts[normalize.TopicRedLight][id],
				Dangerous: topicShifts[normalize.TopicDangerous][id],
			},
			Elderly: elderly[id],
		})
	}

	return &ShiftAnalysisResponse{
		Period: periodOf(start, end, days),
		Shifts: entries,
		Note:   "班別統計分析，無個資",
	}, nil
}

func shiftCountMap(counts []repository.ShiftCount) map[string]int {
	m := make(map[string]int, len(counts))
	for _, c := range counts {
		m[c.ShiftID] = c.Count
	}
	return m
}

// Violations reports the violation composition: per-district share, the ten
// most-cited clauses, and the topic split.
func (s *AnalyticsService) Violations(ctx context.Context, days int) (*ViolationStatsResponse, error) {
	end := s.today()
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}
	filter := repository.TicketFilter{Range: dateRange}

	total, err := s.repo.CountTickets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	districts, err := s.repo.TicketDistrictCounts(ctx, repository.TicketFilter{Range: dateRange, RequireDistrict: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to count ticket districts: %w", err)
	}
	topViolations, err := s.repo.TopViolations(ctx, filter, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load top violations: %w", err)
	}
	topics, err := s.repo.TicketTopicCounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count ticket topics: %w", err)
	}

	shares := make([]DistrictShare, 0, len(districts))
	for _, dc := range districts {
		shares = append(shares, DistrictShare{
			District:   dc.District,
			Count:      dc.Count,
			Percentage: percentage(dc.Count, total),
		})
	}

	return &ViolationStatsResponse{
		Period:        periodOf(start, end, days),
		TotalTickets:  total,
		Districts:     shares,
		TopViolations: topViolations,
		Topics: ViolationTopicSplit{
			DUI:              topics.DUI,
			RedLight:         topics.RedLight,
			DangerousDriving: topics.Dangerous,
			Others:           total - (topics.DUI + topics.RedLight + topics.Dangerous),
		},
	}, nil
}

// rankingWindow resolves the date window of a hotspot ranking: an explicit
// year/month pair wins over the trailing-days default.
func (s *AnalyticsService) rankingWindow(opts HotspotRankingOptions) (start, end time.Time, period RankingPeriod) {
	if opts.Year > 0 && opts.Month > 0 {
		start = time.Date(opts.Year, time.Month(opts.Month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
		year, month := opts.Year, opts.Month
		period = RankingPeriod{
			Start: start.Format(dateLayout),
			End:   end.Format(dateLayout),
			Year:  &year,
			Month: &month,
		}
		return start, end, period
	}

	end = s.today()
	start = end.AddDate(0, 0, -opts.Days)
	days := opts.Days
	period = RankingPeriod{
		Start: start.Format(dateLayout),
		End:   end.Format(dateLayout),
		Days:  &days,
	}
	return start, end, period
}

func validateTopN(topN int) error {
	if topN < 1 || topN > 50 {
		return &models.ValidationError{
			Field:   "top_n",
			Value:   fmt.Sprintf("%d", topN),
			Message: "top_n 需介於 1 到 50",
		}
	}
	return nil
}

// fullLocation joins the district and the location description unless the
// description already names the district.
func fullLocation(district, locationDesc string) string {
	if locationDesc == "" {
		return "未知地點"
	}
	if district != "" && !strings.Contains(locationDesc, district) {
		return district + " " + locationDesc
	}
	return locationDesc
}

func displayDistrict(district string) string {
	if district == "" {
		return "未知區"
	}
	return district
}

// AccidentHotspotRanking ranks crash locations by volume with an optional
// severity filter and a year-over-year trend comparison.
func (s *AnalyticsService) AccidentHotspotRanking(ctx context.Context, opts HotspotRankingOptions) (*AccidentHotspotRankingResponse, error) {
	timer := s.metrics.NewTimer(s.metrics.AnalyticsDuration.WithLabelValues("accident_hotspot_ranking"))
	defer timer.ObserveDuration()

	if err := validateTopN(opts.TopN); err != nil {
		return nil, err
	}

	start, end, period := s.rankingWindow(opts)

	stats, err := s.repo.CrashLocationStats(ctx, repository.CrashFilter{
		Range:           repository.DateRange{Start: start, End: end},
		Severity:        opts.Severity,
		RequireLocation: true,
	}, opts.TopN)
	if err != nil {
		return nil, fmt.Errorf("failed to load crash location stats: %w", err)
	}

	var baseline *BaselinePeriod
	baselineTotals := map[string]int{}
	if opts.CompareBaseline {
		baselineStart := start.AddDate(-1, 0, 0)
		baselineEnd := end.AddDate(-1, 0, 0)
		baseline = &BaselinePeriod{
			Start: baselineStart.Format(dateLayout),
			End:   baselineEnd.Format(dateLayout),
			Type:  "去年同期",
		}

		baselineStats, err := s.repo.CrashLocationStats(ctx, repository.CrashFilter{
			Range:           repository.DateRange{Start: baselineStart, End: baselineEnd},
			RequireLocation: true,
		}, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load baseline location stats: %w", err)
		}
		for _, bs := range baselineStats {
			baselineTotals[bs.District+"|"+bs.LocationDesc] = bs.Total
		}
	}

	hotspots := make([]AccidentHotspotItem, 0, len(stats))
	for i, ls := range stats {
		var trend *float64
		if base := baselineTotals[ls.District+"|"+ls.LocationDesc]; opts.CompareBaseline && base > 0 {
			pct := round1(float64(ls.Total-base) / float64(base) * 100)
			trend = &pct
		}

		hotspots = append(hotspots, AccidentHotspotItem{
			Rank:      i + 1,
			Location:  fullLocation(ls.District, ls.LocationDesc),
			District:  displayDistrict(ls.District),
			A1Count:   ls.A1Count,
			A2Count:   ls.A2Count,
			A3Count:   ls.A3Count,
			Total:     ls.Total,
			TrendPct:  trend,
			Latitude:  ls.AvgLat,
			Longitude: ls.AvgLng,
		})
	}

	totalInPeriod, err := s.repo.CountCrashes(ctx, repository.CrashFilter{
		Range: repository.DateRange{Start: start, End: end},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count crashes in period: %w", err)
	}

	return &AccidentHotspotRankingResponse{
		Period:        period,
		Baseline:      baseline,
		Hotspots:      hotspots,
		TotalInPeriod: totalInPeriod,
	}, nil
}

// hotspotTopic maps the short topic filter values used by the hotspot
// endpoints onto topic codes and display labels.
func hotspotTopic(topic string) (normalize.TopicCode, string) {
	switch topic {
	case "DUI":
		return normalize.TopicDUI, "酒駕"
	case "RED_LIGHT":
		return normalize.TopicRedLight, "闘紅燈"
	case "DANGEROUS":
		return normalize.TopicDangerous, "危險駕駛"
	}
	return "", "全部"
}

// TicketHotspotRanking ranks violation locations by volume with an optional
// topic filter.
func (s *AnalyticsService) TicketHotspotRanking(ctx context.Context, opts HotspotRankingOptions, topic string) (*TicketHotspotRankingResponse, error) {
	if err := validateTopN(opts.TopN); err != nil {
		return nil, err
	}

	start, end, _ := s.rankingWindow(opts)
	topicCode, topicLabel := hotspotTopic(topic)

	counts, err := s.repo.TicketLocationCounts(ctx, repository.TicketFilter{
		Range:           repository.DateRange{Start: start, End: end},
		Topic:           topicCode,
		RequireLocation: true,
	}, opts.TopN)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket location counts: %w", err)
	}

	hotspots := make([]TicketHotspotItem, 0, len(counts))
	for i, lc := range counts {
		hotspots = append(hotspots, TicketHotspotItem{
			Rank:      i + 1,
			Location:  fullLocation(lc.District, lc.LocationDesc),
			District:  displayDistrict(lc.District),
			Count:     lc.Count,
			Topic:     topicLabel,
			Latitude:  lc.AvgLat,
			Longitude: lc.AvgLng,
		})
	}

	return &TicketHotspotRankingResponse{
		Period: SimplePeriod{
			Start: start.Format(dateLayout),
			End:   end.Format(dateLayout),
			Days:  opts.Days,
		},
		Topic:    topicLabel,
		Hotspots: hotspots,
	}, nil
}

// HotspotOverlap measures how many of the top accident locations also rank
// among the top enforcement locations, overall and per topic.
func (s *AnalyticsService) HotspotOverlap(ctx context.Context, days, topN int) (*HotspotOverlapResponse, error) {
	end := s.today()
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	crashStats, err := s.repo.CrashLocationStats(ctx, repository.CrashFilter{
		Range:           dateRange,
		RequireLocation: true,
	}, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to load accident hotspots: %w", err)
	}

	accidentSet := make(map[string]bool, len(crashStats))
	for _, cs := range crashStats {
		accidentSet[cs.District+"|"+cs.LocationDesc] = true
	}

	ticketSet := func(topic normalize.TopicCode) (map[string]bool, error) {
		counts, err := s.repo.TicketLocationCounts(ctx, repository.TicketFilter{
			Range:           dateRange,
			Topic:           topic,
			RequireLocation: true,
		}, topN)
		if err != nil {
			return nil, fmt.Errorf("failed to load ticket hotspots: %w", err)
		}
		set := make(map[string]bool, len(counts))
		for _, lc := range counts {
			set[lc.District+"|"+lc.LocationDesc] = true
		}
		return set, nil
	}

	allSet, err := ticketSet("")
	if err != nil {
		return nil, err
	}
	duiSet, err := ticketSet(normalize.TopicDUI)
	if err != nil {
		return nil, err
	}
	redLightSet, err := ticketSet(normalize.TopicRedLight)
	if err != nil {
		return nil, err
	}
	dangerousSet, err := ticketSet(normalize.TopicDangerous)
	if err != nil {
		return nil, err
	}

	rates := OverlapRates{
		AccidentVsAllTickets: overlapRate(accidentSet, allSet),
		AccidentVsDUI:        overlapRate(accidentSet, duiSet),
		AccidentVsRedLight:   overlapRate(accidentSet, redLightSet),
		AccidentVsDangerous:  overlapRate(accidentSet, dangerousSet),
	}

	return &HotspotOverlapResponse{
		Period: SimplePeriod{
			Start: start.Format(dateLayout),
			End:   end.Format(dateLayout),
			Days:  days,
		},
		TopN:                 topN,
		AccidentHotspotCount: len(accidentSet),
		OverlapRates:         rates,
		Interpretation:       overlapInterpretation(rates.AccidentVsAllTickets),
	}, nil
}

// overlapRate returns |a∩b| / |a| in percent, 0 when a is empty.
func overlapRate(a, b map[string]bool) float64 {
	if len(a) == 0 {
		return 0
	}
	overlap := 0
	for key := range a {
		if b[key] {
			overlap++
		}
	}
	return round1(float64(overlap) / float64(len(a)) * 100)
}

func overlapInterpretation(allOverlap float64) string {
	switch {
	case allOverlap >= 70:
		return "事故與違規熱點高度重疊，執法地點與事故熱點對齊良好"
	case allOverlap >= 40:
		return "事故與違規熱點中度重疊，建議檢視未覆蓋的事故熱點"
	default:
		return "事故與違規熱點重疊率偏低，建議重新評估執法熱點部署"
	}
}

// TopicCatalog lists the three enforcement topics.
func (s *AnalyticsService) TopicCatalog() *TopicCatalogResponse {
	return &TopicCatalogResponse{
		Topics: topicCatalog,
		Total:  len(topicCatalog),
	}
}

// TopicDetail returns the metadata of one topic.
func (s *AnalyticsService) TopicDetail(code string) (*TopicInfo, error) {
	for _, t := range topicCatalog {
		if t.Code == code {
			info := t
			return &info, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "topic", ID: code}
}

// TopicStats builds the full statistics page of one topic over the trailing
// window, optionally narrowed to one shift.
func (s *AnalyticsService) TopicStats(ctx context.Context, code, shiftID string, days int) (*TopicStatsResponse, error) {
	info, err := s.TopicDetail(code)
	if err != nil {
		return nil, err
	}

	end := s.today()
	start := end.AddDate(0, 0, -days)
	dateRange := repository.DateRange{Start: start, End: end}

	filter := repository.TicketFilter{
		Range:   dateRange,
		Topic:   normalize.TopicCode(code),
		ShiftID: shiftID,
	}

	totalTickets, err := s.repo.CountTickets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count topic tickets: %w", err)
	}
	elderlyFilter := filter
	elderlyFilter.ElderlyOnly = true
	elderlyTickets, err := s.repo.CountTickets(ctx, elderlyFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly topic tickets: %w", err)
	}
	genders, err := s.repo.TicketGenderCounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count topic genders: %w", err)
	}
	ageGroups, err := s.repo.TicketAgeGroupCounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count topic age groups: %w", err)
	}
	shifts, err := s.repo.TicketShiftCounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count topic shifts: %w", err)
	}
	districts, err := s.repo.TicketDistrictCounts(ctx, repository.TicketFilter{
		Range:           dateRange,
		Topic:           normalize.TopicCode(code),
		ShiftID:         shiftID,
		RequireDistrict: true,
	}, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to count topic districts: %w", err)
	}

	crashFilter := repository.CrashFilter{Range: dateRange, ShiftID: shiftID}
	totalCrashes, err := s.repo.CountCrashes(ctx, crashFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count crashes: %w", err)
	}
	elderlyCrashFilter := crashFilter
	elderlyCrashFilter.ElderlyOnly = true
	elderlyCrashes, err := s.repo.CountCrashes(ctx, elderlyCrashFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly crashes: %w", err)
	}

	return &TopicStatsResponse{
		Topic:   *info,
		Period:  periodOf(start, end, days),
		ShiftID: shiftID,
		Tickets: CountWithElderly{
			Total:             totalTickets,
			Elderly:           elderlyTickets,
			ElderlyPercentage: percentage(elderlyTickets, totalTickets),
		},
		Crashes: TopicCrashCounts{Total: totalCrashes, Elderly: elderlyCrashes},
		Demographics: DemographicsSection{
			AgeGroups: toAgeGroupCounts(ageGroups),
			Gender:    toGenderCounts(genders),
		},
		Distribution: DistributionSection{
			Shifts:    shifts,
			Districts: districts,
		},
		Note: "統計資料已完全去識別化，無任何個資",
	}, nil
}

// TopicTrends builds the monthly trend series of one topic, walking back
// from the current month with a year-over-year change per month.
func (s *AnalyticsService) TopicTrends(ctx context.Context, code string, months int) (*TopicTrendsResponse, error) {
	info, err := s.TopicDetail(code)
	if err != nil {
		return nil, err
	}

	now := s.today()
	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	series := make([]MonthTrend, 0, months)
	for i := 0; i < months; i++ {
		target := currentMonth.AddDate(0, -i, 0)
		targetYear, targetMonth := target.Year(), int(target.Month())

		current, err := s.repo.CountTickets(ctx, repository.TicketFilter{
			Topic: normalize.TopicCode(code),
			Year:  targetYear,
			Month: targetMonth,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count topic month: %w", err)
		}
		lastYear, err := s.repo.CountTickets(ctx, repository.TicketFilter{
			Topic: normalize.TopicCode(code),
			Year:  targetYear - 1,
			Month: targetMonth,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count topic baseline month: %w", err)
		}

		change := changeRate(current, lastYear)
		series = append(series, MonthTrend{
			Year:          targetYear,
			Month:         targetMonth,
			Count:         current,
			LastYearCount: lastYear,
			ChangeRate:    change,
			Trend:         trendLabel(change),
		})
	}

	// Oldest month first.
	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}

	summary := TrendSummary{TotalMonths: len(series)}
	if len(series) > 0 {
		countSum, changeSum := 0, 0.0
		for _, m := range series {
			countSum += m.Count
			changeSum += m.ChangeRate
		}
		summary.AverageCount = round1(float64(countSum) / float64(len(series)))
		summary.AverageChangeRate = round1(changeSum / float64(len(series)))
	}

	return &TopicTrendsResponse{
		Topic:   *info,
		Months:  series,
		Summary: summary,
		Note:    "僅統計分析，無個資",
	}, nil
}
