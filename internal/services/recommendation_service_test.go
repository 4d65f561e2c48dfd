package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/normalize"
	"enforcement-platform/internal/repository"
)

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 10, 30, 0, 0, time.UTC)
	}
}

func TestCalculateVPI(t *testing.T) {
	assert.Equal(t, 100.0, CalculateVPI(10, normalize.TopicDUI))
	assert.Equal(t, 20.0, CalculateVPI(10, normalize.TopicRedLight))
	assert.Equal(t, 15.0, CalculateVPI(10, normalize.TopicDangerous))
	assert.Equal(t, 10.0, CalculateVPI(10, "UNKNOWN"))
}

func TestCalculateCRI(t *testing.T) {
	assert.Equal(t, 0.0, CalculateCRI(0, 0, 0))
	assert.Equal(t, 4.0, CalculateCRI(2, 0, 1))
	assert.Equal(t, 12.0, CalculateCRI(3, 1, 2))
}

func TestCalculateScore(t *testing.T) {
	// DUI blends 60% violation pressure with 40% crash risk.
	assert.InDelta(t, 61.6, CalculateScore(100.0, 4.0, normalize.TopicDUI), 1e-9)
	assert.InDelta(t, 52.0, CalculateScore(100.0, 4.0, normalize.TopicRedLight), 1e-9)
	assert.InDelta(t, 42.4, CalculateScore(100.0, 4.0, normalize.TopicDangerous), 1e-9)
	assert.InDelta(t, 52.0, CalculateScore(100.0, 4.0, "UNKNOWN"), 1e-9)
}

func TestTop5(t *testing.T) {
	repo := newFakeRepo()
	repo.ticketDistrictCountsFn = func(repository.TicketFilter, int) []repository.DistrictCount {
		return []repository.DistrictCount{
			{District: "永康區", Count: 10},
			{District: "東區", Count: 3},
		}
	}
	repo.crashDistrictStatsFn = func(repository.CrashFilter, int) []repository.DistrictCrashStats {
		return []repository.DistrictCrashStats{
			{District: "永康區", Total: 2, A2Count: 1},
			{District: "東區", Total: 1},
		}
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)
	svc.now = fixedClock(2024, time.June, 15)

	resp, err := svc.Top5(context.Background(), "DUI", "", 30)
	require.NoError(t, err)

	assert.Equal(t, "DUI", resp.TopicCode)
	assert.Equal(t, Period{StartDate: "2024-05-16", EndDate: "2024-06-15", Days: 30}, resp.Period)
	assert.Equal(t, 2, resp.TotalSites)
	require.Len(t, resp.Recommendations, 2)

	top := resp.Recommendations[0]
	assert.Equal(t, "永康區", top.District)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, 10, top.TicketCount)
	assert.Equal(t, 2, top.CrashCount)
	assert.Equal(t, 100.0, top.VPI)
	assert.Equal(t, 4.0, top.CRI)
	assert.Equal(t, 61.6, top.Score)
	assert.Equal(t, 23.0264, top.Latitude)
	assert.Equal(t, 120.2567, top.Longitude)

	assert.Equal(t, 2, resp.Recommendations[1].Rank)
}

func TestTop5LimitsToFive(t *testing.T) {
	repo := newFakeRepo()
	repo.ticketDistrictCountsFn = func(repository.TicketFilter, int) []repository.DistrictCount {
		counts := make([]repository.DistrictCount, 0, 7)
		for i := 0; i < 7; i++ {
			counts = append(counts, repository.DistrictCount{
				District: fmt.Sprintf("第%d區", i),
				Count:    i + 1,
			})
		}
		return counts
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)

	resp, err := svc.Top5(context.Background(), "RED_LIGHT", "", 30)
	require.NoError(t, err)

	assert.Equal(t, 7, resp.TotalSites)
	require.Len(t, resp.Recommendations, 5)
	for i, rec := range resp.Recommendations {
		assert.Equal(t, i+1, rec.Rank)
	}
	// Highest ticket volume ranks first.
	assert.Equal(t, 7, resp.Recommendations[0].TicketCount)
}

func TestTop5RejectsUnknownTopic(t *testing.T) {
	svc := NewRecommendationService(newFakeRepo(), testLogger, testMetrics)

	_, err := svc.Top5(context.Background(), "SPEEDING", "", 30)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "topic_code", verr.Field)
}

func TestHeatmap(t *testing.T) {
	repo := newFakeRepo()
	repo.ticketDistrictCountsFn = func(repository.TicketFilter, int) []repository.DistrictCount {
		return []repository.DistrictCount{{District: "北區", Count: 14}}
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)

	resp, err := svc.Heatmap(context.Background(), "DUI", "11", 30)
	require.NoError(t, err)

	require.Len(t, resp.Points, 1)
	assert.Equal(t, "北區（區域統計）", resp.Points[0].SiteName)
	assert.Equal(t, 14, resp.Points[0].Intensity)
	assert.Equal(t, 1, resp.TotalPoints)
}

func TestBriefing(t *testing.T) {
	repo := newFakeRepo()
	district := "東區"
	for i := 0; i < 2; i++ {
		num := fmt.Sprintf("T%d", i)
		repo.tickets[num] = &models.TicketRecord{
			TicketNumber:  num,
			ViolationDate: time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC),
			ShiftID:       "11",
			District:      &district,
			TopicDUI:      true,
		}
	}
	repo.ticketDistrictCountsFn = func(repository.TicketFilter, int) []repository.DistrictCount {
		return []repository.DistrictCount{{District: "東區", Count: 2}}
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)
	svc.now = fixedClock(2024, time.June, 15)

	card, err := svc.Briefing(context.Background(), "DUI", "11", "")
	require.NoError(t, err)

	assert.Equal(t, "2024-06-15", card.Date)
	assert.Equal(t, "20:00-22:00", card.ShiftTime)
	assert.Equal(t, "酒駕", card.TopicName)
	assert.Equal(t, 2, card.TotalViolations)
	require.Len(t, card.TopLocations, 1)
	assert.Equal(t, BriefingLocation{Rank: 1, District: "東區", Count: 2}, card.TopLocations[0])
	assert.Equal(t, "建議在東區加強酒駕取締", card.Recommendation)
}

func TestBriefingWithoutData(t *testing.T) {
	svc := NewRecommendationService(newFakeRepo(), testLogger, testMetrics)

	card, err := svc.Briefing(context.Background(), "RED_LIGHT", "05", "2024-06-01")
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", card.Date)
	assert.Empty(t, card.TopLocations)
	assert.Equal(t, "建議在熱點區域加強闖紅燈取締", card.Recommendation)
}

func TestBriefingRejectsBadDate(t *testing.T) {
	svc := NewRecommendationService(newFakeRepo(), testLogger, testMetrics)

	_, err := svc.Briefing(context.Background(), "DUI", "01", "June 1st")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date", verr.Field)
}

func TestAccidentHotspots(t *testing.T) {
	repo := newFakeRepo()
	repo.crashDistrictStatsFn = func(repository.CrashFilter, int) []repository.DistrictCrashStats {
		return []repository.DistrictCrashStats{
			{District: "東區", Total: 5, A1Count: 1, A2Count: 2, A3Count: 2, SeverityScore: 13},
		}
	}
	district := "東區"
	now := time.Now().UTC()
	for i, dui := range []bool{true, false, false} {
		num := fmt.Sprintf("T%d", i)
		repo.tickets[num] = &models.TicketRecord{
			TicketNumber:  num,
			ViolationDate: now.AddDate(0, 0, -1),
			District:      &district,
			TopicDUI:      dui,
			TopicRedLight: !dui,
		}
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)

	resp, err := svc.AccidentHotspots(context.Background(), 30)
	require.NoError(t, err)

	require.Len(t, resp.Hotspots, 1)
	h := resp.Hotspots[0]
	assert.Equal(t, 5, h.Accidents.Total)
	assert.Equal(t, 13, h.Accidents.SeverityScore)
	assert.Equal(t, 3, h.Violations.Total)
	assert.Equal(t, 1, h.Violations.DUI)
	assert.Equal(t, 2, h.Violations.RedLight)
	require.NotNil(t, h.Recommendation.PriorityTopic)
	assert.Equal(t, "RED_LIGHT", *h.Recommendation.PriorityTopic)
	assert.Equal(t, "建議加強闘紅燈取締", h.Recommendation.EnforcementFocus)

	assert.Equal(t, HotspotSummary{TotalAccidents: 5, A1Total: 1, A2Total: 2, A3Total: 2}, resp.Summary)
}

func TestAccidentHotspotsWithoutViolations(t *testing.T) {
	repo := newFakeRepo()
	repo.crashDistrictStatsFn = func(repository.CrashFilter, int) []repository.DistrictCrashStats {
		return []repository.DistrictCrashStats{{District: "南區", Total: 2, A3Count: 2, SeverityScore: 2}}
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)

	resp, err := svc.AccidentHotspots(context.Background(), 30)
	require.NoError(t, err)

	require.Len(t, resp.Hotspots, 1)
	assert.Nil(t, resp.Hotspots[0].Recommendation.PriorityTopic)
	assert.Equal(t, "需要更多數據分析", resp.Hotspots[0].Recommendation.EnforcementFocus)
}

func TestPriorityTopicTieOrder(t *testing.T) {
	assert.Equal(t, normalize.TopicDUI, priorityTopic(repository.TopicCounts{DUI: 2, RedLight: 2}))
	assert.Equal(t, normalize.TopicRedLight, priorityTopic(repository.TopicCounts{RedLight: 3, Dangerous: 3}))
	assert.Equal(t, normalize.TopicCode(""), priorityTopic(repository.TopicCounts{}))
}

func TestPeakTimes(t *testing.T) {
	repo := newFakeRepo()
	repo.crashShiftCountsFn = func(repository.CrashFilter) []repository.ShiftCount {
		return []repository.ShiftCount{{ShiftID: "05", Count: 4}, {ShiftID: "11", Count: 2}}
	}
	repo.ticketShiftCountsFn = func(repository.TicketFilter) []repository.ShiftCount {
		return []repository.ShiftCount{{ShiftID: "05", Count: 10}}
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)

	resp, err := svc.PeakTimes(context.Background(), "永康區", 30)
	require.NoError(t, err)

	require.Len(t, resp.Shifts, 12)
	assert.Equal(t, ShiftActivity{ShiftID: "05", TimeRange: "08:00-10:00", Accidents: 4, Violations: 10}, resp.Shifts[4])
	assert.Equal(t, []string{"05", "11"}, resp.Recommendations.PriorityShifts)
	assert.Equal(t, "建議在08:00-10:00, 20:00-22:00加強取締", resp.Recommendations.EnforcementSuggestion)
}

func TestPeakTimesWithoutAccidents(t *testing.T) {
	svc := NewRecommendationService(newFakeRepo(), testLogger, testMetrics)

	resp, err := svc.PeakTimes(context.Background(), "安平區", 30)
	require.NoError(t, err)

	assert.Empty(t, resp.Recommendations.PriorityShifts)
	assert.Equal(t, "無明顯高峰時段", resp.Recommendations.EnforcementSuggestion)
}

func TestCrossAnalysis(t *testing.T) {
	repo := newFakeRepo()
	repo.crashDistrictShiftFn = func(repository.CrashFilter) []repository.DistrictShiftCount {
		return []repository.DistrictShiftCount{
			{District: "永康區", ShiftID: "11", Count: 8},
			{District: "東區", ShiftID: "05", Count: 3},
			{District: "南區", ShiftID: "01", Count: 1},
		}
	}
	repo.ticketDistrictShiftFn = func(repository.TicketFilter) []repository.DistrictShiftCount {
		return []repository.DistrictShiftCount{{District: "永康區", ShiftID: "11", Count: 20}}
	}

	svc := NewRecommendationService(repo, testLogger, testMetrics)

	resp, err := svc.CrossAnalysis(context.Background(), "", 30)
	require.NoError(t, err)

	require.Len(t, resp.CrossAnalysis, 3)
	// Sorted by enforcement gap, largest first.
	assert.Equal(t, "永康區", resp.CrossAnalysis[0].District)
	assert.Equal(t, 6.0, resp.CrossAnalysis[0].EnforcementGap)
	assert.Equal(t, "HIGH", resp.CrossAnalysis[0].Priority)

	// No violations at all falls back to the raw crash count.
	assert.Equal(t, 3.0, resp.CrossAnalysis[1].EnforcementGap)
	assert.Equal(t, "MEDIUM", resp.CrossAnalysis[1].Priority)
	assert.Equal(t, "LOW", resp.CrossAnalysis[2].Priority)

	assert.Equal(t, CrossSummary{TotalCombinations: 3, HighPriorityCount: 1, MediumPriorityCount: 1, LowPriorityCount: 1}, resp.Summary)
	require.Len(t, resp.Recommendations.HighPriorityTargets, 1)
	assert.Equal(t, "永康區", resp.Recommendations.HighPriorityTargets[0].District)
}

func TestDataEndDateBoundsReportWindow(t *testing.T) {
	repo := newFakeRepo()
	repo.maxDate = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	repo.maxDateSet = true

	svc := NewRecommendationService(repo, testLogger, testMetrics)
	svc.now = fixedClock(2024, time.June, 15)

	resp, err := svc.AccidentHeatmap(context.Background(), "", 30)
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01", resp.Period.EndDate)
	assert.Equal(t, "2024-04-01", resp.Period.StartDate)
}
