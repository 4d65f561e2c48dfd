package services

import (
	"context"
	"io"
	"time"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/repository"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// Shared across the package's tests: prometheus collectors register globally,
// so only one Collector may exist per namespace.
var (
	testMetrics = metrics.NewCollector("servicetest")
	testLogger  = newTestLogger()
)

func newTestLogger() *logging.StructuredLogger {
	l := logging.NewStructuredLogger("test", "0.0.0", logging.FatalLevel)
	l.SetOutput(io.Discard)
	return l
}

// fakeRepo is an in-memory RecordRepository. Insert and existence checks work
// against real maps so dedup behavior is exercised; aggregate queries are
// satisfied by per-test hook functions and return empty results when unset.
type fakeRepo struct {
	crashes map[string]*models.CrashRecord
	tickets map[string]*models.TicketRecord

	crashBatchSizes  []int
	ticketBatchSizes []int
	resets           int

	crashDistrictStatsFn   func(repository.CrashFilter, int) []repository.DistrictCrashStats
	crashDistrictCountsFn  func(repository.CrashFilter, int) []repository.DistrictCount
	ticketDistrictCountsFn func(repository.TicketFilter, int) []repository.DistrictCount
	crashShiftCountsFn     func(repository.CrashFilter) []repository.ShiftCount
	ticketShiftCountsFn    func(repository.TicketFilter) []repository.ShiftCount
	crashDistrictShiftFn   func(repository.CrashFilter) []repository.DistrictShiftCount
	ticketDistrictShiftFn  func(repository.TicketFilter) []repository.DistrictShiftCount
	crashLocationStatsFn   func(repository.CrashFilter, int) []repository.LocationCrashStats
	ticketLocationCountsFn func(repository.TicketFilter, int) []repository.LocationCount
	ticketAgeGroupCountsFn func(repository.TicketFilter) []repository.GroupCount
	ticketGenderCountsFn   func(repository.TicketFilter) []repository.GroupCount
	topViolationsFn        func(repository.TicketFilter, int) []repository.ViolationCount

	maxDate    time.Time
	maxDateSet bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		crashes: make(map[string]*models.CrashRecord),
		tickets: make(map[string]*models.TicketRecord),
	}
}

func (f *fakeRepo) CrashExists(_ context.Context, caseID string) (bool, error) {
	_, ok := f.crashes[caseID]
	return ok, nil
}

func (f *fakeRepo) TicketExists(_ context.Context, ticketNumber string) (bool, error) {
	_, ok := f.tickets[ticketNumber]
	return ok, nil
}

func (f *fakeRepo) InsertCrashBatch(_ context.Context, records []*models.CrashRecord) (int, error) {
	f.crashBatchSizes = append(f.crashBatchSizes, len(records))
	inserted := 0
	for _, rec := range records {
		if _, ok := f.crashes[rec.CaseID]; ok {
			continue
		}
		f.crashes[rec.CaseID] = rec
		inserted++
	}
	return inserted, nil
}

func (f *fakeRepo) InsertTicketBatch(_ context.Context, records []*models.TicketRecord) (int, error) {
	f.ticketBatchSizes = append(f.ticketBatchSizes, len(records))
	inserted := 0
	for _, rec := range records {
		if _, ok := f.tickets[rec.TicketNumber]; ok {
			continue
		}
		f.tickets[rec.TicketNumber] = rec
		inserted++
	}
	return inserted, nil
}

func (f *fakeRepo) matchCrash(rec *models.CrashRecord, filter repository.CrashFilter) bool {
	if !filter.Range.Start.IsZero() && rec.OccurredDate.Before(filter.Range.Start) {
		return false
	}
	if !filter.Range.End.IsZero() && rec.OccurredDate.After(filter.Range.End) {
		return false
	}
	switch filter.Severity {
	case "A1", "A2":
		if rec.Severity != filter.Severity {
			return false
		}
	case "A1+A2":
		if rec.Severity != "A1" && rec.Severity != "A2" {
			return false
		}
	}
	if filter.ShiftID != "" && rec.ShiftID != filter.ShiftID {
		return false
	}
	if filter.District != "" && (rec.District == nil || *rec.District != filter.District) {
		return false
	}
	if filter.ElderlyOnly && !rec.IsElderly {
		return false
	}
	if filter.Year != 0 && rec.Year != filter.Year {
		return false
	}
	if filter.Month != 0 && rec.Month != filter.Month {
		return false
	}
	return true
}

func (f *fakeRepo) matchTicket(rec *models.TicketRecord, filter repository.TicketFilter) bool {
	if !filter.Range.Start.IsZero() && rec.ViolationDate.Before(filter.Range.Start) {
		return false
	}
	if !filter.Range.End.IsZero() && rec.ViolationDate.After(filter.Range.End) {
		return false
	}
	switch filter.Topic {
	case "DUI":
		if !rec.TopicDUI {
			return false
		}
	case "RED_LIGHT":
		if !rec.TopicRedLight {
			return false
		}
	case "DANGEROUS_DRIVING":
		if !rec.TopicDangerous {
			return false
		}
	}
	if filter.ShiftID != "" && rec.ShiftID != filter.ShiftID {
		return false
	}
	if filter.District != "" && (rec.District == nil || *rec.District != filter.District) {
		return false
	}
	if filter.ElderlyOnly && !rec.IsElderly {
		return false
	}
	if filter.Year != 0 && rec.Year != filter.Year {
		return false
	}
	if filter.Month != 0 && rec.Month != filter.Month {
		return false
	}
	return true
}

func (f *fakeRepo) CountCrashes(_ context.Context, filter repository.CrashFilter) (int, error) {
	count := 0
	for _, rec := range f.crashes {
		if f.matchCrash(rec, filter) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CountTickets(_ context.Context, filter repository.TicketFilter) (int, error) {
	count := 0
	for _, rec := range f.tickets {
		if f.matchTicket(rec, filter) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CrashSeverityCounts(_ context.Context, filter repository.CrashFilter) (map[string]int, error) {
	counts := map[string]int{"A1": 0, "A2": 0, "A3": 0}
	for _, rec := range f.crashes {
		if f.matchCrash(rec, filter) {
			counts[rec.Severity]++
		}
	}
	return counts, nil
}

func (f *fakeRepo) TicketTopicCounts(_ context.Context, filter repository.TicketFilter) (repository.TopicCounts, error) {
	var counts repository.TopicCounts
	for _, rec := range f.tickets {
		if !f.matchTicket(rec, filter) {
			continue
		}
		if rec.TopicDUI {
			counts.DUI++
		}
		if rec.TopicRedLight {
			counts.RedLight++
		}
		if rec.TopicDangerous {
			counts.Dangerous++
		}
	}
	return counts, nil
}

func (f *fakeRepo) CrashDistrictStats(_ context.Context, filter repository.CrashFilter, limit int) ([]repository.DistrictCrashStats, error) {
	if f.crashDistrictStatsFn == nil {
		return nil, nil
	}
	return f.crashDistrictStatsFn(filter, limit), nil
}

func (f *fakeRepo) CrashDistrictCounts(_ context.Context, filter repository.CrashFilter, limit int) ([]repository.DistrictCount, error) {
	if f.crashDistrictCountsFn == nil {
		return nil, nil
	}
	return f.crashDistrictCountsFn(filter, limit), nil
}

func (f *fakeRepo) TicketDistrictCounts(_ context.Context, filter repository.TicketFilter, limit int) ([]repository.DistrictCount, error) {
	if f.ticketDistrictCountsFn == nil {
		return nil, nil
	}
	return f.ticketDistrictCountsFn(filter, limit), nil
}

func (f *fakeRepo) CrashShiftCounts(_ context.Context, filter repository.CrashFilter) ([]repository.ShiftCount, error) {
	if f.crashShiftCountsFn == nil {
		return nil, nil
	}
	return f.crashShiftCountsFn(filter), nil
}

func (f *fakeRepo) TicketShiftCounts(_ context.Context, filter repository.TicketFilter) ([]repository.ShiftCount, error) {
	if f.ticketShiftCountsFn == nil {
		return nil, nil
	}
	return f.ticketShiftCountsFn(filter), nil
}

func (f *fakeRepo) CrashDistrictShiftCounts(_ context.Context, filter repository.CrashFilter) ([]repository.DistrictShiftCount, error) {
	if f.crashDistrictShiftFn == nil {
		return nil, nil
	}
	return f.crashDistrictShiftFn(filter), nil
}

func (f *fakeRepo) TicketDistrictShiftCounts(_ context.Context, filter repository.TicketFilter) ([]repository.DistrictShiftCount, error) {
	if f.ticketDistrictShiftFn == nil {
		return nil, nil
	}
	return f.ticketDistrictShiftFn(filter), nil
}

func (f *fakeRepo) CrashLocationStats(_ context.Context, filter repository.CrashFilter, limit int) ([]repository.LocationCrashStats, error) {
	if f.crashLocationStatsFn == nil {
		return nil, nil
	}
	return f.crashLocationStatsFn(filter, limit), nil
}

func (f *fakeRepo) TicketLocationCounts(_ context.Context, filter repository.TicketFilter, limit int) ([]repository.LocationCount, error) {
	if f.ticketLocationCountsFn == nil {
		return nil, nil
	}
	return f.ticketLocationCountsFn(filter, limit), nil
}

func (f *fakeRepo) TicketAgeGroupCounts(_ context.Context, filter repository.TicketFilter) ([]repository.GroupCount, error) {
	if f.ticketAgeGroupCountsFn == nil {
		return nil, nil
	}
	return f.ticketAgeGroupCountsFn(filter), nil
}

func (f *fakeRepo) TicketGenderCounts(_ context.Context, filter repository.TicketFilter) ([]repository.GroupCount, error) {
	if f.ticketGenderCountsFn == nil {
		return nil, nil
	}
	return f.ticketGenderCountsFn(filter), nil
}

func (f *fakeRepo) TopViolations(_ context.Context, filter repository.TicketFilter, limit int) ([]repository.ViolationCount, error) {
	if f.topViolationsFn == nil {
		return nil, nil
	}
	return f.topViolationsFn(filter, limit), nil
}

func (f *fakeRepo) MaxDataDate(_ context.Context) (time.Time, bool, error) {
	return f.maxDate, f.maxDateSet, nil
}

func (f *fakeRepo) ResetData(_ context.Context) error {
	f.resets++
	f.crashes = make(map[string]*models.CrashRecord)
	f.tickets = make(map[string]*models.TicketRecord)
	return nil
}

func (f *fakeRepo) HealthCheck(_ context.Context) error {
	return nil
}
