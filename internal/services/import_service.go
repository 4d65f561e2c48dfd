package services

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"enforcement-platform/internal/importer"
	"enforcement-platform/internal/models"
	"enforcement-platform/internal/repository"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

const (
	// importBatchSize is the number of staged records flushed per transaction.
	importBatchSize = 100

	// maxErrorMessages caps the row-level error messages returned to the
	// caller. Errors beyond the cap are still counted.
	maxErrorMessages = 10
)

// ImportResult is the full response of one import run. Database carries a
// post-import summary of the affected table so clients can refresh their
// dashboards without a second round trip.
type ImportResult struct {
	Success        bool                    `json:"success"`
	Message        string                  `json:"message"`
	BatchID        string                  `json:"batch_id"`
	Stats          models.ImportStats      `json:"stats"`
	TopicsImported *repository.TopicCounts `json:"topics_imported,omitempty"`
	Errors         []string                `json:"errors,omitempty"`
	Database       interface{}             `json:"database"`
}

// ImportService handles Excel uploads of crash and ticket data
type ImportService struct {
	repo    repository.RecordRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	rng     *rand.Rand
}

// NewImportService creates a new import service
func NewImportService(repo repository.RecordRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ImportService {
	return &ImportService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newBatchID builds an identifier tying every record of one upload together.
func newBatchID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("WEB_%s_%s", time.Now().Format("20060102_150405"), suffix)
}

// checkExcelFilename rejects anything that is not an Excel workbook.
func checkExcelFilename(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return nil
	}
	return &models.ValidationError{
		Field:   "file",
		Value:   filename,
		Message: "僅支援 Excel 檔案 (.xlsx/.xls)",
	}
}

// ImportCrashes reads a crash workbook, de-identifies every row and stores the
// new records. Duplicate case IDs are skipped, malformed rows are counted and
// reported with at most maxErrorMessages messages.
func (s *ImportService) ImportCrashes(ctx context.Context, r io.Reader, filename string) (*ImportResult, error) {
	timer := s.metrics.NewTimer(s.metrics.ImportDuration)
	defer timer.ObserveDuration()

	if err := checkExcelFilename(filename); err != nil {
		return nil, err
	}

	sheet, err := importer.OpenSheet(r)
	if err != nil {
		s.metrics.RecordImportError("unreadable_file")
		return nil, &models.ValidationError{
			Field:   "file",
			Value:   filename,
			Message: fmt.Sprintf("無法讀取 Excel 檔案：%v", err),
		}
	}

	batchID := newBatchID()
	ctx = context.WithValue(ctx, "batch_id", batchID)

	s.logger.Info(ctx, "[IMPORT_START] Crash import started", logging.Fields{
		"filename": filename,
		"batch_id": batchID,
	})

	var (
		stats   models.ImportStats
		errMsgs []string
		staged  []*models.CrashRecord
	)

	flush := func() error {
		if len(staged) == 0 {
			return nil
		}
		inserted, err := s.repo.InsertCrashBatch(ctx, staged)
		if err != nil {
			return fmt.Errorf("failed to insert crash batch: %w", err)
		}
		stats.NewCount += inserted
		stats.Skipped += len(staged) - inserted
		staged = staged[:0]
		return nil
	}

	for _, row := range sheet.Rows() {
		stats.TotalRows++

		rec, err := importer.BuildCrashRecord(row, batchID, s.rng)
		if err != nil {
			if err == importer.ErrBlankRow {
				stats.TotalRows--
				s.metrics.RecordSkippedRow("blank")
				continue
			}
			stats.Errors++
			s.metrics.RecordImportError("validation")
			if len(errMsgs) < maxErrorMessages {
				errMsgs = append(errMsgs, err.Error())
			}
			continue
		}

		exists, err := s.repo.CrashExists(ctx, rec.CaseID)
		if err != nil {
			return nil, fmt.Errorf("failed to check crash existence: %w", err)
		}
		if exists {
			stats.Skipped++
			s.metrics.RecordSkippedRow("duplicate")
			continue
		}

		staged = append(staged, rec)
		if len(staged) >= importBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	summary, err := s.crashSummary(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[IMPORT_COMPLETE] Crash import finished", logging.Fields{
		"batch_id":   batchID,
		"total_rows": stats.TotalRows,
		"new":        stats.NewCount,
		"skipped":    stats.Skipped,
		"errors":     stats.Errors,
	})

	return &ImportResult{
		Success:  true,
		Message:  importMessage(stats),
		BatchID:  batchID,
		Stats:    stats,
		Errors:   errMsgs,
		Database: summary,
	}, nil
}

// ImportTickets reads a ticket workbook and stores the new records, tagging
// each with its enforcement topics.
func (s *ImportService) ImportTickets(ctx context.Context, r io.Reader, filename string) (*ImportResult, error) {
	timer := s.metrics.NewTimer(s.metrics.ImportDuration)
	defer timer.ObserveDuration()

	if err := checkExcelFilename(filename); err != nil {
		return nil, err
	}

	sheet, err := importer.OpenSheet(r)
	if err != nil {
		s.metrics.RecordImportError("unreadable_file")
		return nil, &models.ValidationError{
			Field:   "file",
			Value:   filename,
			Message: fmt.Sprintf("無法讀取 Excel 檔案：%v", err),
		}
	}

	batchID := newBatchID()
	ctx = context.WithValue(ctx, "batch_id", batchID)

	s.logger.Info(ctx, "[IMPORT_START] Ticket import started", logging.Fields{
		"filename": filename,
		"batch_id": batchID,
	})

	var (
		stats   models.ImportStats
		errMsgs []string
		staged  []*models.TicketRecord
		topics  repository.TopicCounts
	)

	flush := func() error {
		if len(staged) == 0 {
			return nil
		}
		inserted, err := s.repo.InsertTicketBatch(ctx, staged)
		if err != nil {
			return fmt.Errorf("failed to insert ticket batch: %w", err)
		}
		stats.NewCount += inserted
		stats.Skipped += len(staged) - inserted
		staged = staged[:0]
		return nil
	}

	for _, row := range sheet.Rows() {
		stats.TotalRows++

		rec, err := importer.BuildTicketRecord(row, batchID)
		if err != nil {
			if err == importer.ErrBlankRow {
				stats.TotalRows--
				s.metrics.RecordSkippedRow("blank")
				continue
			}
			stats.Errors++
			s.metrics.RecordImportError("validation")
			if len(errMsgs) < maxErrorMessages {
				errMsgs = append(errMsgs, err.Error())
			}
			continue
		}

		exists, err := s.repo.TicketExists(ctx, rec.TicketNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to check ticket existence: %w", err)
		}
		if exists {
			stats.Skipped++
			s.metrics.RecordSkippedRow("duplicate")
			continue
		}

		if rec.TopicDUI {
			topics.DUI++
		}
		if rec.TopicRedLight {
			topics.RedLight++
		}
		if rec.TopicDangerous {
			topics.Dangerous++
		}

		staged = append(staged, rec)
		if len(staged) >= importBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	summary, err := s.ticketSummary(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[IMPORT_COMPLETE] Ticket import finished", logging.Fields{
		"batch_id":   batchID,
		"total_rows": stats.TotalRows,
		"new":        stats.NewCount,
		"skipped":    stats.Skipped,
		"errors":     stats.Errors,
	})

	return &ImportResult{
		Success:        true,
		Message:        importMessage(stats),
		BatchID:        batchID,
		Stats:          stats,
		TopicsImported: &topics,
		Errors:         errMsgs,
		Database:       summary,
	}, nil
}

// importMessage renders the user-facing outcome line.
func importMessage(stats models.ImportStats) string {
	return fmt.Sprintf("匯入完成：新增 %d 筆，略過 %d 筆（重複），錯誤 %d 筆",
		stats.NewCount, stats.Skipped, stats.Errors)
}

// crashSummary reports the current state of the crash table.
func (s *ImportService) crashSummary(ctx context.Context) (map[string]interface{}, error) {
	total, err := s.repo.CountCrashes(ctx, repository.CrashFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count crashes: %w", err)
	}
	severity, err := s.repo.CrashSeverityCounts(ctx, repository.CrashFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count crash severities: %w", err)
	}
	return map[string]interface{}{
		"total_crashes": total,
		"severity":      severity,
	}, nil
}

// ticketSummary reports the current state of the ticket table.
func (s *ImportService) ticketSummary(ctx context.Context) (map[string]interface{}, error) {
	total, err := s.repo.CountTickets(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	topics, err := s.repo.TicketTopicCounts(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count ticket topics: %w", err)
	}
	elderly, err := s.repo.CountTickets(ctx, repository.TicketFilter{ElderlyOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly tickets: %w", err)
	}
	return map[string]interface{}{
		"total_tickets": total,
		"topics":        topics,
		"elderly":       elderly,
	}, nil
}

// ImportStatus reports the de-identified record counts currently stored.
func (s *ImportService) ImportStatus(ctx context.Context) (map[string]interface{}, error) {
	crashTotal, err := s.repo.CountCrashes(ctx, repository.CrashFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count crashes: %w", err)
	}
	severity, err := s.repo.CrashSeverityCounts(ctx, repository.CrashFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count crash severities: %w", err)
	}
	ticketTotal, err := s.repo.CountTickets(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	topics, err := s.repo.TicketTopicCounts(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count ticket topics: %w", err)
	}
	elderlyTickets, err := s.repo.CountTickets(ctx, repository.TicketFilter{ElderlyOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly tickets: %w", err)
	}
	elderlyCrashes, err := s.repo.CountCrashes(ctx, repository.CrashFilter{ElderlyOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to count elderly crashes: %w", err)
	}

	return map[string]interface{}{
		"crashes": map[string]interface{}{
			"total":    crashTotal,
			"severity": severity,
		},
		"tickets": map[string]interface{}{
			"total":  ticketTotal,
			"topics": topics,
		},
		"elderly": map[string]interface{}{
			"tickets": elderlyTickets,
			"crashes": elderlyCrashes,
		},
		"note": "所有資料皆已去識別化",
	}, nil
}

// Reset wipes all imported records. Destructive, admin-only.
func (s *ImportService) Reset(ctx context.Context) error {
	s.logger.Warn(ctx, "[DATA_RESET] Clearing all imported records", logging.Fields{})
	if err := s.repo.ResetData(ctx); err != nil {
		return fmt.Errorf("failed to reset data: %w", err)
	}
	return nil
}
