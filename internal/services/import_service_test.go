package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"enforcement-platform/internal/models"
)

// workbook builds an in-memory xlsx file from the given rows.
func workbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetList()[0]
	for i, row := range rows {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, ref, cell))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

var crashHeader = []string{"案件編號", "發生時間", "發生地點", "交通事故類別", "當事人年齡"}

func TestImportCrashes(t *testing.T) {
	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger, testMetrics)

	wb := workbook(t, [][]string{
		crashHeader,
		{"11300001", "113/3/15 08:30", "臺南市東區中華路100號", "A1", "45"},
		{"11300002", "113/3/15 14:05", "臺南市永康區中山路50號", "A2", "70"},
		{"11300003", "113/3/16 02:10", "臺南市安平區安平路", "a3", "30"},
	})

	result, err := svc.ImportCrashes(context.Background(), wb, "crashes.xlsx")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.BatchID, "WEB_"))
	assert.Equal(t, 3, result.Stats.TotalRows)
	assert.Equal(t, 3, result.Stats.NewCount)
	assert.Equal(t, 0, result.Stats.Skipped)
	assert.Equal(t, 0, result.Stats.Errors)
	assert.Equal(t, "匯入完成：新增 3 筆，略過 0 筆（重複），錯誤 0 筆", result.Message)

	summary, ok := result.Database.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3, summary["total_crashes"])
	assert.Equal(t, map[string]int{"A1": 1, "A2": 1, "A3": 1}, summary["severity"])

	rec := repo.crashes["11300002"]
	require.NotNil(t, rec)
	assert.True(t, rec.IsElderly)
	assert.Equal(t, "08", rec.ShiftID)
	require.NotNil(t, rec.District)
	assert.Equal(t, "永康區", *rec.District)
}

func TestImportCrashesSkipsDuplicates(t *testing.T) {
	repo := newFakeRepo()
	repo.crashes["11300001"] = &models.CrashRecord{CaseID: "11300001", Severity: "A3"}
	svc := NewImportService(repo, testLogger, testMetrics)

	wb := workbook(t, [][]string{
		crashHeader,
		{"11300001", "113/3/15 08:30", "臺南市東區中華路100號", "A1", "45"},
		{"11300002", "113/3/15 14:05", "臺南市永康區中山路50號", "A2", "70"},
		{"11300002", "113/3/15 14:05", "臺南市永康區中山路50號", "A2", "70"},
	})

	result, err := svc.ImportCrashes(context.Background(), wb, "crashes.xlsx")
	require.NoError(t, err)

	// One duplicate caught by the existence check, one by the database
	// constraint when the same ID appears twice in a single upload.
	assert.Equal(t, 1, result.Stats.NewCount)
	assert.Equal(t, 2, result.Stats.Skipped)
	assert.Equal(t, 0, result.Stats.Errors)
}

func TestImportCrashesCollectsRowErrors(t *testing.T) {
	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger, testMetrics)

	wb := workbook(t, [][]string{
		crashHeader,
		{"11300001", "not a date", "臺南市東區中華路100號", "A1", "45"},
		{"", "", "", "", ""},
		{"11300002", "113/3/15 14:05", "臺南市永康區中山路50號", "A2", "70"},
	})

	result, err := svc.ImportCrashes(context.Background(), wb, "crashes.xlsx")
	require.NoError(t, err)

	// The fully blank row is padding, not an error, and is not counted.
	assert.Equal(t, 2, result.Stats.TotalRows)
	assert.Equal(t, 1, result.Stats.NewCount)
	assert.Equal(t, 1, result.Stats.Errors)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "第 2 列：發生時間格式錯誤或缺失", result.Errors[0])
}

func TestImportCrashesCapsErrorMessages(t *testing.T) {
	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger, testMetrics)

	rows := [][]string{crashHeader}
	for i := 0; i < 15; i++ {
		rows = append(rows, []string{fmt.Sprintf("113%05d", i), "bad", "臺南市東區中華路100號", "A3", "30"})
	}

	result, err := svc.ImportCrashes(context.Background(), workbook(t, rows), "crashes.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 15, result.Stats.Errors)
	assert.Len(t, result.Errors, 10)
}

func TestImportCrashesFlushesInBatches(t *testing.T) {
	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger, testMetrics)

	rows := [][]string{crashHeader}
	for i := 0; i < 120; i++ {
		rows = append(rows, []string{fmt.Sprintf("113%05d", i), "113/3/15 08:30", "臺南市東區中華路100號", "A3", "30"})
	}

	result, err := svc.ImportCrashes(context.Background(), workbook(t, rows), "crashes.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 120, result.Stats.NewCount)
	assert.Equal(t, []int{100, 20}, repo.crashBatchSizes)
}

func TestImportRejectsNonExcelFilename(t *testing.T) {
	svc := NewImportService(newFakeRepo(), testLogger, testMetrics)

	_, err := svc.ImportCrashes(context.Background(), bytes.NewReader(nil), "crashes.csv")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)

	_, err = svc.ImportTickets(context.Background(), bytes.NewReader(nil), "tickets.txt")
	require.ErrorAs(t, err, &verr)
}

func TestImportRejectsUnreadableFile(t *testing.T) {
	svc := NewImportService(newFakeRepo(), testLogger, testMetrics)

	_, err := svc.ImportCrashes(context.Background(), bytes.NewReader([]byte("not an xlsx")), "crashes.xlsx")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestImportTickets(t *testing.T) {
	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger, testMetrics)

	wb := workbook(t, [][]string{
		{"舉發單號", "違規時間(出)", "違規地點一", "違規條款1", "違規人年齡"},
		{"T0001", "113/4/1 21:15", "臺南市東區中華路100號", "35010001 酒後駕車", "40"},
		{"T0002", "113/4/2 09:40", "臺南市北區公園路20號", "53010001 闘紅燈", "68"},
		{"T0003", "113/4/2 10:00", "臺南市中西區民族路", "56010001 違規停車", "25"},
	})

	result, err := svc.ImportTickets(context.Background(), wb, "tickets.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.NewCount)
	require.NotNil(t, result.TopicsImported)
	assert.Equal(t, 1, result.TopicsImported.DUI)
	assert.Equal(t, 1, result.TopicsImported.RedLight)
	assert.Equal(t, 0, result.TopicsImported.Dangerous)

	summary, ok := result.Database.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3, summary["total_tickets"])
	assert.Equal(t, 1, summary["elderly"])

	rec := repo.tickets["T0001"]
	require.NotNil(t, rec)
	assert.Equal(t, "35010001", rec.ViolationCode)
	assert.True(t, rec.TopicDUI)
}

func TestImportStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.crashes["C1"] = &models.CrashRecord{CaseID: "C1", Severity: "A1", IsElderly: true}
	repo.crashes["C2"] = &models.CrashRecord{CaseID: "C2", Severity: "A3"}
	repo.tickets["T1"] = &models.TicketRecord{TicketNumber: "T1", TopicDUI: true}
	svc := NewImportService(repo, testLogger, testMetrics)

	status, err := svc.ImportStatus(context.Background())
	require.NoError(t, err)

	crashes := status["crashes"].(map[string]interface{})
	assert.Equal(t, 2, crashes["total"])
	assert.Equal(t, map[string]int{"A1": 1, "A2": 0, "A3": 1}, crashes["severity"])

	tickets := status["tickets"].(map[string]interface{})
	assert.Equal(t, 1, tickets["total"])

	elderly := status["elderly"].(map[string]interface{})
	assert.Equal(t, 1, elderly["crashes"])
	assert.Equal(t, 0, elderly["tickets"])

	assert.Equal(t, "所有資料皆已去識別化", status["note"])
}

func TestReset(t *testing.T) {
	repo := newFakeRepo()
	repo.crashes["C1"] = &models.CrashRecord{CaseID: "C1"}
	svc := NewImportService(repo, testLogger, testMetrics)

	require.NoError(t, svc.Reset(context.Background()))
	assert.Equal(t, 1, repo.resets)
	assert.Empty(t, repo.crashes)
}
