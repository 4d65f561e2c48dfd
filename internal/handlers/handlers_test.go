package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"enforcement-platform/internal/models"
	"enforcement-platform/internal/repository"
	"enforcement-platform/internal/services"
	"enforcement-platform/pkg/logging"
	"enforcement-platform/pkg/metrics"
)

// prometheus collectors register globally, so only one Collector may exist
// per namespace.
var (
	testMetrics = metrics.NewCollector("handlertest")
	testLogger  = newTestLogger()
)

func newTestLogger() *logging.StructuredLogger {
	l := logging.NewStructuredLogger("test", "0.0.0", logging.FatalLevel)
	l.SetOutput(io.Discard)
	return l
}

// stubRepo overrides only the queries a test actually reaches. Calls to
// anything else panic through the embedded nil interface.
type stubRepo struct {
	repository.RecordRepository

	crashes      []*models.CrashRecord
	ticketCount  int
	elderlyCount int
	resets       int
}

func (s *stubRepo) CrashExists(ctx context.Context, caseID string) (bool, error) {
	return false, nil
}

func (s *stubRepo) InsertCrashBatch(ctx context.Context, records []*models.CrashRecord) (int, error) {
	s.crashes = append(s.crashes, records...)
	return len(records), nil
}

func (s *stubRepo) CountCrashes(ctx context.Context, filter repository.CrashFilter) (int, error) {
	if filter.ElderlyOnly {
		return 0, nil
	}
	return len(s.crashes), nil
}

func (s *stubRepo) CrashSeverityCounts(ctx context.Context, filter repository.CrashFilter) (map[string]int, error) {
	counts := map[string]int{"A1": 0, "A2": 0, "A3": 0}
	for _, c := range s.crashes {
		counts[c.Severity]++
	}
	return counts, nil
}

func (s *stubRepo) CountTickets(ctx context.Context, filter repository.TicketFilter) (int, error) {
	if filter.ElderlyOnly {
		return s.elderlyCount, nil
	}
	return s.ticketCount, nil
}

func (s *stubRepo) TicketTopicCounts(ctx context.Context, filter repository.TicketFilter) (repository.TopicCounts, error) {
	return repository.TopicCounts{DUI: 1}, nil
}

func (s *stubRepo) ResetData(ctx context.Context) error {
	s.resets++
	return nil
}

func newTestRouter(repo repository.RecordRepository) *mux.Router {
	router := mux.NewRouter()
	NewImportHandler(services.NewImportService(repo, testLogger, testMetrics), testLogger, testMetrics).RegisterRoutes(router)
	NewRecommendationHandler(services.NewRecommendationService(repo, testLogger, testMetrics), testLogger, testMetrics).RegisterRoutes(router)
	NewAnalyticsHandler(services.NewAnalyticsService(repo, testLogger, testMetrics), testLogger, testMetrics).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := doRequest(t, router, "GET", "/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestTopicCatalogRoute(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := doRequest(t, router, "GET", "/api/v1/topics", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["total"])
}

func TestTopicDetailNotFound(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := doRequest(t, router, "GET", "/api/v1/topics/SPEEDING", nil, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Not Found", body["error"])
	assert.Equal(t, float64(http.StatusNotFound), body["code"])
}

func TestTop5RejectsUnknownTopic(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := doRequest(t, router, "GET", "/api/v1/recommendations/top5?topic_code=BOGUS", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid topic_code", decodeBody(t, rec)["message"])
}

func TestBriefingCardRequiresShift(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := doRequest(t, router, "GET", "/api/v1/recommendations/briefing-card?topic_code=DUI", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewRoute(t *testing.T) {
	router := newTestRouter(&stubRepo{ticketCount: 4, elderlyCount: 1})

	rec := doRequest(t, router, "GET", "/api/v1/stats/overview?days=7", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	tickets := body["tickets"].(map[string]interface{})
	assert.Equal(t, float64(4), tickets["total"])
	assert.Equal(t, float64(25), tickets["elderly_percentage"])
	assert.Equal(t, float64(7), body["period"].(map[string]interface{})["days"])
}

func TestImportCrashRequiresFile(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := doRequest(t, router, "POST", "/api/v1/import/crash", bytes.NewReader(nil), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "缺少上傳檔案", decodeBody(t, rec)["message"])
}

func TestImportCrashUpload(t *testing.T) {
	repo := &stubRepo{}
	router := newTestRouter(repo)

	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	rows := [][]string{
		{"案件編號", "發生時間", "發生地點", "交通事故類別", "當事人年齡"},
		{"11300001", "113/3/15 08:30", "臺南市東區中華路100號", "A1", "45"},
		{"11300002", "113/3/15 14:05", "臺南市永康區中山路50號", "A2", "70"},
	}
	for i, row := range rows {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, ref, cell))
		}
	}
	content, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "crashes.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(content.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := doRequest(t, router, "POST", "/api/v1/import/crash", &buf, mw.FormDataContentType())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["new_count"])
	assert.Len(t, repo.crashes, 2)
}

func TestImportCrashRejectsBadExtension(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "crashes.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("a,b,c"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := doRequest(t, router, "POST", "/api/v1/import/crash", &buf, mw.FormDataContentType())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "僅支援 Excel 檔案 (.xlsx/.xls)", decodeBody(t, rec)["message"])
}

func TestResetDatabaseRoute(t *testing.T) {
	repo := &stubRepo{}
	router := newTestRouter(repo)

	rec := doRequest(t, router, "POST", "/api/v1/admin/reset-database", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "資料庫已重置", body["message"])
	assert.Equal(t, 1, repo.resets)
}

func TestQueryDaysClampsRange(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?days=9999", nil)
	assert.Equal(t, 30, queryDays(req, 30))

	req = httptest.NewRequest("GET", "/x?days=90", nil)
	assert.Equal(t, 90, queryDays(req, 30))

	req = httptest.NewRequest("GET", "/x", nil)
	assert.Equal(t, 30, queryDays(req, 30))
}
