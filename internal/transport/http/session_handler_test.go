package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
	apierrors "github.com/mitchens84/APPLE-HEALTH/internal/errors"
	"github.com/mitchens84/APPLE-HEALTH/internal/middleware"
	"github.com/mitchens84/APPLE-HEALTH/internal/report"
	"github.com/mitchens84/APPLE-HEALTH/internal/services"
	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Watch" unit="count" startDate="2024-01-02 08:00:00 +0700" endDate="2024-01-02 08:10:00 +0700" value="312"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Watch" unit="count" startDate="2024-01-03 08:00:00 +0700" endDate="2024-01-03 08:10:00 +0700" value="450"/>
 <Record type="HKCategoryTypeIdentifierSleepAnalysis" sourceName="Phone" startDate="2024-01-02 22:00:00 +0700" endDate="2024-01-03 06:00:00 +0700" value="HKCategoryValueSleepAnalysisAsleep"/>
 <Workout workoutActivityType="HKWorkoutActivityTypeRunning" duration="42.5" startDate="2024-01-04 06:00:00 +0700" endDate="2024-01-04 06:45:00 +0700" totalDistance="7.2" totalEnergyBurned="512" sourceName="Watch"/>
</HealthData>
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type handlerHarness struct {
	router   chi.Router
	sessions *services.SessionManager
}

func newHarness(t *testing.T) *handlerHarness {
	t.Helper()

	base := t.TempDir()
	paths := &config.Paths{
		ExecutableDir: base,
		DataDir:       filepath.Join(base, "data"),
		UploadsDir:    filepath.Join(base, "data", "uploads"),
		ReportsDir:    filepath.Join(base, "data", "reports"),
		LogsDir:       filepath.Join(base, "logs"),
	}

	cfg := config.Default()
	logger := testLogger()

	sessions := services.NewSessionManager(filepath.Join(base, "sessions"), logger)
	processing := services.NewProcessingService(cfg, paths, nil, logger)
	validation := middleware.NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))

	handler := NewSessionHandler(sessions, processing, validation, cfg, logger)

	r := chi.NewRouter()
	r.Mount("/api/sessions", handler.Routes())

	return &handlerHarness{router: r, sessions: sessions}
}

func (h *handlerHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fieldName, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fieldName, "export.xml")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func createSession(t *testing.T, h *handlerHarness) string {
	t.Helper()

	rec := h.do(uploadRequest(t, uploadFieldName, sampleExport))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func jsonRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestSessionHandler_CreateSession(t *testing.T) {
	h := newHarness(t)

	id := createSession(t, h)

	sess, err := h.sessions.Get(id)
	require.NoError(t, err)

	data, err := os.ReadFile(sess.ExportPath)
	require.NoError(t, err)
	assert.Equal(t, sampleExport, string(data))
}

func TestSessionHandler_CreateSession_FileFieldName(t *testing.T) {
	h := newHarness(t)

	// The upload field name is part of the HTTP contract.
	rec := h.do(uploadRequest(t, "file", sampleExport))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSessionHandler_CreateSession_MissingField(t *testing.T) {
	h := newHarness(t)

	rec := h.do(uploadRequest(t, "attachment", sampleExport))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "multipart field \\\"file\\\"")
}

func TestSessionHandler_CreateSession_TooLarge(t *testing.T) {
	h := newHarness(t)

	req := uploadRequest(t, uploadFieldName, sampleExport)
	req.ContentLength = config.Default().MaxUploadBytes() + 1

	rec := h.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPLOAD_TOO_LARGE")
}

func TestSessionHandler_SessionNotFound(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/no-such-session", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestSessionHandler_GetSession(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ID       string `json:"id"`
			Datasets int    `json:"datasets"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.ID)
	assert.Equal(t, 0, resp.Data.Datasets)
}

func TestSessionHandler_ListTypes(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/types", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"data"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "HKCategoryTypeIdentifierSleepAnalysis", resp.Data[0].Type)
	assert.Equal(t, "SleepAnalysis (Category)", resp.Data[0].Name)
	assert.Equal(t, "HKQuantityTypeIdentifierStepCount", resp.Data[1].Type)
	assert.Equal(t, "StepCount (Quantity)", resp.Data[1].Name)
}

func TestSessionHandler_ExtractDataset(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/datasets",
		`{"type":"HKQuantityTypeIdentifierStepCount"}`))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data domain.DatasetSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "StepCount (Quantity)", resp.Data.Name)
	assert.Equal(t, 2, resp.Data.RecordCount)
	require.NotNil(t, resp.Data.Stats)
	assert.InDelta(t, 381.0, resp.Data.Stats.Mean, 0.001)

	sess, err := h.sessions.Get(id)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(sess.OutputDir, "StepCount.csv"))
}

func TestSessionHandler_ExtractDataset_InvalidType(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/datasets",
		`{"type":"../../etc/passwd"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_ExtractDataset_MissingContentType(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/datasets",
		strings.NewReader(`{"type":"HKQuantityTypeIdentifierStepCount"}`))

	rec := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_CONTENT_TYPE")
}

func TestSessionHandler_ExtractWorkouts(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/workouts", nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data domain.DatasetSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Workouts", resp.Data.Name)
	assert.Equal(t, 1, resp.Data.RecordCount)
}

func TestSessionHandler_Process_EmptyBody(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/process", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data services.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Processed)
	assert.Equal(t, 0, resp.Data.Failed)

	sess, err := h.sessions.Get(id)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(sess.OutputDir, report.ScheduleFileName))
}

func TestSessionHandler_Process_Selection(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/process",
		`{"types":["HKQuantityTypeIdentifierStepCount"],"workouts":false}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data services.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Processed)
}

func TestSessionHandler_GetReport(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/datasets",
		`{"type":"HKQuantityTypeIdentifierStepCount"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data  []domain.DatasetSummary `json:"data"`
		Count int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "StepCount (Quantity)", resp.Data[0].Name)
}

func TestSessionHandler_DownloadFile(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(jsonRequest(http.MethodPost, "/api/sessions/"+id+"/datasets",
		`{"type":"HKQuantityTypeIdentifierStepCount"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/files/StepCount.csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=StepCount.csv", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "startDate,endDate,value")
}

func TestSessionHandler_DownloadFile_Traversal(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/files/..", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_DownloadFile_NotFound(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/files/Missing.csv", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_DownloadArchive(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/archive", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/process", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/archive", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename="+archiveFileName, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "zip archives start with PK")
}

func TestSessionHandler_DeleteSession(t *testing.T) {
	h := newHarness(t)
	id := createSession(t, h)

	rec := h.do(httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// MockProcessingService is a mock implementation of ProcessingServiceInterface.
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ListTypes(ctx context.Context, sess *services.Session) ([]string, error) {
	args := m.Called(sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockProcessingService) ExtractDataset(ctx context.Context, sess *services.Session, rawType string) (*domain.DatasetSummary, error) {
	args := m.Called(sess, rawType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DatasetSummary), args.Error(1)
}

func (m *MockProcessingService) ExtractWorkouts(ctx context.Context, sess *services.Session) (*domain.DatasetSummary, error) {
	args := m.Called(sess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DatasetSummary), args.Error(1)
}

func (m *MockProcessingService) ProcessAll(ctx context.Context, sess *services.Session, types []string, includeWorkouts bool) (*services.BatchResult, error) {
	args := m.Called(sess, types, includeWorkouts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BatchResult), args.Error(1)
}

func (m *MockProcessingService) WriteReport(ctx context.Context, sess *services.Session) (string, error) {
	args := m.Called(sess)
	return args.String(0), args.Error(1)
}

func TestSessionHandler_MalformedExportMapsTo422(t *testing.T) {
	base := t.TempDir()
	logger := testLogger()

	sessions := services.NewSessionManager(filepath.Join(base, "sessions"), logger)
	sess, err := sessions.Create(context.Background(), strings.NewReader(sampleExport))
	require.NoError(t, err)

	mockService := new(MockProcessingService)
	mockService.On("ListTypes", sess).
		Return(nil, apierrors.NewMalformedSourceError(sess.ExportPath, assert.AnError))

	validation := middleware.NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))
	handler := NewSessionHandler(sessions, mockService, validation, config.Default(), logger)

	r := chi.NewRouter()
	r.Mount("/api/sessions", handler.Routes())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID+"/types", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "MALFORMED_SOURCE")
	mockService.AssertExpectations(t)
}
