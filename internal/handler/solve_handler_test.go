package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type solveManagerMock struct {
	captured   dto.SolveRequest
	enqueueErr error
	limit      int
	semester   string
}

func (m *solveManagerMock) Enqueue(ctx context.Context, req dto.SolveRequest) (*models.SolveBatch, error) {
	m.captured = req
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	return &models.SolveBatch{ID: "batch-1", SemesterID: req.SemesterID, Status: models.BatchStatusQueued}, nil
}

func (m *solveManagerMock) Preview(ctx context.Context, req dto.SolveRequest) (*dto.SolvePreviewResponse, error) {
	return &dto.SolvePreviewResponse{SemesterID: req.SemesterID, Status: timetable.StatusOptimal}, nil
}

func (m *solveManagerMock) Cancel(ctx context.Context, batchID string) (*models.SolveBatch, error) {
	if batchID == "done" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "solve batch already finished")
	}
	return &models.SolveBatch{ID: batchID, Status: models.BatchStatusRunning}, nil
}

func (m *solveManagerMock) Status(ctx context.Context, batchID string) (*models.BatchProgress, error) {
	return &models.BatchProgress{BatchID: batchID, Status: models.BatchStatusRunning, Progress: 40}, nil
}

func (m *solveManagerMock) Get(ctx context.Context, batchID string) (*models.SolveBatch, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "solve batch not found")
}

func (m *solveManagerMock) List(ctx context.Context, semesterID string, limit int) ([]models.SolveBatch, error) {
	m.semester = semesterID
	m.limit = limit
	return []models.SolveBatch{{ID: "batch-1", SemesterID: semesterID}}, nil
}

func newSolveRouter(mock *solveManagerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &SolveHandler{service: mock}
	r := gin.New()
	r.POST("/solves", h.Enqueue)
	r.POST("/solves/preview", h.Preview)
	r.GET("/solves", h.List)
	r.GET("/solves/:id", h.Get)
	r.GET("/solves/:id/status", h.Status)
	r.POST("/solves/:id/cancel", h.Cancel)
	return r
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &out))
	return out
}

func TestSolveHandlerEnqueue(t *testing.T) {
	mock := &solveManagerMock{}
	r := newSolveRouter(mock)

	req := httptest.NewRequest(http.MethodPost, "/solves", bytes.NewReader([]byte(`{"semester_id":"sem-1","time_budget_seconds":45}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "sem-1", mock.captured.SemesterID)
	assert.Equal(t, 45, mock.captured.TimeBudgetSeconds)
	data := decodeEnvelope(t, w.Body)["data"].(map[string]interface{})
	assert.Equal(t, "batch-1", data["id"])
	assert.Equal(t, "queued", data["status"])
}

func TestSolveHandlerEnqueueConflict(t *testing.T) {
	mock := &solveManagerMock{enqueueErr: appErrors.WithDetails(appErrors.ErrSolveInProgress, map[string]string{"batch_id": "batch-0"})}
	r := newSolveRouter(mock)

	req := httptest.NewRequest(http.MethodPost, "/solves", bytes.NewReader([]byte(`{"semester_id":"sem-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w.Body)["error"].(map[string]interface{})
	assert.Equal(t, "SOLVE_IN_PROGRESS", errBody["code"])
}

func TestSolveHandlerEnqueueMalformedBody(t *testing.T) {
	r := newSolveRouter(&solveManagerMock{})

	req := httptest.NewRequest(http.MethodPost, "/solves", bytes.NewReader([]byte(`{"semester_id":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSolveHandlerPreview(t *testing.T) {
	r := newSolveRouter(&solveManagerMock{})

	req := httptest.NewRequest(http.MethodPost, "/solves/preview", bytes.NewReader([]byte(`{"semester_id":"sem-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.Equal(t, "preview", env["meta"].(map[string]interface{})["mode"])
	assert.Equal(t, "OPTIMAL", env["data"].(map[string]interface{})["status"])
}

func TestSolveHandlerListAndLimit(t *testing.T) {
	mock := &solveManagerMock{}
	r := newSolveRouter(mock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/solves?semester_id=sem-1&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sem-1", mock.semester)
	assert.Equal(t, 5, mock.limit)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/solves?semester_id=sem-1&limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSolveHandlerStatusGetCancel(t *testing.T) {
	r := newSolveRouter(&solveManagerMock{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/solves/batch-1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(40), decodeEnvelope(t, w.Body)["data"].(map[string]interface{})["progress"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/solves/batch-1", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/solves/batch-1/cancel", nil))
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/solves/done/cancel", nil))
	require.Equal(t, http.StatusConflict, w.Code)
}
