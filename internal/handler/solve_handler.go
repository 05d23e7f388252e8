package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

const defaultBatchListLimit = 20

type solveManager interface {
	Enqueue(ctx context.Context, req dto.SolveRequest) (*models.SolveBatch, error)
	Preview(ctx context.Context, req dto.SolveRequest) (*dto.SolvePreviewResponse, error)
	Cancel(ctx context.Context, batchID string) (*models.SolveBatch, error)
	Status(ctx context.Context, batchID string) (*models.BatchProgress, error)
	Get(ctx context.Context, batchID string) (*models.SolveBatch, error)
	List(ctx context.Context, semesterID string, limit int) ([]models.SolveBatch, error)
}

// SolveHandler exposes timetable solve batches.
type SolveHandler struct {
	service solveManager
}

// NewSolveHandler constructs the handler.
func NewSolveHandler(svc *service.SolveService) *SolveHandler {
	return &SolveHandler{service: svc}
}

// Enqueue godoc
// @Summary Queue a timetable solve for a semester
// @Description Creates a solve batch processed in the background. Only one batch per semester may be queued or running.
// @Tags Solver
// @Accept json
// @Produce json
// @Param payload body dto.SolveRequest true "Solve request"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /solves [post]
func (h *SolveHandler) Enqueue(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid solve payload"))
		return
	}
	batch, err := h.service.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.NewSolveBatchResponse(batch))
}

// Preview godoc
// @Summary Solve a semester without saving
// @Description Runs the solver synchronously and returns the assignment and diagnostics. Nothing is persisted.
// @Tags Solver
// @Accept json
// @Produce json
// @Param payload body dto.SolveRequest true "Solve request"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /solves/preview [post]
func (h *SolveHandler) Preview(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid solve payload"))
		return
	}
	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"mode": "preview"})
}

// List godoc
// @Summary List solve batches of a semester
// @Tags Solver
// @Produce json
// @Param semester_id query string true "Semester ID"
// @Param limit query int false "Maximum batches"
// @Success 200 {object} response.Envelope
// @Router /solves [get]
func (h *SolveHandler) List(c *gin.Context) {
	limit, err := limitFromQuery(c, defaultBatchListLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	batches, err := h.service.List(c.Request.Context(), c.Query("semester_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := lo.Map(batches, func(b models.SolveBatch, _ int) *dto.SolveBatchResponse { return dto.NewSolveBatchResponse(&b) })
	response.JSON(c, http.StatusOK, out, nil)
}

// Get godoc
// @Summary Get a solve batch
// @Tags Solver
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /solves/{id} [get]
func (h *SolveHandler) Get(c *gin.Context) {
	batch, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSolveBatchResponse(batch), nil)
}

// Status godoc
// @Summary Poll solve progress
// @Tags Solver
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /solves/{id}/status [get]
func (h *SolveHandler) Status(c *gin.Context) {
	progress, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Cancel godoc
// @Summary Cancel a queued or running solve
// @Description A running batch stops at the next solver checkpoint and keeps the previous schedules.
// @Tags Solver
// @Produce json
// @Param id path string true "Batch ID"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /solves/{id}/cancel [post]
func (h *SolveHandler) Cancel(c *gin.Context) {
	batch, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.NewSolveBatchResponse(batch))
}
