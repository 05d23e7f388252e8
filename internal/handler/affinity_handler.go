package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type affinityReader interface {
	LatestScores(ctx context.Context) (*dto.AffinityScoreResponse, error)
	ListBatches(ctx context.Context, limit int) ([]models.AffinityBatch, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// AffinityHandler exposes instructor/subject affinity batches.
type AffinityHandler struct {
	service affinityReader
	queue   jobDispatcher
}

// NewAffinityHandler constructs the handler. Scoring runs on queue.
func NewAffinityHandler(svc *service.AffinityService, queue *jobs.Queue) *AffinityHandler {
	return &AffinityHandler{service: svc, queue: queue}
}

// Run godoc
// @Summary Queue an affinity scoring batch
// @Tags Affinity
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /affinity/batches [post]
func (h *AffinityHandler) Run(c *gin.Context) {
	jobID := uuid.NewString()
	if err := h.queue.Enqueue(jobs.Job{ID: jobID, Type: "affinity"}); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue affinity batch"))
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID})
}

// Batches godoc
// @Summary List affinity batches
// @Tags Affinity
// @Produce json
// @Param limit query int false "Maximum batches"
// @Success 200 {object} response.Envelope
// @Router /affinity/batches [get]
func (h *AffinityHandler) Batches(c *gin.Context) {
	limit, err := limitFromQuery(c, defaultBatchListLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	batches, err := h.service.ListBatches(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}

// Latest godoc
// @Summary Latest affinity scores
// @Tags Affinity
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /affinity/scores/latest [get]
func (h *AffinityHandler) Latest(c *gin.Context) {
	scores, err := h.service.LatestScores(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}
