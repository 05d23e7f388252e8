package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
)

// SolveRequest queues or previews a semester solve.
type SolveRequest struct {
	SemesterID        string `json:"semester_id" validate:"required"`
	TimeBudgetSeconds int    `json:"time_budget_seconds" validate:"gte=0"`
}

// SolveBatchResponse is the public view of a solve batch.
type SolveBatchResponse struct {
	ID         string              `json:"id"`
	SemesterID string              `json:"semester_id"`
	Status     models.BatchStatus  `json:"status"`
	Progress   int                 `json:"progress"`
	Message    string              `json:"message"`
	Summary    models.SolveSummary `json:"summary"`
	CreatedAt  time.Time           `json:"created_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// NewSolveBatchResponse maps a batch row.
func NewSolveBatchResponse(batch *models.SolveBatch) *SolveBatchResponse {
	if batch == nil {
		return nil
	}
	return &SolveBatchResponse{
		ID:         batch.ID,
		SemesterID: batch.SemesterID,
		Status:     batch.Status,
		Progress:   batch.Progress,
		Message:    batch.Message,
		Summary:    batch.Summary,
		CreatedAt:  batch.CreatedAt,
		StartedAt:  batch.StartedAt,
		FinishedAt: batch.FinishedAt,
	}
}

// SolvePreviewResponse is the result of a synchronous solve that is not persisted.
type SolvePreviewResponse struct {
	SemesterID string                `json:"semester_id"`
	Status     timetable.Status      `json:"status"`
	Placements []timetable.Placement `json:"placements"`
	Unplaced   []timetable.TaskIssue `json:"unplaced,omitempty"`
	Objective  int64                 `json:"objective"`
	Breakdown  timetable.Breakdown   `json:"breakdown"`
	Diagnostic timetable.Diagnostic  `json:"diagnostic"`
	ElapsedMS  int64                 `json:"elapsed_ms"`
}

// ScheduleQuery filters the schedule listing.
type ScheduleQuery struct {
	SemesterID   string `form:"semester_id" validate:"required"`
	InstructorID string `form:"instructor_id"`
	RoomID       string `form:"room_id"`
	DayOfWeek    string `form:"day"`
	Status       string `form:"status" validate:"omitempty,oneof=active archived"`
	Page         int    `form:"page" validate:"gte=0"`
	PageSize     int    `form:"page_size" validate:"gte=0,lte=200"`
}

// ExportQuery selects a semester timetable export. Delivery "link" stores
// the file and returns a signed download token instead of the bytes.
type ExportQuery struct {
	SemesterID string `form:"semester_id" validate:"required"`
	Format     string `form:"format" validate:"omitempty,oneof=csv pdf"`
	Delivery   string `form:"delivery" validate:"omitempty,oneof=file link"`
}

// ExportLink references a stored export.
type ExportLink struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Token       string    `json:"token"`
	URL         string    `json:"url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AffinityScoreResponse lists the scores of one affinity batch.
type AffinityScoreResponse struct {
	Batch  models.AffinityBatch               `json:"batch"`
	Scores []models.InstructorSubjectAffinity `json:"scores"`
}
