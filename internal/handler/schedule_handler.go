package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/service"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
)

type scheduleReader interface {
	List(ctx context.Context, query dto.ScheduleQuery) ([]models.Schedule, *models.Pagination, error)
}

type timetableExporter interface {
	Export(ctx context.Context, query dto.ExportQuery) (*service.ExportFile, error)
	Publish(ctx context.Context, query dto.ExportQuery) (*dto.ExportLink, error)
	Download(ctx context.Context, token string) (*service.ExportFile, error)
}

// ScheduleHandler serves materialized schedules.
type ScheduleHandler struct {
	schedules scheduleReader
	exporter  timetableExporter
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(schedules *service.ScheduleService, exporter *service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, exporter: exporter}
}

// List godoc
// @Summary List schedules
// @Description Active schedules by default; pass status=archived for superseded rows.
// @Tags Schedules
// @Produce json
// @Param semester_id query string true "Semester ID"
// @Param instructor_id query string false "Instructor ID"
// @Param room_id query string false "Room ID"
// @Param day query string false "Day of week"
// @Param status query string false "active or archived"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var query dto.ScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule query"))
		return
	}
	rows, pagination, err := h.schedules.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Export godoc
// @Summary Export a semester timetable
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param semester_id query string true "Semester ID"
// @Param format query string false "csv or pdf"
// @Param delivery query string false "file (default) or link"
// @Success 200 {file} file
// @Router /schedules/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	if query.Delivery == "link" {
		link, err := h.exporter.Publish(c.Request.Context(), query)
		if err != nil {
			response.Error(c, err)
			return
		}
		link.URL = strings.TrimSuffix(c.Request.URL.Path, "/") + "/download?token=" + url.QueryEscape(link.Token)
		response.JSON(c, http.StatusOK, link, nil)
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// Download godoc
// @Summary Download a stored export through its signed token
// @Tags Schedules
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 412 {object} response.Envelope
// @Router /schedules/export/download [get]
func (h *ScheduleHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, err := h.exporter.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
