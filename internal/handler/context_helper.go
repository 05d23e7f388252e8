package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// limitFromQuery reads ?limit, falling back to def when absent.
func limitFromQuery(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer")
	}
	return parsed, nil
}
