package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByCode(t *testing.T) {
	wrapped := fmt.Errorf("enqueue: %w", Clone(ErrSolveInProgress, "semester sem-1 busy"))
	assert.True(t, errors.Is(wrapped, ErrSolveInProgress))
	assert.False(t, errors.Is(wrapped, ErrConflict))

	appErr := FromError(wrapped)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "semester sem-1 busy", appErr.Message)
}

func TestFromErrorWrapsPlainErrors(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestWithDetailsCopies(t *testing.T) {
	detailed := WithDetails(ErrInfeasible, map[string]int{"supplyDeficit": 120})
	assert.NotNil(t, detailed.Details)
	assert.Nil(t, ErrInfeasible.Details)
	assert.Equal(t, http.StatusUnprocessableEntity, detailed.Status)
}
