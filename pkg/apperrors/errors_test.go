package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWithDetailsDoesNotMutateShared(t *testing.T) {
	withDetails := ErrNotificationNotFound.WithDetails("id=1")

	assert.Nil(t, ErrNotificationNotFound.Details)
	assert.Equal(t, "id=1", withDetails.Details)
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", ErrMeetingNotFound)

	appErr, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPCode)
	assert.True(t, errors.Is(wrapped, ErrMeetingNotFound))
}

func TestHandleErrorMapsUnknownTo500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleError(c, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(CodeInternalError))
}
