package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecosystia_backend/internal/auth"
	"ecosystia_backend/internal/metrics"

	"github.com/gin-gonic/gin"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *auth.TokenManager, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware(), MetricsMiddleware(m))
	protected := r.Group("/p", AuthMiddleware(tokens))
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "staff": IsStaff(c)})
	})
	protected.GET("/staff", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	r := newRouter(tokens, metrics.NewUnregistered())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/p/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tokens.Generate("u-1", false)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/p/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u-1","staff":false}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequireStaff(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	r := newRouter(tokens, metrics.NewUnregistered())

	for staff, want := range map[bool]int{false: http.StatusForbidden, true: http.StatusNoContent} {
		token, err := tokens.Generate("u-1", staff)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/p/staff", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "staff=%v", staff)
	}
}

func TestRequestIDIsPropagatedAndMetricsRecorded(t *testing.T) {
	m := metrics.NewUnregistered()
	r := newRouter(auth.NewTokenManager("secret", time.Hour), m)

	req := httptest.NewRequest(http.MethodGet, "/p/me", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/p/me", "401")))
}
