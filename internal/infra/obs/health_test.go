package obs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHealthRouter(h HealthHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/livez", h.Livez)
	router.GET("/readyz", h.Readyz)
	return router
}

func TestLivezAlwaysOK(t *testing.T) {
	router := newHealthRouter(HealthHandlers{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzWithoutChecks(t *testing.T) {
	router := newHealthRouter(HealthHandlers{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsFailingCheckByName(t *testing.T) {
	h := HealthHandlers{Checks: map[string]func() error{
		"store":  func() error { return nil },
		"broker": func() error { return errors.New("connection refused") },
	}}
	router := newHealthRouter(h)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body.Status)
	assert.Contains(t, body.Checks, "broker")
	assert.NotContains(t, body.Checks, "store", "passing checks are not reported")
}
