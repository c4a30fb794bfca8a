package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfiling(t *testing.T) {
	var labels map[string]string
	capture := func(c *gin.Context) {
		labels = ProfileLabels(c.Request.Context())
		c.Status(http.StatusOK)
	}

	t.Run("labels route and method", func(t *testing.T) {
		router := gin.New()
		router.Use(Profiling(true))
		router.POST("/api/v1/orders", capture)

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))

		assert.Equal(t, "/api/v1/orders", labels["route"])
		assert.Equal(t, http.MethodPost, labels["method"])
	})

	t.Run("health checks stay untagged", func(t *testing.T) {
		router := gin.New()
		router.Use(Profiling(true))
		router.GET("/health", capture)

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Empty(t, labels)
	})

	t.Run("disabled", func(t *testing.T) {
		router := gin.New()
		router.Use(Profiling(false))
		router.GET("/test", capture)

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Empty(t, labels)
	})
}
