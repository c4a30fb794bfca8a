package middleware

import (
	"context"
	"runtime/pprof"

	"github.com/gin-gonic/gin"
	"github.com/grafana/pyroscope-go"
)

// Profiling tags CPU samples taken while a request runs with its route and
// method, so Pyroscope can split checkout from cart traffic. Health checks
// are left untagged.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/health" || route == "/ready" {
			c.Next()
			return
		}
		pyroscope.TagWrapper(c.Request.Context(), pyroscope.Labels(
			"route", route,
			"method", c.Request.Method,
		), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// ProfileLabels returns the pyroscope labels attached to ctx.
func ProfileLabels(ctx context.Context) map[string]string {
	out := map[string]string{}
	pprof.ForLabels(ctx, func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}
