package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"example.com/resto/services/kitchen/internal/tracing"
)

// Tracing returns a gin middleware that opens a transaction per request.
// With tracing disabled it passes requests through untouched.
func Tracing(tracer tracing.Tracer) gin.HandlerFunc {
	if tracer == nil {
		return func(c *gin.Context) { c.Next() }
	}
	app := tracer.Application()
	if app == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return nrgin.Middleware(app)
}
