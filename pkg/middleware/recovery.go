package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/response"
)

// Recovery turns a panic into a logged 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		l := log.Ctx(c.Request.Context())
		l.Error().Interface("panic", recovered).Msg("recovered from panic")
		response.InternalError(c, "an unexpected error occurred")
	})
}

// NoRoute answers unknown routes with a 404 envelope.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.NotFound(c, "route not found")
	}
}
