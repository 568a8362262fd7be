package middleware

import (
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/logger"
	"autograde/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into an internal error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "handler panicked",
			zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		response.AbortWithError(c, appErr.InternalError(nil))
	})
}

// NoRoute answers unknown paths with the not found envelope.
func NoRoute(c *gin.Context) {
	response.NotFound(c, "")
}
