package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
)

// ErrorHandler returns a Gin middleware that converts errors set on the Gin
// context into the JSON error body. AppErrors keep their code and message;
// anything else is logged and reported as a generic internal error.
// Nothing is written if a handler already produced a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// Process the last error (most relevant in a middleware chain)
		err := c.Errors.Last().Err
		log := logger.Named("http")

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.Internal != nil {
				log.Errorw("app error",
					"code", appErr.Code,
					"message", appErr.Message,
					"internal", appErr.Internal.Error(),
					"path", c.Request.URL.Path,
					"request_id", RequestID(c),
				)
			}
			c.JSON(appErr.StatusCode, errorBody(appErr))
			return
		}

		// Unexpected error: log full details, return generic message
		log.Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", RequestID(c),
		)
		c.JSON(apperrors.ErrInternalServer.StatusCode, errorBody(apperrors.ErrInternalServer))
	}
}

// Recovery converts panics into the standard internal error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Named("http").Errorw("panic recovered",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"request_id", RequestID(c),
		)
		c.AbortWithStatusJSON(apperrors.ErrInternalServer.StatusCode, errorBody(apperrors.ErrInternalServer))
	})
}

func errorBody(err *apperrors.AppError) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	}
}
