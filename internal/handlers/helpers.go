package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
	"budgettracker/internal/middleware"
	"budgettracker/internal/pagination"
)

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// SuccessResponse is returned by deletes and logout.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// requestLogger returns a logger annotated with the request and user IDs.
func requestLogger(c *gin.Context) *zap.SugaredLogger {
	log := logger.Named("handlers").With("request_id", middleware.RequestID(c))
	if userID := c.GetString("userID"); userID != "" {
		log = log.With("user_id", userID)
	}
	return log
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// bindPage parses the optional page and page_size query parameters.
func bindPage(c *gin.Context) (pagination.PageRequest, error) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		return page, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return page, nil
}

// respondWithList writes a list as a bare JSON array with its total in X-Total-Count.
func respondWithList[T any](c *gin.Context, result *pagination.PageResponse[T]) {
	c.Header(pagination.TotalHeader, result.TotalString())
	c.JSON(http.StatusOK, result.Data)
}

// bindPatch decodes a PATCH body into dst and also returns the raw keys the
// client sent, which is what the audit log records.
func bindPatch(c *gin.Context, dst interface{}) (map[string]interface{}, error) {
	if err := c.ShouldBindBodyWith(dst, binding.JSON); err != nil {
		return nil, invalidBody(err)
	}
	var changes map[string]interface{}
	if err := c.ShouldBindBodyWith(&changes, binding.JSON); err != nil {
		return nil, invalidBody(err)
	}
	return changes, nil
}

// invalidBody converts a binding failure into a 400.
func invalidBody(err error) *apperrors.AppError {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a 500 carrying the error's message.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
	}

	if appErr.Internal != nil || appErr.StatusCode >= http.StatusInternalServerError {
		requestLogger(c).Errorw("request failed",
			"code", appErr.Code,
			"error", err,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
	}

	c.JSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
