package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvBuilder/internal/api/middleware"
	"cvBuilder/internal/cv"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/templates"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func BadRequest(c *gin.Context, msg string)      { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)        { Error(c, http.StatusNotFound, msg) }
func Forbidden(c *gin.Context, msg string)       { Error(c, http.StatusForbidden, msg) }
func TooLarge(c *gin.Context, msg string)        { Error(c, http.StatusRequestEntityTooLarge, msg) }
func TooManyRequests(c *gin.Context, msg string) { Error(c, http.StatusTooManyRequests, msg) }
func Internal(c *gin.Context, msg string)        { Error(c, http.StatusInternalServerError, msg) }

// respondError 将领域错误映射为 HTTP 状态，未知错误记录日志后返回 500。
func respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, cv.ErrMalformedDocument):
		BadRequest(c, err.Error())
	case errors.Is(err, templates.ErrInvalidID):
		BadRequest(c, "invalid template id")
	case errors.Is(err, templates.ErrNotFound):
		NotFound(c, "template not found")
	case errors.Is(err, editor.ErrLoad):
		middleware.LoggerFromContext(c).Error(msg, slog.Any("error", err))
		Error(c, http.StatusBadGateway, msg)
	default:
		middleware.LoggerFromContext(c).Error(msg, slog.Any("error", err))
		Internal(c, msg)
	}
}
