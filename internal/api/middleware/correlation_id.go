package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cvBuilder/internal/tasks"
)

const (
	// CorrelationIDHeader 为请求与响应中携带 Correlation ID 的头。
	CorrelationIDHeader = "X-Correlation-ID"

	correlationIDKey    = "correlationID"
	maxCorrelationIDLen = 64
)

// CorrelationIDMiddleware 沿用合法的上游 Correlation ID，否则生成新的；
// ID 同时写入请求 ctx，投递的后台任务会带上它。
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := acceptCorrelationID(c.GetHeader(CorrelationIDHeader))
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(tasks.WithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

// acceptCorrelationID 只接受长度受限的可打印 ASCII，其他值返回空串。
func acceptCorrelationID(raw string) string {
	if raw == "" || len(raw) > maxCorrelationIDLen {
		return ""
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] <= ' ' || raw[i] > '~' {
			return ""
		}
	}
	return raw
}

// GetCorrelationID 从上下文中取出 Correlation ID。
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}
