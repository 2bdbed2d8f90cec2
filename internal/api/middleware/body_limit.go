package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opencampus/backend/pkg/response"
)

// BodyLimit 请求体大小限制（如 1<<20 = 1MB）
// 考场分配与冲突检测请求携带学生 ID 列表，上限取自 server.body_limit
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
