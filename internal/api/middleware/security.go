package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders 安全响应头；接口只返回 JSON，不加载任何外部资源
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		// 成绩与考勤数据不允许被中间代理缓存
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}
