package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// LogApi writes one line per request; health probes are skipped.
func LogApi() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz"},
		Formatter: func(param gin.LogFormatterParams) string {
			user := "-"
			if id, ok := param.Keys[userIDKey].(uint); ok {
				user = fmt.Sprint(id)
			}
			return fmt.Sprintf("[%s] | %s | user=%s | %d | %s %s | %s | %s\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.ClientIP,
				user,
				param.StatusCode,
				param.Method,
				param.Path,
				param.Latency,
				param.ErrorMessage,
			)
		},
	})
}
