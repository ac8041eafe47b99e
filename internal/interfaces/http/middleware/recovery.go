package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "growth-journal-api/pkg/errors"
	"growth-journal-api/pkg/logger"
)

const maxStackLen = 4096

// Recovery 捕获 panic，记录堆栈后返回 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", logger.Truncate(string(debug.Stack()), maxStackLen),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			appErr := apperrors.ErrInternalError
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
				"code":       appErr.HTTPStatus,
				"message":    appErr.Message,
				"error_code": string(appErr.Code),
				"request_id": c.GetString("request_id"),
			})
		}()

		c.Next()
	}
}
