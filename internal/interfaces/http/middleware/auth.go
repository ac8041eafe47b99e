// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "growth-journal-api/pkg/errors"
	"growth-journal-api/pkg/logger"
	"growth-journal-api/pkg/utils"
)

const userIDKey = "user_id"

// AuthConfig 认证配置
type AuthConfig struct {
	// Secret JWT 密钥
	Secret string
	// Issuer JWT 签发者
	Issuer string
	// SkipPaths 跳过认证的路径前缀
	SkipPaths []string
	// Enabled 是否启用认证
	Enabled bool
}

// Auth 认证中间件，只接受 access token，user_id 写入 gin 与日志上下文
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		if !cfg.Enabled || skipped(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, apperrors.ErrTokenMissing)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortUnauthorized(c, apperrors.ErrTokenInvalid)
			return
		}

		claims, err := jwtManager.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, utils.ErrExpiredToken) {
				abortUnauthorized(c, apperrors.ErrTokenExpired)
				return
			}
			abortUnauthorized(c, apperrors.ErrTokenInvalid)
			return
		}

		if claims.Type != utils.TokenTypeAccess {
			abortUnauthorized(c, apperrors.ErrTokenInvalid)
			return
		}

		c.Set(userIDKey, claims.UserID)
		ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func skipped(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// abortUnauthorized 终止请求并返回 401
func abortUnauthorized(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":       http.StatusUnauthorized,
		"message":    appErr.Message,
		"error_code": string(appErr.Code),
		"trace_id":   c.GetString("trace_id"),
	})
}

// GetUserIDFromGin 读取认证后的用户 ID
func GetUserIDFromGin(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// DefaultSkipPaths 默认跳过认证的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}
