// Package middleware 提供JWT认证和授权中间件。
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/repo"
	"github.com/JinhuaXu/flowhub/internal/resp"
	"github.com/JinhuaXu/flowhub/internal/service"
)

// AuthMiddleware JWT认证中间件
// 验证访问令牌后从数据库重新读取用户，并在注入上下文前执行被动过期检查。
// 令牌里的角色和会员标志只是签发时的快照，权限判定必须基于最新状态，
// 过期的会员在下一个请求就会被降级。
func AuthMiddleware(jwtService service.JWTService, userRepo repo.UserRepository, membership service.MembershipService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())

			tokenString, ok := bearerToken(r)
			if !ok {
				logger.Warn("missing or malformed authorization header", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authorization required", reqID, "")
				return
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				logger.Warn("token validation failed",
					zap.String("request_id", reqID),
					zap.Error(err),
				)

				switch {
				case errors.Is(err, service.ErrTokenExpired):
					resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "token expired", reqID, "")
				case errors.Is(err, service.ErrTokenNotReady):
					resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "token not ready", reqID, "")
				default:
					resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid token", reqID, "")
				}
				return
			}

			// 重新读取用户，令牌有效但账号已删除的请求在这里被拒绝
			user, err := userRepo.GetByID(claims.UserID)
			if err != nil {
				logger.Error("failed to load user for auth",
					zap.String("request_id", reqID),
					zap.Int64("user_id", claims.UserID),
					zap.Error(err),
				)
				resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "internal server error", reqID, "")
				return
			}
			if user == nil {
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "user not found", reqID, "")
				return
			}

			// 被动过期：降级结果落库失败只记日志，内存中的降级状态照常生效
			if _, err := membership.ApplyPassiveExpiry(user, time.Now()); err != nil {
				logger.Warn("failed to persist passive expiry",
					zap.String("request_id", reqID),
					zap.Int64("user_id", user.ID),
					zap.Error(err),
				)
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// bearerToken 从Authorization头提取Bearer令牌
func bearerToken(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireAdmin 管理员权限中间件
// admin 和 superadmin 都可以通过，具体能操作哪些目标由服务层的授权矩阵决定。
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())
			user := UserFromContext(r.Context())

			// AuthMiddleware应当已注入用户
			if user == nil {
				logger.Error("user not found in context", zap.String("request_id", reqID))
				resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
				return
			}

			if !user.IsElevated() {
				logger.Warn("insufficient permissions",
					zap.String("request_id", reqID),
					zap.Int64("user_id", user.ID),
					zap.String("user_role", string(user.Role)),
				)
				resp.Error(w, http.StatusForbidden, resp.CodeForbidden, "insufficient permissions", reqID, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
