// Package limiter 限流中间件实现
package limiter

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/middleware"
	"github.com/JinhuaXu/flowhub/internal/resp"
)

// clientIP 提取客户端IP，优先信任反向代理头
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Middleware 按客户端IP限流的HTTP中间件
// 限流器故障时放行请求，限流是保护手段，不能成为单点。
func Middleware(l Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.RequestIDFromContext(r.Context())
			key := "ip:" + clientIP(r)

			result, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable",
					zap.String("request_id", reqID),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			if !result.Allowed {
				if result.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
				}
				logger.Warn("rate limit reached",
					zap.String("request_id", reqID),
					zap.String("key", key),
					zap.Int64("total_requests", result.TotalRequests),
				)
				resp.Error(w, http.StatusTooManyRequests, resp.CodeTooManyRequests, "too many requests", reqID, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
