package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID 请求ID透传使用的头名
const HeaderRequestID = "X-Request-ID"

// 入站请求ID的最大接受长度，超长的按缺失处理，
// 防止调用方把任意长的头内容带进日志和响应。
const maxRequestIDLen = 64

// RequestID 确保每个请求都有请求ID：
// 优先复用调用方通过 X-Request-ID 传入的值，
// 缺失或超长时生成UUID，写回响应头并注入请求上下文。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), rid)))
	})
}
