// Package resp 提供统一的HTTP响应格式。
// 所有API都返回 {code, message, data, request_id} 结构，
// 便于前端统一处理成功与失败分支。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务码定义。0表示成功，非0表示各类失败。
const (
	CodeOK               = 0
	CodeInvalidParam     = 40001 // 参数错误
	CodeUnauthorized     = 40101 // 未认证/令牌无效
	CodeForbidden        = 40301 // 权限矩阵拒绝
	CodePermissionDenied = 40302 // 角色不具备下载能力
	CodeQuotaExceeded    = 40303 // 下载配额用尽
	CodeNotFound         = 40401 // 资源不存在
	CodeConflict         = 40901 // 用户名或邮箱冲突
	CodeTooManyRequests  = 42901 // 触发限流
	CodeTimeout          = 50401 // 请求超时
	CodeInternalError    = 50000 // 内部错误
)

// Response 统一响应结构
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// HTTPStatusFromCode 将业务码映射为HTTP状态码
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodePermissionDenied, CodeQuotaExceeded:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON 写出JSON响应
func WriteJSON(w http.ResponseWriter, status int, body *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK 写出成功响应
func OK(w http.ResponseWriter, data any, requestID, message string) {
	if message == "" {
		message = "ok"
	}
	WriteJSON(w, http.StatusOK, &Response{
		Code:      CodeOK,
		Message:   message,
		Data:      data,
		RequestID: requestID,
	})
}

// Error 写出失败响应
func Error(w http.ResponseWriter, status, code int, message, requestID, detail string) {
	WriteJSON(w, status, &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Detail:    detail,
	})
}
