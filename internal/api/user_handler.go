// Package api 提供HTTP API处理器实现。
// API层负责处理HTTP请求/响应，进行数据验证和格式转换。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/middleware"
	"github.com/JinhuaXu/flowhub/internal/resp"
	"github.com/JinhuaXu/flowhub/internal/service"
)

// UserHandler 用户相关的HTTP处理器
type UserHandler struct {
	userService service.UserService
	jwtService  service.JWTService
	logger      *zap.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(userService service.UserService, jwtService service.JWTService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// Register 处理用户注册请求
// POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if err := validateRegisterRequest(&req); err != nil {
		h.logger.Warn("validation failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	user, err := h.userService.Register(&req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			resp.Error(w, http.StatusConflict, resp.CodeConflict, "username or email already exists", reqID, "")
			return
		}

		h.logger.Error("register failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "register failed", reqID, "")
		return
	}

	resp.OK(w, user, reqID, "")
}

// Login 处理用户登录请求
// POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if req.Identifier == "" || req.Password == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "identifier and password are required", reqID, "")
		return
	}

	user, err := h.userService.Login(&req)
	if err != nil {
		// 账号不存在和密码错误统一返回同一个消息
		if errors.Is(err, service.ErrInvalidCredentials) {
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid credentials", reqID, "")
			return
		}

		h.logger.Error("login failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "login failed", reqID, "")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		h.logger.Error("failed to generate tokens", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "token generation failed", reqID, "")
		return
	}

	loginResp := &domain.LoginResponse{
		User:         user,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
	}

	resp.OK(w, loginResp, reqID, "")
}

// RefreshToken 刷新访问令牌
// POST /api/v1/auth/refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	tokenPair, err := h.jwtService.RefreshTokenPair(req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrTokenExpired) {
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "refresh token expired", reqID, "")
			return
		}
		if errors.Is(err, service.ErrInvalidToken) {
			resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid refresh token", reqID, "")
			return
		}

		h.logger.Error("refresh token failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "refresh token failed", reqID, "")
		return
	}

	resp.OK(w, tokenPair, reqID, "")
}

// GetProfile 获取当前用户信息
// GET /api/v1/users/profile
// 认证中间件已经加载了最新的用户状态并做过被动过期检查
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.logger.Error("user not found in context", zap.String("request_id", reqID))
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	resp.OK(w, user, reqID, "")
}

// validateRegisterRequest 验证注册请求
func validateRegisterRequest(req *domain.RegisterRequest) error {
	if len(req.Username) < 3 || len(req.Username) > 32 {
		return errors.New("username must be between 3 and 32 characters")
	}

	if len(req.Password) < 6 || len(req.Password) > 72 {
		return errors.New("password must be between 6 and 72 characters")
	}

	if !isValidEmail(req.Email) {
		return errors.New("invalid email format")
	}

	return nil
}

// isValidEmail 简单的邮箱格式验证
func isValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.Index(email, "@")
	return at > 0 && strings.Contains(email[at:], ".")
}
