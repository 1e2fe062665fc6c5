package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/middleware"
	"github.com/JinhuaXu/flowhub/internal/resp"
	"github.com/JinhuaXu/flowhub/internal/service"
)

// AdminHandler 管理端HTTP处理器
// 路由层只保证调用方是 admin/superadmin，
// 具体能对哪些目标做什么由服务层的授权矩阵判定。
type AdminHandler struct {
	userService       service.UserService
	membershipService service.MembershipService
	activityService   service.ActivityService
	workflowService   service.WorkflowService
	logger            *zap.Logger
}

// NewAdminHandler 创建管理端处理器实例
func NewAdminHandler(
	userService service.UserService,
	membershipService service.MembershipService,
	activityService service.ActivityService,
	workflowService service.WorkflowService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		userService:       userService,
		membershipService: membershipService,
		activityService:   activityService,
		workflowService:   workflowService,
		logger:            logger,
	}
}

// ListUsers 用户列表
// GET /api/v1/admin/users?page=1&page_size=20
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	q := r.URL.Query()
	req := &domain.UserListRequest{}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	result, err := h.userService.ListUsers(req)
	if err != nil {
		h.logger.Error("list users failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list users failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// UpdateUserRole 修改用户角色
// PUT /api/v1/admin/users/role
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := middleware.UserFromContext(r.Context())
	if actor == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	var req domain.UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.UserID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "user_id is required", reqID, "")
		return
	}

	target, err := h.membershipService.UpdateRole(actor, req.UserID, req.Role)
	if err != nil {
		h.writeMembershipError(w, reqID, "update role failed", err)
		return
	}

	resp.OK(w, target, reqID, "")
}

// UpdateUserMembership 修改用户会员状态
// PUT /api/v1/admin/users/membership
func (h *AdminHandler) UpdateUserMembership(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := middleware.UserFromContext(r.Context())
	if actor == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	var req domain.UpdateMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.UserID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "user_id is required", reqID, "")
		return
	}

	policy := domain.ExpiryPolicy{Days: req.Days, At: req.ExpiresAt}
	target, err := h.membershipService.UpdateMembership(actor, req.UserID, req.Tier, policy)
	if err != nil {
		h.writeMembershipError(w, reqID, "update membership failed", err)
		return
	}

	resp.OK(w, target, reqID, "")
}

// DeleteUser 删除用户
// DELETE /api/v1/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := middleware.UserFromContext(r.Context())
	if actor == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	id, err := pathID(r.URL.Path, "/api/v1/admin/users")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid user id", reqID, "")
		return
	}

	if err := h.membershipService.DeleteUser(actor, id); err != nil {
		h.writeMembershipError(w, reqID, "delete user failed", err)
		return
	}

	data := map[string]any{"id": id}
	resp.OK(w, &data, reqID, "")
}

// Dashboard 管理端数据看板
// GET /api/v1/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	userCount, err := h.userService.CountUsers()
	if err != nil {
		h.logger.Error("dashboard user count failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "dashboard failed", reqID, "")
		return
	}

	workflowCount, err := h.workflowService.Count()
	if err != nil {
		h.logger.Error("dashboard workflow count failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "dashboard failed", reqID, "")
		return
	}

	vipCount, err := h.userService.CountUsersByRole(domain.UserRoleVip)
	if err != nil {
		h.logger.Error("dashboard vip count failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "dashboard failed", reqID, "")
		return
	}

	svipCount, err := h.userService.CountUsersByRole(domain.UserRoleSvip)
	if err != nil {
		h.logger.Error("dashboard svip count failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "dashboard failed", reqID, "")
		return
	}

	downloads, err := h.activityService.CountDownloads()
	if err != nil {
		h.logger.Error("dashboard download count failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "dashboard failed", reqID, "")
		return
	}

	activities, err := h.activityService.Recent(10)
	if err != nil {
		h.logger.Error("dashboard activities failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "dashboard failed", reqID, "")
		return
	}

	data := map[string]any{
		"total_users":       userCount,
		"vip_users":         vipCount,
		"svip_users":        svipCount,
		"total_workflows":   workflowCount,
		"total_downloads":   downloads,
		"recent_activities": activities,
	}
	resp.OK(w, &data, reqID, "")
}

// writeMembershipError 将服务层的会员/授权错误映射为HTTP响应
func (h *AdminHandler) writeMembershipError(w http.ResponseWriter, reqID, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "user not found", reqID, "")
	case errors.Is(err, service.ErrForbidden):
		resp.Error(w, http.StatusForbidden, resp.CodeForbidden, "operation not allowed", reqID, "")
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrInvalidTier):
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
	default:
		h.logger.Error(msg, zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, msg, reqID, "")
	}
}
