package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/middleware"
	"github.com/JinhuaXu/flowhub/internal/resp"
	"github.com/JinhuaXu/flowhub/internal/service"
)

// WorkflowHandler 工作流相关的HTTP处理器
type WorkflowHandler struct {
	workflowService service.WorkflowService
	logger          *zap.Logger
}

// NewWorkflowHandler 创建工作流处理器实例
func NewWorkflowHandler(workflowService service.WorkflowService, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		logger:          logger,
	}
}

// pathID 从URL路径中提取数字ID，例如 /api/v1/workflows/42/download 中的 42
func pathID(path, prefix string) (int64, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return strconv.ParseInt(rest, 10, 64)
}

// List 工作流列表
// GET /api/v1/workflows?page=1&page_size=20&category=&keyword=
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	q := r.URL.Query()
	req := &domain.WorkflowListRequest{}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if v := q.Get("category"); v != "" {
		req.Category = &v
	}
	if v := q.Get("keyword"); v != "" {
		req.Keyword = &v
	}

	result, err := h.workflowService.List(req)
	if err != nil {
		if middleware.HandleTimeout(w, r) {
			return
		}
		h.logger.Error("list workflows failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list workflows failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// Get 工作流详情
// GET /api/v1/workflows/{id}
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := pathID(r.URL.Path, "/api/v1/workflows")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid workflow id", reqID, "")
		return
	}

	wf, err := h.workflowService.GetByID(id)
	if err != nil {
		if errors.Is(err, service.ErrWorkflowNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "workflow not found", reqID, "")
			return
		}

		h.logger.Error("get workflow failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get workflow failed", reqID, "")
		return
	}

	resp.OK(w, wf, reqID, "")
}

// Download 下载工作流
// POST /api/v1/workflows/{id}/download
// 需要认证；下载资格与配额在服务层判定。
func (h *WorkflowHandler) Download(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	id, err := pathID(r.URL.Path, "/api/v1/workflows")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid workflow id", reqID, "")
		return
	}

	fileURL, err := h.workflowService.Download(user, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWorkflowNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "workflow not found", reqID, "")
		case errors.Is(err, service.ErrPermissionDenied):
			resp.Error(w, http.StatusForbidden, resp.CodePermissionDenied, "membership required", reqID, "")
		case errors.Is(err, service.ErrQuotaExceeded):
			resp.Error(w, http.StatusForbidden, resp.CodeQuotaExceeded, "download quota exceeded", reqID, "")
		default:
			h.logger.Error("download workflow failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "download workflow failed", reqID, "")
		}
		return
	}

	data := map[string]any{
		"file_url":       fileURL,
		"download_count": user.DownloadCount,
		"max_downloads":  user.MaxDownloads,
	}
	resp.OK(w, &data, reqID, "")
}

// Create 创建工作流（管理端）
// POST /api/v1/admin/workflows
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.FileURL) == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "title and file_url are required", reqID, "")
		return
	}

	wf, err := h.workflowService.Create(&req)
	if err != nil {
		h.logger.Error("create workflow failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create workflow failed", reqID, "")
		return
	}

	resp.OK(w, wf, reqID, "")
}

// Update 更新工作流（管理端）
// PUT /api/v1/admin/workflows/{id}
func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := pathID(r.URL.Path, "/api/v1/admin/workflows")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid workflow id", reqID, "")
		return
	}

	var req domain.UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	wf, err := h.workflowService.Update(id, &req)
	if err != nil {
		if errors.Is(err, service.ErrWorkflowNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "workflow not found", reqID, "")
			return
		}

		h.logger.Error("update workflow failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update workflow failed", reqID, "")
		return
	}

	resp.OK(w, wf, reqID, "")
}

// Delete 删除工作流（管理端，软删除）
// DELETE /api/v1/admin/workflows/{id}
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, err := pathID(r.URL.Path, "/api/v1/admin/workflows")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid workflow id", reqID, "")
		return
	}

	if err := h.workflowService.Delete(id); err != nil {
		if errors.Is(err, service.ErrWorkflowNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "workflow not found", reqID, "")
			return
		}

		h.logger.Error("delete workflow failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "delete workflow failed", reqID, "")
		return
	}

	data := map[string]any{"id": id}
	resp.OK(w, &data, reqID, "")
}
