package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/repo"
)

// 工作流相关业务错误
var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowService 定义工作流市场服务接口
type WorkflowService interface {
	List(req *domain.WorkflowListRequest) (*domain.WorkflowListResponse, error)
	GetByID(id int64) (*domain.Workflow, error)
	Create(req *domain.CreateWorkflowRequest) (*domain.Workflow, error)
	Update(id int64, req *domain.UpdateWorkflowRequest) (*domain.Workflow, error)
	Delete(id int64) error
	Count() (int64, error)

	// Download 执行完整的下载用例：可用性检查、会员判定与配额扣减、
	// 资源侧下载计数，返回文件引用。
	Download(user *domain.User, id int64) (string, error)
}

// workflowService 是 WorkflowService 接口的实现
type workflowService struct {
	workflowRepo repo.WorkflowRepository
	membership   MembershipService
	logger       *zap.Logger
}

// NewWorkflowService 创建工作流服务实例
func NewWorkflowService(workflowRepo repo.WorkflowRepository, membership MembershipService, logger *zap.Logger) WorkflowService {
	return &workflowService{
		workflowRepo: workflowRepo,
		membership:   membership,
		logger:       logger,
	}
}

// List 分页查询工作流列表
func (s *workflowService) List(req *domain.WorkflowListRequest) (*domain.WorkflowListResponse, error) {
	workflows, total, err := s.workflowRepo.List(req)
	if err != nil {
		s.logger.Error("failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return &domain.WorkflowListResponse{
		Workflows: workflows,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// GetByID 获取工作流详情并递增浏览次数
func (s *workflowService) GetByID(id int64) (*domain.Workflow, error) {
	wf, err := s.workflowRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get workflow", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, ErrWorkflowNotFound
	}

	// 浏览计数失败不影响详情返回
	if err := s.workflowRepo.IncrementViewCount(id); err != nil {
		s.logger.Warn("failed to increment view count", zap.Int64("id", id), zap.Error(err))
	} else {
		wf.ViewCount++
	}

	return wf, nil
}

// Create 创建工作流
func (s *workflowService) Create(req *domain.CreateWorkflowRequest) (*domain.Workflow, error) {
	wf := &domain.Workflow{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Author:      req.Author,
		FileURL:     req.FileURL,
		CoverURL:    req.CoverURL,
		Status:      domain.WorkflowStatusActive,
	}

	if err := s.workflowRepo.Create(wf); err != nil {
		s.logger.Error("failed to create workflow", zap.Error(err))
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	s.logger.Info("workflow created",
		zap.Int64("id", wf.ID),
		zap.String("title", wf.Title),
	)

	return wf, nil
}

// Update 更新工作流，nil字段保持原值
func (s *workflowService) Update(id int64, req *domain.UpdateWorkflowRequest) (*domain.Workflow, error) {
	wf, err := s.workflowRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, ErrWorkflowNotFound
	}

	if req.Title != nil {
		wf.Title = *req.Title
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.Category != nil {
		wf.Category = *req.Category
	}
	if req.Author != nil {
		wf.Author = *req.Author
	}
	if req.FileURL != nil {
		wf.FileURL = *req.FileURL
	}
	if req.CoverURL != nil {
		wf.CoverURL = *req.CoverURL
	}

	if err := s.workflowRepo.Update(wf); err != nil {
		s.logger.Error("failed to update workflow", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("update workflow: %w", err)
	}

	return wf, nil
}

// Delete 软删除工作流
func (s *workflowService) Delete(id int64) error {
	wf, err := s.workflowRepo.GetByID(id)
	if err != nil {
		return fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return ErrWorkflowNotFound
	}

	if err := s.workflowRepo.Delete(id); err != nil {
		s.logger.Error("failed to delete workflow", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("delete workflow: %w", err)
	}

	s.logger.Info("workflow deleted", zap.Int64("id", id))
	return nil
}

// Count 统计在架工作流数量（看板用）
func (s *workflowService) Count() (int64, error) {
	return s.workflowRepo.Count()
}

// Download 下载工作流
func (s *workflowService) Download(user *domain.User, id int64) (string, error) {
	wf, err := s.workflowRepo.GetByID(id)
	if err != nil {
		return "", fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil || !wf.IsAvailable() {
		return "", ErrWorkflowNotFound
	}

	// 会员判定与配额扣减，失败时不产生任何资源侧副作用
	if err := s.membership.RecordDownload(user, wf); err != nil {
		return "", err
	}

	// 资源侧计数是统计口径，失败不回滚已扣减的配额
	if err := s.workflowRepo.IncrementDownloadCount(id); err != nil {
		s.logger.Warn("failed to increment workflow download count",
			zap.Int64("id", id), zap.Error(err))
	}

	s.logger.Info("workflow downloaded",
		zap.Int64("workflow_id", id),
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	return wf.FileURL, nil
}
