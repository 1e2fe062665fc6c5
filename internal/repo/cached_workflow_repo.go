// Package repo 提供带缓存的工作流仓储实现
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/JinhuaXu/flowhub/internal/cache"
	"github.com/JinhuaXu/flowhub/internal/domain"
)

// CachedWorkflowRepository 带缓存的工作流仓储
// 详情页读多写少，用缓存装饰器挡掉大部分数据库查询。
type CachedWorkflowRepository struct {
	repo  WorkflowRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedWorkflowRepository 创建带缓存的工作流仓储
func NewCachedWorkflowRepository(repo WorkflowRepository, cache cache.Cache, ttl time.Duration) WorkflowRepository {
	return &CachedWorkflowRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

func (r *CachedWorkflowRepository) cacheKey(id int64) string {
	return fmt.Sprintf("workflow:%d", id)
}

// Create 创建工作流
func (r *CachedWorkflowRepository) Create(wf *domain.Workflow) error {
	return r.repo.Create(wf)
}

// GetByID 根据ID获取工作流（带缓存）
func (r *CachedWorkflowRepository) GetByID(id int64) (*domain.Workflow, error) {
	ctx := context.Background()
	key := r.cacheKey(id)

	var wf domain.Workflow
	if err := r.cache.Get(ctx, key, &wf); err == nil {
		return &wf, nil
	}

	result, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	// 缓存写入失败不影响读路径
	_ = r.cache.Set(ctx, key, result, r.ttl)

	return result, nil
}

// Update 更新工作流（清除缓存）
func (r *CachedWorkflowRepository) Update(wf *domain.Workflow) error {
	if err := r.repo.Update(wf); err != nil {
		return err
	}
	_ = r.cache.Del(context.Background(), r.cacheKey(wf.ID))
	return nil
}

// Delete 删除工作流（清除缓存）
func (r *CachedWorkflowRepository) Delete(id int64) error {
	if err := r.repo.Delete(id); err != nil {
		return err
	}
	_ = r.cache.Del(context.Background(), r.cacheKey(id))
	return nil
}

// List 列表查询不走缓存，过滤组合太多，命中率低
func (r *CachedWorkflowRepository) List(req *domain.WorkflowListRequest) ([]*domain.Workflow, int64, error) {
	return r.repo.List(req)
}

// IncrementViewCount 递增浏览次数
// 计数器允许短暂滞后，缓存到期后自然追平。
func (r *CachedWorkflowRepository) IncrementViewCount(id int64) error {
	return r.repo.IncrementViewCount(id)
}

// IncrementDownloadCount 递增下载次数并清除缓存
func (r *CachedWorkflowRepository) IncrementDownloadCount(id int64) error {
	if err := r.repo.IncrementDownloadCount(id); err != nil {
		return err
	}
	_ = r.cache.Del(context.Background(), r.cacheKey(id))
	return nil
}

// Count 获取工作流总数
func (r *CachedWorkflowRepository) Count() (int64, error) {
	return r.repo.Count()
}
