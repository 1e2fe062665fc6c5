// Package service 提供业务逻辑层实现。
// 服务层负责协调领域对象和仓储，实现具体的业务用例。
package service

import (
	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/repo"
)

// ActivityService 定义活动审计服务接口
// 记录是尽力而为的：写入失败只打日志，绝不让被审计的操作失败。
type ActivityService interface {
	Record(activity *domain.Activity)
	Recent(limit int) ([]*domain.Activity, error)
	CountDownloads() (int64, error)
}

// activityService 是 ActivityService 接口的实现
type activityService struct {
	activityRepo repo.ActivityRepository
	logger       *zap.Logger
}

// NewActivityService 创建活动审计服务实例
func NewActivityService(activityRepo repo.ActivityRepository, logger *zap.Logger) ActivityService {
	return &activityService{
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// Record 追加一条活动记录，失败时吞掉错误
func (s *activityService) Record(activity *domain.Activity) {
	if err := s.activityRepo.Append(activity); err != nil {
		s.logger.Warn("failed to record activity",
			zap.Int64("user_id", activity.UserID),
			zap.String("type", string(activity.Type)),
			zap.Error(err),
		)
	}
}

// Recent 获取最近的活动记录，最新的在前
func (s *activityService) Recent(limit int) ([]*domain.Activity, error) {
	return s.activityRepo.Recent(limit)
}

// CountDownloads 统计下载类活动总数
func (s *activityService) CountDownloads() (int64, error) {
	return s.activityRepo.CountByType(domain.ActivityDownload)
}
