// Package service 实现会员生命周期引擎。
// 所有角色/会员状态的迁移都集中在这里：显式授予、被动过期、配额扣减，
// 保证 isVip/isSvip 与 role 的一致性不在各处散落维护。
package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/repo"
)

// 会员与授权相关业务错误
var (
	ErrForbidden        = errors.New("forbidden")
	ErrPermissionDenied = errors.New("membership required")
	ErrQuotaExceeded    = errors.New("download quota exceeded")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidTier      = errors.New("invalid member tier")
)

// MembershipService 定义会员生命周期服务接口
type MembershipService interface {
	// ApplyPassiveExpiry 惰性过期检查：发现已过期的会员立即降级并落库。
	// 幂等，用相同的now重复调用不会产生进一步变化。返回是否发生了变更。
	ApplyPassiveExpiry(user *domain.User, now time.Time) (bool, error)

	// GrantMembership 授予（或清除）会员等级，重置配额周期。
	// vip/svip互斥；admin/superadmin保留原角色，只持有会员权益。
	GrantMembership(user *domain.User, tier domain.MemberTier, policy domain.ExpiryPolicy) error

	// RecordDownload 执行一次下载的权限与配额判定。
	// 普通用户返回 ErrPermissionDenied；VIP超出配额返回 ErrQuotaExceeded。
	RecordDownload(user *domain.User, wf *domain.Workflow) error

	// 管理操作，内部执行授权矩阵检查
	UpdateRole(actor *domain.User, targetID int64, newRole domain.UserRole) (*domain.User, error)
	UpdateMembership(actor *domain.User, targetID int64, tier domain.MemberTier, policy domain.ExpiryPolicy) (*domain.User, error)
	DeleteUser(actor *domain.User, targetID int64) error
}

// membershipService 是 MembershipService 接口的实现
type membershipService struct {
	userRepo   repo.UserRepository
	activities ActivityService
	logger     *zap.Logger
}

// NewMembershipService 创建会员生命周期服务实例
func NewMembershipService(userRepo repo.UserRepository, activities ActivityService, logger *zap.Logger) MembershipService {
	return &membershipService{
		userRepo:   userRepo,
		activities: activities,
		logger:     logger,
	}
}

// ApplyPassiveExpiry 被动过期检查
// 过期只影响会员标志和过期时间；特权账号（admin/superadmin）的角色不回退。
func (s *membershipService) ApplyPassiveExpiry(user *domain.User, now time.Time) (bool, error) {
	changed := false

	if user.IsVip && user.VipExpiresAt != nil && user.VipExpiresAt.Before(now) {
		user.IsVip = false
		user.VipExpiresAt = nil
		if !user.IsElevated() {
			user.Role = domain.UserRoleUser
		}
		changed = true
	}

	if user.IsSvip && user.SvipExpiresAt != nil && user.SvipExpiresAt.Before(now) {
		user.IsSvip = false
		user.SvipExpiresAt = nil
		if !user.IsElevated() {
			user.Role = domain.UserRoleUser
		}
		changed = true
	}

	if !changed {
		return false, nil
	}

	// 同步落库，调用方在检查之后不能再基于过期前的权限提供服务
	if err := s.userRepo.Update(user); err != nil {
		return false, fmt.Errorf("persist expiry downgrade: %w", err)
	}

	s.logger.Info("membership expired",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)

	return true, nil
}

// resolveExpiry 根据过期策略计算过期时间
// days == -1 映射到远期哨兵值而不是null，降级比较始终有效。
func resolveExpiry(policy domain.ExpiryPolicy, now time.Time) time.Time {
	if policy.At != nil {
		return *policy.At
	}
	if policy.Days == -1 {
		return domain.UnlimitedExpiry
	}
	days := policy.Days
	if days <= 0 {
		days = 30
	}
	return now.AddDate(0, 0, days)
}

// GrantMembership 授予会员等级
func (s *membershipService) GrantMembership(user *domain.User, tier domain.MemberTier, policy domain.ExpiryPolicy) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}

	now := time.Now()

	switch tier {
	case domain.MemberTierVip:
		expiry := resolveExpiry(policy, now)
		user.IsVip = true
		user.IsSvip = false
		user.VipExpiresAt = &expiry
		user.SvipExpiresAt = nil
		user.MaxDownloads = domain.VipMaxDownloads
	case domain.MemberTierSvip:
		expiry := resolveExpiry(policy, now)
		user.IsVip = false
		user.IsSvip = true
		user.VipExpiresAt = nil
		user.SvipExpiresAt = &expiry
		user.MaxDownloads = 0 // 0表示不限量
	case domain.MemberTierNone:
		user.IsVip = false
		user.IsSvip = false
		user.VipExpiresAt = nil
		user.SvipExpiresAt = nil
		user.MaxDownloads = 0
	}

	// 每次授予都是新的配额周期
	user.DownloadCount = 0

	// 特权账号保留原角色，仅持有会员权益
	if !user.IsElevated() {
		switch tier {
		case domain.MemberTierVip:
			user.Role = domain.UserRoleVip
		case domain.MemberTierSvip:
			user.Role = domain.UserRoleSvip
		case domain.MemberTierNone:
			user.Role = domain.UserRoleUser
		}
	}

	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("persist membership grant: %w", err)
	}

	switch tier {
	case domain.MemberTierVip:
		s.activities.Record(&domain.Activity{
			UserID:   user.ID,
			Username: user.Username,
			Type:     domain.ActivityVipUpgrade,
			Action:   "开通了VIP会员",
		})
	case domain.MemberTierSvip:
		s.activities.Record(&domain.Activity{
			UserID:   user.ID,
			Username: user.Username,
			Type:     domain.ActivitySvipUpgrade,
			Action:   "开通了SVIP会员",
		})
	}

	s.logger.Info("membership granted",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("tier", string(tier)),
		zap.String("role", string(user.Role)),
	)

	return nil
}

// RecordDownload 下载判定与配额扣减
func (s *membershipService) RecordDownload(user *domain.User, wf *domain.Workflow) error {
	if !user.CanDownload() {
		return ErrPermissionDenied
	}

	// 仅VIP受配额约束，SVIP和管理员不限量
	if user.Role == domain.UserRoleVip {
		max := user.MaxDownloads
		if max <= 0 {
			max = domain.VipMaxDownloads
		}

		ok, err := s.userRepo.IncrementDownloadCount(user.ID, max)
		if err != nil {
			return fmt.Errorf("increment download count: %w", err)
		}
		if !ok {
			return ErrQuotaExceeded
		}
		user.DownloadCount++
	}

	s.activities.Record(&domain.Activity{
		UserID:        user.ID,
		Username:      user.Username,
		Type:          domain.ActivityDownload,
		Action:        fmt.Sprintf("下载了工作流: %s", wf.Title),
		WorkflowID:    &wf.ID,
		WorkflowTitle: wf.Title,
	})

	return nil
}

// UpdateRole 管理员修改用户角色
// superadmin 角色不能经此路径授予，superadmin 账号也不能被降级。
func (s *membershipService) UpdateRole(actor *domain.User, targetID int64, newRole domain.UserRole) (*domain.User, error) {
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}
	if !domain.CanAssignRole(actor, newRole) {
		return nil, ErrForbidden
	}

	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return nil, fmt.Errorf("get target user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	if !domain.CanModify(actor, target) {
		return nil, ErrForbidden
	}
	// 超级管理员不可被降级
	if target.IsSuper() {
		return nil, ErrForbidden
	}

	switch newRole {
	case domain.UserRoleVip:
		if !target.IsVip {
			if err := s.GrantMembership(target, domain.MemberTierVip, domain.ExpiryPolicy{Days: 30}); err != nil {
				return nil, err
			}
		}
	case domain.UserRoleSvip:
		if !target.IsSvip {
			if err := s.GrantMembership(target, domain.MemberTierSvip, domain.ExpiryPolicy{Days: 30}); err != nil {
				return nil, err
			}
		}
	case domain.UserRoleUser, domain.UserRoleAdmin:
		if err := s.GrantMembership(target, domain.MemberTierNone, domain.ExpiryPolicy{}); err != nil {
			return nil, err
		}
	}

	// 显式的角色指定覆盖授予逻辑对特权账号的保留
	if target.Role != newRole {
		target.Role = newRole
		target.IsVip = newRole == domain.UserRoleVip
		target.IsSvip = newRole == domain.UserRoleSvip
		if err := s.userRepo.Update(target); err != nil {
			return nil, fmt.Errorf("persist role update: %w", err)
		}
	}

	s.activities.Record(&domain.Activity{
		UserID:   actor.ID,
		Username: actor.Username,
		Type:     domain.ActivityAdminAction,
		Action:   fmt.Sprintf("将用户 %s 的角色调整为 %s", target.Username, newRole),
	})

	s.logger.Info("user role updated",
		zap.Int64("actor_id", actor.ID),
		zap.Int64("target_id", target.ID),
		zap.String("new_role", string(newRole)),
	)

	return target, nil
}

// UpdateMembership 管理员修改用户会员状态
func (s *membershipService) UpdateMembership(actor *domain.User, targetID int64, tier domain.MemberTier, policy domain.ExpiryPolicy) (*domain.User, error) {
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}

	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return nil, fmt.Errorf("get target user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	if !domain.CanModify(actor, target) {
		return nil, ErrForbidden
	}

	if err := s.GrantMembership(target, tier, policy); err != nil {
		return nil, err
	}

	return target, nil
}

// DeleteUser 管理员删除用户
// 超级管理员账号任何人都不能删除。
func (s *membershipService) DeleteUser(actor *domain.User, targetID int64) error {
	target, err := s.userRepo.GetByID(targetID)
	if err != nil {
		return fmt.Errorf("get target user: %w", err)
	}
	if target == nil {
		return ErrUserNotFound
	}

	if !domain.CanDelete(actor, target) {
		return ErrForbidden
	}

	if err := s.userRepo.Delete(targetID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.activities.Record(&domain.Activity{
		UserID:   actor.ID,
		Username: actor.Username,
		Type:     domain.ActivityAdminAction,
		Action:   fmt.Sprintf("删除了用户 %s", target.Username),
	})

	s.logger.Info("user deleted",
		zap.Int64("actor_id", actor.ID),
		zap.Int64("target_id", targetID),
	)

	return nil
}
