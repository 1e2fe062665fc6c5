package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/repo"
)

// 定义业务错误
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserService 定义用户服务接口
type UserService interface {
	Register(req *domain.RegisterRequest) (*domain.User, error)
	Login(req *domain.LoginRequest) (*domain.User, error)
	GetUserByID(id int64) (*domain.User, error)
	ListUsers(req *domain.UserListRequest) (*domain.UserListResponse, error)
	CountUsers() (int64, error)
	CountUsersByRole(role domain.UserRole) (int64, error)
}

// userService 是 UserService 接口的实现
type userService struct {
	userRepo   repo.UserRepository
	activities ActivityService
	logger     *zap.Logger
}

// NewUserService 创建用户服务实例
func NewUserService(userRepo repo.UserRepository, activities ActivityService, logger *zap.Logger) UserService {
	return &userService{
		userRepo:   userRepo,
		activities: activities,
		logger:     logger,
	}
}

// Register 用户注册
// 业务规则：
// 1. 用户名和邮箱不能重复，邮箱统一小写存储
// 2. 密码进行bcrypt哈希
// 3. 新用户默认为普通用户角色
func (s *userService) Register(req *domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))

	// 验证用户名是否已存在
	existingUser, err := s.userRepo.GetByUsername(username)
	if err != nil {
		s.logger.Error("failed to check username", zap.Error(err))
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUserExists
	}

	// 验证邮箱是否已存在
	existingUser, err = s.userRepo.GetByEmail(email)
	if err != nil {
		s.logger.Error("failed to check email", zap.Error(err))
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUserExists
	}

	// 哈希密码
	// bcrypt自动加盐，比较时具有时间恒定特性
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// 创建用户对象
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         domain.UserRoleUser, // 新用户默认为普通用户
		Avatar:       defaultAvatar(username),
	}

	// 保存到数据库
	if err := s.userRepo.Create(user); err != nil {
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.activities.Record(&domain.Activity{
		UserID:   user.ID,
		Username: user.Username,
		Type:     domain.ActivityRegister,
		Action:   "注册成为新用户",
	})

	s.logger.Info("user registered successfully",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)

	return user, nil
}

// defaultAvatar 生成默认头像地址，按用户名取确定性图案
func defaultAvatar(username string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(username)
}

// Login 用户登录
// 支持用户名或邮箱登录；用户不存在和密码错误返回同一个错误，
// 不向调用方泄露账号是否存在。
func (s *userService) Login(req *domain.LoginRequest) (*domain.User, error) {
	user, err := s.userRepo.GetByIdentity(req.Identifier)
	if err != nil {
		s.logger.Error("failed to get user by identity", zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// 验证密码
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to compare password", zap.Error(err))
		return nil, fmt.Errorf("compare password: %w", err)
	}

	s.logger.Info("user logged in successfully",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)

	return user, nil
}

// GetUserByID 根据ID获取用户
func (s *userService) GetUserByID(id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get user by id", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// ListUsers 分页查询用户列表
func (s *userService) ListUsers(req *domain.UserListRequest) (*domain.UserListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	users, total, err := s.userRepo.ListUsers((page-1)*pageSize, pageSize)
	if err != nil {
		s.logger.Error("failed to list users", zap.Error(err))
		return nil, fmt.Errorf("list users: %w", err)
	}

	return &domain.UserListResponse{
		Users:    users,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// CountUsers 统计用户总数（看板用）
func (s *userService) CountUsers() (int64, error) {
	return s.userRepo.Count()
}

// CountUsersByRole 按角色统计用户数量（看板用）
func (s *userService) CountUsersByRole(role domain.UserRole) (int64, error) {
	return s.userRepo.CountByRole(role)
}
