// Package domain 定义业务领域模型和核心业务规则。
// 领域模型是业务逻辑的核心，独立于外部依赖（数据库、HTTP等）。
package domain

import (
	"time"
)

// UserRole 定义用户角色类型
// 角色是封闭枚举，边界校验一次，下游不再重复解析。
type UserRole string

const (
	UserRoleSuperAdmin UserRole = "superadmin" // 超级管理员
	UserRoleAdmin      UserRole = "admin"      // 管理员
	UserRoleUser       UserRole = "user"       // 普通用户
	UserRoleVip        UserRole = "vip"        // VIP会员
	UserRoleSvip       UserRole = "svip"       // SVIP会员
)

// Valid 判断角色是否为合法枚举值
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleSuperAdmin, UserRoleAdmin, UserRoleUser, UserRoleVip, UserRoleSvip:
		return true
	}
	return false
}

// MemberTier 定义会员等级（授予操作的目标档位）
type MemberTier string

const (
	MemberTierNone MemberTier = "none" // 清除会员
	MemberTierVip  MemberTier = "vip"  // VIP：每周期限额下载
	MemberTierSvip MemberTier = "svip" // SVIP：不限量下载
)

// Valid 判断会员等级是否为合法枚举值
func (t MemberTier) Valid() bool {
	switch t {
	case MemberTierNone, MemberTierVip, MemberTierSvip:
		return true
	}
	return false
}

// VipMaxDownloads VIP会员单周期下载上限
const VipMaxDownloads = 10

// UnlimitedExpiry 无限时长会员的过期时间哨兵值。
// 使用远期时间而不是null，保证降级逻辑始终有明确的比较对象。
var UnlimitedExpiry = time.Date(2100, time.December, 31, 23, 59, 59, 0, time.UTC)

// ExpiryPolicy 表示会员过期策略
// At 非空时为显式过期时间；否则按 Days 天数计算，Days == -1 表示无限时长。
type ExpiryPolicy struct {
	Days int        `json:"days"`
	At   *time.Time `json:"at,omitempty"`
}

// User 表示用户领域模型
type User struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"` // JSON序列化时忽略密码哈希
	Role          UserRole   `json:"role"`
	IsSuperAdmin  bool       `json:"is_super_admin"`
	IsVip         bool       `json:"is_vip"`
	IsSvip        bool       `json:"is_svip"`
	VipExpiresAt  *time.Time `json:"vip_expires_at"`
	SvipExpiresAt *time.Time `json:"svip_expires_at"`
	DownloadCount int        `json:"download_count"`
	MaxDownloads  int        `json:"max_downloads"` // VIP为10，0表示不限量
	Avatar        string     `json:"avatar"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsElevated 判断账号是否为特权账号（admin/superadmin）。
// 特权账号不会被过期逻辑或会员授予逻辑改写角色。
func (u *User) IsElevated() bool {
	return u.Role == UserRoleAdmin || u.Role == UserRoleSuperAdmin || u.IsSuperAdmin
}

// IsSuper 判断账号是否为超级管理员
func (u *User) IsSuper() bool {
	return u.Role == UserRoleSuperAdmin || u.IsSuperAdmin
}

// CanDownload 判断角色是否具备下载能力（配额另行检查）
func (u *User) CanDownload() bool {
	switch u.Role {
	case UserRoleVip, UserRoleSvip, UserRoleAdmin, UserRoleSuperAdmin:
		return true
	}
	return false
}

// RegisterRequest 表示用户注册请求
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 表示用户登录请求
// Identifier 可以是用户名或邮箱。
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse 表示登录成功的响应
type LoginResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenRequest 表示刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateRoleRequest 表示管理员修改用户角色的请求
type UpdateRoleRequest struct {
	UserID int64    `json:"user_id"`
	Role   UserRole `json:"role"`
}

// UpdateMembershipRequest 表示管理员修改会员状态的请求
type UpdateMembershipRequest struct {
	UserID    int64      `json:"user_id"`
	Tier      MemberTier `json:"tier"`
	Days      int        `json:"days"`       // 0取默认30天，-1表示无限
	ExpiresAt *time.Time `json:"expires_at"` // 显式过期时间，优先于Days
}

// UserListRequest 表示用户列表查询请求
type UserListRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// UserListResponse 表示用户列表查询响应
type UserListResponse struct {
	Users    []*User `json:"users"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}
