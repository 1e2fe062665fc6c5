// Package repo 提供数据访问层实现，负责与数据库交互。
// 仓储模式（Repository Pattern）将数据访问逻辑与业务逻辑分离，
// 使得业务逻辑不依赖于具体的数据存储实现。
package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/JinhuaXu/flowhub/internal/database"
	"github.com/JinhuaXu/flowhub/internal/domain"
)

// UserRepository 定义用户数据访问接口
// 使用接口可以方便单元测试时进行模拟（mock）
type UserRepository interface {
	Create(user *domain.User) error
	GetByID(id int64) (*domain.User, error)
	GetByUsername(username string) (*domain.User, error)
	GetByEmail(email string) (*domain.User, error)
	// GetByIdentity 按用户名或邮箱查找（登录入口）
	GetByIdentity(identity string) (*domain.User, error)
	Update(user *domain.User) error
	Delete(id int64) error

	// IncrementDownloadCount 原子地递增下载计数。
	// 仅当 download_count < max 时生效，返回是否递增成功，
	// 并发下载不会把计数推过上限。
	IncrementDownloadCount(id int64, max int) (bool, error)

	// 管理员专用方法
	ListUsers(offset, limit int) ([]*domain.User, int64, error)
	Count() (int64, error)
	CountByRole(role domain.UserRole) (int64, error)
}

// userRepo 是 UserRepository 接口的数据库实现
type userRepo struct {
	db *database.DB
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, username, email, password_hash, role, is_super_admin, is_vip, is_svip,
	vip_expires_at, svip_expires_at, download_count, max_downloads, avatar, created_at, updated_at`

// scanUser 从单行结果扫描用户
func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsSuperAdmin,
		&user.IsVip,
		&user.IsSvip,
		&user.VipExpiresAt,
		&user.SvipExpiresAt,
		&user.DownloadCount,
		&user.MaxDownloads,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return user, nil
}

// Create 创建新用户
// 密码哈希在服务层处理，这里只负责落库。
func (r *userRepo) Create(user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, is_super_admin, is_vip, is_svip,
			vip_expires_at, svip_expires_at, download_count, max_downloads, avatar)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsSuperAdmin,
		user.IsVip,
		user.IsSvip,
		user.VipExpiresAt,
		user.SvipExpiresAt,
		user.DownloadCount,
		user.MaxDownloads,
		user.Avatar,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID 根据ID查询用户
func (r *userRepo) GetByID(id int64) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = ?`, userColumns)
	user, err := scanUser(r.db.QueryRow(query, id))
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetByUsername 根据用户名查询用户
func (r *userRepo) GetByUsername(username string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = ?`, userColumns)
	user, err := scanUser(r.db.QueryRow(query, username))
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// GetByEmail 根据邮箱查询用户
// 邮箱落库时统一为小写，这里按小写匹配实现大小写不敏感。
func (r *userRepo) GetByEmail(email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = ?`, userColumns)
	user, err := scanUser(r.db.QueryRow(query, strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// GetByIdentity 按用户名或邮箱查询用户
func (r *userRepo) GetByIdentity(identity string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = ? OR email = ? LIMIT 1`, userColumns)
	user, err := scanUser(r.db.QueryRow(query, identity, strings.ToLower(identity)))
	if err != nil {
		return nil, fmt.Errorf("get user by identity: %w", err)
	}
	return user, nil
}

// Update 更新用户（全量字段）
func (r *userRepo) Update(user *domain.User) error {
	query := `
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, role = ?, is_super_admin = ?,
			is_vip = ?, is_svip = ?, vip_expires_at = ?, svip_expires_at = ?,
			download_count = ?, max_downloads = ?, avatar = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsSuperAdmin,
		user.IsVip,
		user.IsSvip,
		user.VipExpiresAt,
		user.SvipExpiresAt,
		user.DownloadCount,
		user.MaxDownloads,
		user.Avatar,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// Delete 删除用户（管理员显式操作，硬删除）
func (r *userRepo) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// IncrementDownloadCount 原子递增下载计数
// UPDATE 自带条件判断，数据库的单行更新语义就是并发控制边界。
func (r *userRepo) IncrementDownloadCount(id int64, max int) (bool, error) {
	query := `
		UPDATE users
		SET download_count = download_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND download_count < ?
	`

	result, err := r.db.Exec(query, id, max)
	if err != nil {
		return false, fmt.Errorf("increment download count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}

	return affected > 0, nil
}

// ListUsers 分页获取用户列表（管理员专用）
func (r *userRepo) ListUsers(offset, limit int) ([]*domain.User, int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM users
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, userColumns)

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.IsSuperAdmin,
			&user.IsVip,
			&user.IsSvip,
			&user.VipExpiresAt,
			&user.SvipExpiresAt,
			&user.DownloadCount,
			&user.MaxDownloads,
			&user.Avatar,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

// Count 获取用户总数
func (r *userRepo) Count() (int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

// CountByRole 按角色统计用户数
func (r *userRepo) CountByRole(role domain.UserRole) (int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return total, nil
}
