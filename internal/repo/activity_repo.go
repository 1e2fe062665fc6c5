// Package repo 实现活动审计记录数据访问层。
package repo

import (
	"database/sql"
	"fmt"

	"github.com/JinhuaXu/flowhub/internal/domain"
)

// ActivityRepository 定义活动记录数据访问接口
// 只追加、倒序读取，没有更新和删除。
type ActivityRepository interface {
	Append(activity *domain.Activity) error
	Recent(limit int) ([]*domain.Activity, error)
	CountByType(t domain.ActivityType) (int64, error)
}

// activityRepo 实现ActivityRepository接口
type activityRepo struct {
	db *sql.DB
}

// NewActivityRepository 创建活动记录仓储实例
func NewActivityRepository(db *sql.DB) ActivityRepository {
	return &activityRepo{db: db}
}

// Append 追加一条活动记录
func (r *activityRepo) Append(activity *domain.Activity) error {
	query := `
		INSERT INTO activities (user_id, username, type, action, workflow_id, workflow_title)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		activity.UserID,
		activity.Username,
		string(activity.Type),
		activity.Action,
		activity.WorkflowID,
		activity.WorkflowTitle,
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	activity.ID = id
	return nil
}

// Recent 按时间倒序获取最近的活动记录
func (r *activityRepo) Recent(limit int) ([]*domain.Activity, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, user_id, username, type, action, workflow_id, workflow_title, created_at
		FROM activities
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var activities []*domain.Activity
	for rows.Next() {
		a := &domain.Activity{}
		var workflowTitle sql.NullString
		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Username,
			&a.Type,
			&a.Action,
			&a.WorkflowID,
			&workflowTitle,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.WorkflowTitle = workflowTitle.String
		activities = append(activities, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	return activities, nil
}

// CountByType 按类型统计活动数量
func (r *activityRepo) CountByType(t domain.ActivityType) (int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM activities WHERE type = ?`, string(t)).Scan(&total); err != nil {
		return 0, fmt.Errorf("count activities by type: %w", err)
	}
	return total, nil
}
