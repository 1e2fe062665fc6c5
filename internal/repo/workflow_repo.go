// Package repo 实现工作流资源数据访问层。
package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/JinhuaXu/flowhub/internal/domain"
)

// WorkflowRepository 定义工作流数据访问接口
type WorkflowRepository interface {
	Create(wf *domain.Workflow) error
	GetByID(id int64) (*domain.Workflow, error)
	Update(wf *domain.Workflow) error
	Delete(id int64) error

	List(req *domain.WorkflowListRequest) ([]*domain.Workflow, int64, error)
	IncrementViewCount(id int64) error
	IncrementDownloadCount(id int64) error

	Count() (int64, error)
}

// workflowRepo 实现WorkflowRepository接口
type workflowRepo struct {
	db *sql.DB
}

// NewWorkflowRepository 创建工作流仓储实例
func NewWorkflowRepository(db *sql.DB) WorkflowRepository {
	return &workflowRepo{db: db}
}

const workflowColumns = `id, title, description, category, author, file_url, cover_url,
	view_count, download_count, status, created_at, updated_at`

// Create 创建工作流
func (r *workflowRepo) Create(wf *domain.Workflow) error {
	query := `
		INSERT INTO workflows (title, description, category, author, file_url, cover_url, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		wf.Title,
		wf.Description,
		wf.Category,
		wf.Author,
		wf.FileURL,
		wf.CoverURL,
		string(wf.Status),
	)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	wf.ID = id
	return nil
}

// GetByID 根据ID获取工作流（已删除的不返回）
func (r *workflowRepo) GetByID(id int64) (*domain.Workflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflows WHERE id = ? AND status != 'deleted'`, workflowColumns)

	wf := &domain.Workflow{}
	err := r.db.QueryRow(query, id).Scan(
		&wf.ID,
		&wf.Title,
		&wf.Description,
		&wf.Category,
		&wf.Author,
		&wf.FileURL,
		&wf.CoverURL,
		&wf.ViewCount,
		&wf.DownloadCount,
		&wf.Status,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow by id: %w", err)
	}

	return wf, nil
}

// Update 更新工作流
func (r *workflowRepo) Update(wf *domain.Workflow) error {
	query := `
		UPDATE workflows
		SET title = ?, description = ?, category = ?, author = ?, file_url = ?, cover_url = ?,
			status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		wf.Title,
		wf.Description,
		wf.Category,
		wf.Author,
		wf.FileURL,
		wf.CoverURL,
		string(wf.Status),
		wf.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}

	return nil
}

// Delete 删除工作流（软删除）
func (r *workflowRepo) Delete(id int64) error {
	query := `UPDATE workflows SET status = 'deleted', updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow not found")
	}

	return nil
}

// List 分页查询工作流列表
func (r *workflowRepo) List(req *domain.WorkflowListRequest) ([]*domain.Workflow, int64, error) {
	conditions := []string{"status != 'deleted'"}
	args := []interface{}{}

	if req.Category != nil && *req.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, *req.Category)
	}
	if req.Keyword != nil && *req.Keyword != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		kw := "%" + *req.Keyword + "%"
		args = append(args, kw, kw)
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM workflows WHERE %s`, where)
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count workflows: %w", err)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM workflows
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, workflowColumns, where)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*domain.Workflow
	for rows.Next() {
		wf := &domain.Workflow{}
		err := rows.Scan(
			&wf.ID,
			&wf.Title,
			&wf.Description,
			&wf.Category,
			&wf.Author,
			&wf.FileURL,
			&wf.CoverURL,
			&wf.ViewCount,
			&wf.DownloadCount,
			&wf.Status,
			&wf.CreatedAt,
			&wf.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate workflows: %w", err)
	}

	return workflows, total, nil
}

// IncrementViewCount 递增浏览次数
func (r *workflowRepo) IncrementViewCount(id int64) error {
	_, err := r.db.Exec(`UPDATE workflows SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// IncrementDownloadCount 递增下载次数（资源侧统计，与用户配额无关）
func (r *workflowRepo) IncrementDownloadCount(id int64) error {
	_, err := r.db.Exec(`UPDATE workflows SET download_count = download_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// Count 获取工作流总数
func (r *workflowRepo) Count() (int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM workflows WHERE status != 'deleted'`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count workflows: %w", err)
	}
	return total, nil
}
