// Package domain 定义工作流资源相关的业务领域模型。
package domain

import (
	"time"
)

// WorkflowStatus 定义工作流状态类型
type WorkflowStatus string

const (
	WorkflowStatusActive  WorkflowStatus = "active"  // 正常上架
	WorkflowStatusDeleted WorkflowStatus = "deleted" // 已删除
)

// Workflow 表示市场中的工作流资源
// FileURL 是存储层返回的引用，核心逻辑只消费引用字符串，不接触文件内容。
type Workflow struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Author        string         `json:"author"`
	FileURL       string         `json:"file_url"`
	CoverURL      string         `json:"cover_url"`
	ViewCount     int64          `json:"view_count"`
	DownloadCount int64          `json:"download_count"`
	Status        WorkflowStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsAvailable 判断工作流是否可下载
func (w *Workflow) IsAvailable() bool {
	return w.Status == WorkflowStatusActive
}

// CreateWorkflowRequest 表示创建工作流请求
type CreateWorkflowRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Author      string `json:"author"`
	FileURL     string `json:"file_url"`
	CoverURL    string `json:"cover_url"`
}

// UpdateWorkflowRequest 表示更新工作流请求
type UpdateWorkflowRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Author      *string `json:"author"`
	FileURL     *string `json:"file_url"`
	CoverURL    *string `json:"cover_url"`
}

// WorkflowListRequest 表示工作流列表查询请求
type WorkflowListRequest struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Category *string `json:"category"`
	Keyword  *string `json:"keyword"`
}

// WorkflowListResponse 表示工作流列表查询响应
type WorkflowListResponse struct {
	Workflows []*Workflow `json:"workflows"`
	Total     int64       `json:"total"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
}
