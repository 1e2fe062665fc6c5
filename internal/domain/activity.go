// Package domain 定义活动审计记录的领域模型。
package domain

import (
	"time"
)

// ActivityType 定义活动类型
type ActivityType string

const (
	ActivityRegister    ActivityType = "register"          // 注册
	ActivityVipUpgrade  ActivityType = "vip_upgrade"       // 开通VIP
	ActivitySvipUpgrade ActivityType = "svip_upgrade"      // 开通SVIP
	ActivityDownload    ActivityType = "workflow_download" // 下载工作流
	ActivityAdminAction ActivityType = "admin_action"      // 管理员操作
)

// Activity 表示一条只追加的活动审计记录
// 创建后不再修改，只按时间倒序查询。
type Activity struct {
	ID            int64        `json:"id"`
	UserID        int64        `json:"user_id"`
	Username      string       `json:"username"`
	Type          ActivityType `json:"type"`
	Action        string       `json:"action"`
	WorkflowID    *int64       `json:"workflow_id,omitempty"`
	WorkflowTitle string       `json:"workflow_title,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
