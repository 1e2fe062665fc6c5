// Package domain 定义支付订单相关的业务领域模型。
package domain

import (
	"strings"
	"time"
)

// OrderStatus 定义支付订单状态类型
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending" // 待支付
	OrderStatusSuccess OrderStatus = "success" // 支付成功
	OrderStatusFailed  OrderStatus = "failed"  // 支付失败
)

// PayMethod 定义支付方式
type PayMethod string

const (
	PayMethodWechat PayMethod = "wechat"
	PayMethodAlipay PayMethod = "alipay"
)

// Valid 判断支付方式是否合法
func (m PayMethod) Valid() bool {
	return m == PayMethodWechat || m == PayMethodAlipay
}

// Plan 表示会员套餐
type Plan struct {
	ID     string     `json:"id"`
	Tier   MemberTier `json:"tier"`
	Days   int        `json:"days"`
	Amount float64    `json:"amount"`
}

// Plans 内置套餐表，planId 与前端购买页保持一致。
var Plans = map[string]Plan{
	"vip-monthly":  {ID: "vip-monthly", Tier: MemberTierVip, Days: 30, Amount: 19.9},
	"vip-yearly":   {ID: "vip-yearly", Tier: MemberTierVip, Days: 365, Amount: 199.0},
	"svip-monthly": {ID: "svip-monthly", Tier: MemberTierSvip, Days: 30, Amount: 39.9},
	"svip-yearly":  {ID: "svip-yearly", Tier: MemberTierSvip, Days: 365, Amount: 399.0},
}

// TierFromPlanID 根据套餐ID推断会员等级
// 未知套餐返回 MemberTierNone。
func TierFromPlanID(planID string) MemberTier {
	if p, ok := Plans[planID]; ok {
		return p.Tier
	}
	switch {
	case strings.HasPrefix(planID, "svip-"):
		return MemberTierSvip
	case strings.HasPrefix(planID, "vip-"):
		return MemberTierVip
	}
	return MemberTierNone
}

// Order 表示模拟支付订单
type Order struct {
	ID           string      `json:"id"`
	UserID       int64       `json:"user_id"`
	PlanID       string      `json:"plan_id"`
	Amount       float64     `json:"amount"`
	PayMethod    PayMethod   `json:"pay_method"`
	Status       OrderStatus `json:"status"`
	DurationDays int         `json:"duration_days"`
	PayURL       string      `json:"pay_url"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// IsPending 判断订单是否为待支付状态
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// CreateOrderRequest 表示创建订单请求
type CreateOrderRequest struct {
	PlanID    string    `json:"plan_id"`
	PayMethod PayMethod `json:"pay_method"`
}

// PayCallbackRequest 表示支付平台回调请求
// 模拟网关的回调载荷，status=success 时触发会员授予。
type PayCallbackRequest struct {
	OrderID  string `json:"order_id"`
	UserID   int64  `json:"user_id"`
	Status   string `json:"status"`
	PlanID   string `json:"plan_id"`
	Duration int    `json:"duration"`
}
