// Package service 实现模拟支付流程。
// 不接真实支付网关，下单产生一个模拟支付链接，
// 回调接口按网关回调的形状接收结果并触发会员授予。
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/repo"
)

// 支付相关业务错误
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidPlan      = errors.New("invalid plan")
	ErrInvalidPayMethod = errors.New("invalid pay method")
)

// PaymentService 定义支付服务接口
type PaymentService interface {
	CreateOrder(user *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error)
	// HandleCallback 处理支付回调。成功回调触发会员授予，重复回调幂等。
	HandleCallback(req *domain.PayCallbackRequest) (*domain.Order, error)
	GetOrder(actor *domain.User, id string) (*domain.Order, error)
	ListOrders(userID int64, limit int) ([]*domain.Order, error)
}

// paymentService 是 PaymentService 接口的实现
type paymentService struct {
	orderRepo  repo.OrderRepository
	userRepo   repo.UserRepository
	membership MembershipService
	logger     *zap.Logger
}

// NewPaymentService 创建支付服务实例
func NewPaymentService(orderRepo repo.OrderRepository, userRepo repo.UserRepository, membership MembershipService, logger *zap.Logger) PaymentService {
	return &paymentService{
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		membership: membership,
		logger:     logger,
	}
}

// newOrderID 生成订单号，ORDER_前缀加无连字符的uuid
func newOrderID() string {
	return "ORDER_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// payURL 生成模拟支付链接
func payURL(method domain.PayMethod, orderID string) string {
	switch method {
	case domain.PayMethodWechat:
		return fmt.Sprintf("https://pay.flowhub.dev/wechat/qrcode?order_id=%s", orderID)
	case domain.PayMethodAlipay:
		return fmt.Sprintf("https://pay.flowhub.dev/alipay/gateway?order_id=%s", orderID)
	}
	return ""
}

// CreateOrder 创建支付订单
func (s *paymentService) CreateOrder(user *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error) {
	plan, ok := domain.Plans[req.PlanID]
	if !ok {
		return nil, ErrInvalidPlan
	}
	if !req.PayMethod.Valid() {
		return nil, ErrInvalidPayMethod
	}

	order := &domain.Order{
		ID:           newOrderID(),
		UserID:       user.ID,
		PlanID:       plan.ID,
		Amount:       plan.Amount,
		PayMethod:    req.PayMethod,
		Status:       domain.OrderStatusPending,
		DurationDays: plan.Days,
	}
	order.PayURL = payURL(req.PayMethod, order.ID)

	if err := s.orderRepo.Create(order); err != nil {
		s.logger.Error("failed to create order", zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", user.ID),
		zap.String("plan_id", plan.ID),
		zap.Float64("amount", plan.Amount),
	)

	return order, nil
}

// HandleCallback 处理支付回调
// 非success状态标记订单失败；success状态先关单再授予会员。
// 关单是pending到终态的条件转移，没抢到转移的回调不授予，
// 重复回调因此天然幂等。
func (s *paymentService) HandleCallback(req *domain.PayCallbackRequest) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if !order.IsPending() {
		s.logger.Warn("duplicate pay callback ignored",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)),
		)
		return order, nil
	}

	if req.Status != "success" {
		closed, err := s.orderRepo.Close(order.ID, domain.OrderStatusFailed)
		if err != nil {
			return nil, fmt.Errorf("mark order failed: %w", err)
		}
		if !closed {
			return s.closedElsewhere(order.ID)
		}
		order.Status = domain.OrderStatusFailed
		s.logger.Info("order failed",
			zap.String("order_id", order.ID),
			zap.String("callback_status", req.Status),
		)
		return order, nil
	}

	user, err := s.userRepo.GetByID(order.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	tier := domain.TierFromPlanID(order.PlanID)
	if tier == domain.MemberTierNone {
		return nil, ErrInvalidPlan
	}

	days := order.DurationDays
	if req.Duration != 0 {
		days = req.Duration
	}

	closed, err := s.orderRepo.Close(order.ID, domain.OrderStatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("mark order success: %w", err)
	}
	if !closed {
		return s.closedElsewhere(order.ID)
	}
	order.Status = domain.OrderStatusSuccess

	if err := s.membership.GrantMembership(user, tier, domain.ExpiryPolicy{Days: days}); err != nil {
		s.logger.Error("order closed but membership grant failed",
			zap.String("order_id", order.ID),
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("grant membership: %w", err)
	}

	s.logger.Info("order paid",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", user.ID),
		zap.String("tier", string(tier)),
		zap.Int("days", days),
	)

	return order, nil
}

// closedElsewhere 在关单转移被并发回调抢走时返回订单当前状态
func (s *paymentService) closedElsewhere(orderID string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	s.logger.Warn("concurrent pay callback already closed order",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

// GetOrder 查询订单，仅订单所有者和管理员可见
func (s *paymentService) GetOrder(actor *domain.User, id string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if order.UserID != actor.ID && !actor.IsElevated() {
		return nil, ErrForbidden
	}

	return order, nil
}

// ListOrders 查询用户最近的订单
func (s *paymentService) ListOrders(userID int64, limit int) ([]*domain.Order, error) {
	return s.orderRepo.ListByUserID(userID, limit)
}
