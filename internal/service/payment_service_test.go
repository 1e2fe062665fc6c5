package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
)

func newPaymentFixture() (*memUserRepo, *memOrderRepo, PaymentService) {
	userRepo := newMemUserRepo()
	orderRepo := newMemOrderRepo()
	activities := NewActivityService(&memActivityRepo{}, zap.NewNop())
	membership := NewMembershipService(userRepo, activities, zap.NewNop())
	svc := NewPaymentService(orderRepo, userRepo, membership, zap.NewNop())
	return userRepo, orderRepo, svc
}

func TestCreateOrder(t *testing.T) {
	userRepo, orderRepo, svc := newPaymentFixture()
	user := userRepo.seed(&domain.User{Username: "alice", Role: domain.UserRoleUser})

	order, err := svc.CreateOrder(user, &domain.CreateOrderRequest{
		PlanID:    "vip-monthly",
		PayMethod: domain.PayMethodWechat,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if !strings.HasPrefix(order.ID, "ORDER_") {
		t.Errorf("order id = %q, want ORDER_ prefix", order.ID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if order.Amount != 19.9 || order.DurationDays != 30 {
		t.Errorf("amount/days = %v/%d, want 19.9/30", order.Amount, order.DurationDays)
	}
	if !strings.Contains(order.PayURL, "wechat") || !strings.Contains(order.PayURL, order.ID) {
		t.Errorf("pay url = %q, want wechat url with order id", order.PayURL)
	}

	if stored, _ := orderRepo.GetByID(order.ID); stored == nil {
		t.Error("order not persisted")
	}
}

func TestCreateOrder_Invalid(t *testing.T) {
	userRepo, _, svc := newPaymentFixture()
	user := userRepo.seed(&domain.User{Username: "bob", Role: domain.UserRoleUser})

	if _, err := svc.CreateOrder(user, &domain.CreateOrderRequest{PlanID: "gold-monthly", PayMethod: domain.PayMethodWechat}); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("unknown plan err = %v, want ErrInvalidPlan", err)
	}
	if _, err := svc.CreateOrder(user, &domain.CreateOrderRequest{PlanID: "vip-monthly", PayMethod: "cash"}); !errors.Is(err, ErrInvalidPayMethod) {
		t.Errorf("bad method err = %v, want ErrInvalidPayMethod", err)
	}
}

func TestHandleCallback_Success(t *testing.T) {
	userRepo, _, svc := newPaymentFixture()
	user := userRepo.seed(&domain.User{Username: "carol", Role: domain.UserRoleUser})

	order, err := svc.CreateOrder(user, &domain.CreateOrderRequest{PlanID: "svip-monthly", PayMethod: domain.PayMethodAlipay})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := svc.HandleCallback(&domain.PayCallbackRequest{OrderID: order.ID, Status: "success"})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if got.Status != domain.OrderStatusSuccess {
		t.Errorf("order status = %s, want success", got.Status)
	}

	stored, _ := userRepo.GetByID(user.ID)
	if !stored.IsSvip || stored.Role != domain.UserRoleSvip {
		t.Errorf("user not granted svip: is_svip=%v role=%s", stored.IsSvip, stored.Role)
	}
	if stored.SvipExpiresAt == nil {
		t.Fatal("svip expiry not set")
	}
	want := time.Now().AddDate(0, 0, 30)
	if diff := stored.SvipExpiresAt.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("svip expiry = %v, want around %v", stored.SvipExpiresAt, want)
	}
}

func TestHandleCallback_DuplicateIsIdempotent(t *testing.T) {
	userRepo, _, svc := newPaymentFixture()
	user := userRepo.seed(&domain.User{Username: "dave", Role: domain.UserRoleUser})

	order, err := svc.CreateOrder(user, &domain.CreateOrderRequest{PlanID: "vip-monthly", PayMethod: domain.PayMethodWechat})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := svc.HandleCallback(&domain.PayCallbackRequest{OrderID: order.ID, Status: "success"}); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	first, _ := userRepo.GetByID(user.ID)

	// 第二次回调不重复授予，有效期不被再次顺延
	got, err := svc.HandleCallback(&domain.PayCallbackRequest{OrderID: order.ID, Status: "success"})
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}
	if got.Status != domain.OrderStatusSuccess {
		t.Errorf("order status = %s, want success", got.Status)
	}

	second, _ := userRepo.GetByID(user.ID)
	if !second.VipExpiresAt.Equal(*first.VipExpiresAt) {
		t.Errorf("vip expiry changed on duplicate callback: %v -> %v", first.VipExpiresAt, second.VipExpiresAt)
	}
}

// staleOrderRepo 第一次读到陈旧的pending快照，
// 模拟两个回调同时通过pending检查后竞争关单。
type staleOrderRepo struct {
	*memOrderRepo
	stale *domain.Order
}

func (r *staleOrderRepo) GetByID(id string) (*domain.Order, error) {
	if r.stale != nil && r.stale.ID == id {
		o := *r.stale
		r.stale = nil
		return &o, nil
	}
	return r.memOrderRepo.GetByID(id)
}

func TestHandleCallback_ConcurrentCloseGrantsOnce(t *testing.T) {
	userRepo := newMemUserRepo()
	orderRepo := newMemOrderRepo()
	activities := NewActivityService(&memActivityRepo{}, zap.NewNop())
	membership := NewMembershipService(userRepo, activities, zap.NewNop())

	user := userRepo.seed(&domain.User{Username: "ivy", Role: domain.UserRoleUser})
	order := &domain.Order{
		ID:           "ORDER_racy",
		UserID:       user.ID,
		PlanID:       "vip-monthly",
		Status:       domain.OrderStatusPending,
		DurationDays: 30,
	}
	if err := orderRepo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	svc := NewPaymentService(orderRepo, userRepo, membership, zap.NewNop())
	if _, err := svc.HandleCallback(&domain.PayCallbackRequest{OrderID: order.ID, Status: "success"}); err != nil {
		t.Fatalf("winning callback: %v", err)
	}
	first, _ := userRepo.GetByID(user.ID)

	// 输掉关单竞争的回调：pending检查通过，但条件更新抢不到转移
	pendingSnapshot := *order
	pendingSnapshot.Status = domain.OrderStatusPending
	racy := NewPaymentService(
		&staleOrderRepo{memOrderRepo: orderRepo, stale: &pendingSnapshot},
		userRepo, membership, zap.NewNop(),
	)
	got, err := racy.HandleCallback(&domain.PayCallbackRequest{OrderID: order.ID, Status: "success"})
	if err != nil {
		t.Fatalf("losing callback: %v", err)
	}
	if got.Status != domain.OrderStatusSuccess {
		t.Errorf("order status = %s, want success", got.Status)
	}

	second, _ := userRepo.GetByID(user.ID)
	if !second.VipExpiresAt.Equal(*first.VipExpiresAt) {
		t.Errorf("losing callback must not grant again: %v -> %v", first.VipExpiresAt, second.VipExpiresAt)
	}
}

func TestHandleCallback_Failed(t *testing.T) {
	userRepo, _, svc := newPaymentFixture()
	user := userRepo.seed(&domain.User{Username: "erin", Role: domain.UserRoleUser})

	order, err := svc.CreateOrder(user, &domain.CreateOrderRequest{PlanID: "vip-monthly", PayMethod: domain.PayMethodWechat})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := svc.HandleCallback(&domain.PayCallbackRequest{OrderID: order.ID, Status: "failed"})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if got.Status != domain.OrderStatusFailed {
		t.Errorf("order status = %s, want failed", got.Status)
	}

	stored, _ := userRepo.GetByID(user.ID)
	if stored.IsVip || stored.Role != domain.UserRoleUser {
		t.Error("failed callback must not grant membership")
	}
}

func TestHandleCallback_UnknownOrder(t *testing.T) {
	_, _, svc := newPaymentFixture()

	if _, err := svc.HandleCallback(&domain.PayCallbackRequest{OrderID: "ORDER_missing", Status: "success"}); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestHandleCallback_DurationOverride(t *testing.T) {
	userRepo, _, svc := newPaymentFixture()
	user := userRepo.seed(&domain.User{Username: "frank", Role: domain.UserRoleUser})

	order, err := svc.CreateOrder(user, &domain.CreateOrderRequest{PlanID: "vip-monthly", PayMethod: domain.PayMethodWechat})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// 回调携带-1表示永久会员
	if _, err := svc.HandleCallback(&domain.PayCallbackRequest{OrderID: order.ID, Status: "success", Duration: -1}); err != nil {
		t.Fatalf("handle callback: %v", err)
	}

	stored, _ := userRepo.GetByID(user.ID)
	if stored.VipExpiresAt == nil || !stored.VipExpiresAt.Equal(domain.UnlimitedExpiry) {
		t.Errorf("vip expiry = %v, want unlimited sentinel", stored.VipExpiresAt)
	}
}

func TestGetOrder_Authorization(t *testing.T) {
	userRepo, _, svc := newPaymentFixture()
	owner := userRepo.seed(&domain.User{Username: "gail", Role: domain.UserRoleUser})
	other := userRepo.seed(&domain.User{Username: "hank", Role: domain.UserRoleUser})
	admin := userRepo.seed(&domain.User{Username: "root", Role: domain.UserRoleAdmin})

	order, err := svc.CreateOrder(owner, &domain.CreateOrderRequest{PlanID: "vip-monthly", PayMethod: domain.PayMethodWechat})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := svc.GetOrder(owner, order.ID); err != nil {
		t.Errorf("owner get order: %v", err)
	}
	if _, err := svc.GetOrder(admin, order.ID); err != nil {
		t.Errorf("admin get order: %v", err)
	}
	if _, err := svc.GetOrder(other, order.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger get order err = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetOrder(owner, "ORDER_missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("missing order err = %v, want ErrOrderNotFound", err)
	}
}
