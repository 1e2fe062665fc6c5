package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/domain"
	"github.com/JinhuaXu/flowhub/internal/middleware"
	"github.com/JinhuaXu/flowhub/internal/resp"
	"github.com/JinhuaXu/flowhub/internal/service"
)

// PaymentHandler 支付相关的HTTP处理器
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *zap.Logger
}

// NewPaymentHandler 创建支付处理器实例
func NewPaymentHandler(paymentService service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// CreateOrder 创建支付订单
// POST /api/v1/pay/orders
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.paymentService.CreateOrder(user, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlan):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid plan", reqID, "")
		case errors.Is(err, service.ErrInvalidPayMethod):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid pay method", reqID, "")
		default:
			h.logger.Error("create order failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create order failed", reqID, "")
		}
		return
	}

	resp.OK(w, order, reqID, "")
}

// Callback 支付回调
// POST /api/v1/pay/callback
// 模拟支付网关的异步通知入口，不要求登录态。
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.PayCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.OrderID == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "order_id is required", reqID, "")
		return
	}

	order, err := h.paymentService.HandleCallback(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "order not found", reqID, "")
		case errors.Is(err, service.ErrInvalidPlan):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid plan", reqID, "")
		default:
			h.logger.Error("pay callback failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "pay callback failed", reqID, "")
		}
		return
	}

	resp.OK(w, order, reqID, "")
}

// GetOrder 查询订单
// GET /api/v1/pay/orders/{id}
func (h *PaymentHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/pay/orders"), "/")
	if id == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "order id is required", reqID, "")
		return
	}

	order, err := h.paymentService.GetOrder(user, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "order not found", reqID, "")
		case errors.Is(err, service.ErrForbidden):
			resp.Error(w, http.StatusForbidden, resp.CodeForbidden, "operation not allowed", reqID, "")
		default:
			h.logger.Error("get order failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get order failed", reqID, "")
		}
		return
	}

	resp.OK(w, order, reqID, "")
}

// ListOrders 当前用户的订单列表
// GET /api/v1/pay/orders?limit=20
func (h *PaymentHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := h.paymentService.ListOrders(user.ID, limit)
	if err != nil {
		h.logger.Error("list orders failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list orders failed", reqID, "")
		return
	}

	data := map[string]any{"orders": orders}
	resp.OK(w, &data, reqID, "")
}
