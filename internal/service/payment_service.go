package service

import (
	"context"
	"time"

	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/payment/gateway"
	"github.com/waimai-next/internal/realtime"
	"github.com/waimai-next/internal/repository"
)

// ChargeQuerier 支付网关查单接口
type ChargeQuerier interface {
	Configured() bool
	QueryCharge(ctx context.Context, orderNo string) (*gateway.ChargeStatus, error)
}

// PaymentService 支付服务：在线支付查单确认与收款标记
type PaymentService struct {
	orderRepo repository.OrderRepository
	gateway   ChargeQuerier
	hub       *realtime.Hub
}

// NewPaymentService 创建支付服务
func NewPaymentService(orderRepo repository.OrderRepository, charge ChargeQuerier, hub *realtime.Hub) *PaymentService {
	return &PaymentService{
		orderRepo: orderRepo,
		gateway:   charge,
		hub:       hub,
	}
}

// VerifyPayment 顾客发起的支付核验：向网关查单，成功则标记收款。
// 已收款订单重复核验返回冲突，保证标记只发生一次。
func (s *PaymentService) VerifyPayment(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod != constants.PaymentMethodOnline {
		return nil, ErrPaymentMethodInvalid
	}
	if order.PaymentCaptured {
		return nil, ErrPaymentAlreadyCaptured
	}
	if s.gateway == nil || !s.gateway.Configured() {
		return nil, ErrPaymentGatewayRequestFailed
	}

	status, err := s.gateway.QueryCharge(ctx, order.OrderNo)
	if err != nil {
		logger.Warnw("payment_query_failed", "order_no", order.OrderNo, "error", err)
		return nil, ErrPaymentGatewayRequestFailed
	}
	if !status.Paid() {
		return nil, ErrPaymentNotCaptured
	}

	now := time.Now()
	ok, err := s.orderRepo.MarkCaptured(order.ID, status.TradeNo, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 并发核验已抢先标记
		return nil, ErrPaymentAlreadyCaptured
	}
	order.PaymentCaptured = true
	order.ProviderRef = status.TradeNo
	order.CapturedAt = &now

	logger.Infow("payment_captured",
		"order_no", order.OrderNo,
		"trade_no", status.TradeNo,
		"amount", order.TotalAmount.String())

	if s.hub != nil {
		s.hub.PublishToUser(order.UserID, realtime.StatusUpdateEvent(map[string]interface{}{
			"order_id":         order.ID,
			"payment_captured": true,
		}))
	}
	return order, nil
}
