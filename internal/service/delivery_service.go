package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/waimai-next/internal/config"
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/queue"
	"github.com/waimai-next/internal/realtime"
	"github.com/waimai-next/internal/repository"

	"gorm.io/gorm"
)

// DeliveryService 收货确认服务：验证码签发与核销
type DeliveryService struct {
	db             *gorm.DB
	orderRepo      repository.OrderRepository
	assignmentRepo repository.AssignmentRepository
	userRepo       repository.UserRepository
	queueClient    *queue.Client
	emailService   *EmailService
	hub            *realtime.Hub
	otpExpire      time.Duration
	otpMinFresh    time.Duration
}

// NewDeliveryService 创建收货确认服务
func NewDeliveryService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	assignmentRepo repository.AssignmentRepository,
	userRepo repository.UserRepository,
	queueClient *queue.Client,
	emailService *EmailService,
	hub *realtime.Hub,
	cfg config.DeliveryConfig,
) *DeliveryService {
	expireMinutes := cfg.OTPExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = constants.OTPExpireMinutes
	}
	minFreshMinutes := cfg.OTPResendMinFreshMinutes
	if minFreshMinutes <= 0 {
		minFreshMinutes = constants.OTPResendMinFresh
	}
	return &DeliveryService{
		db:             db,
		orderRepo:      orderRepo,
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
		queueClient:    queueClient,
		emailService:   emailService,
		hub:            hub,
		otpExpire:      time.Duration(expireMinutes) * time.Minute,
		otpMinFresh:    time.Duration(minFreshMinutes) * time.Minute,
	}
}

// SendOTPResult 验证码签发结果
type SendOTPResult struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// SendOTP 向顾客邮箱发送收货验证码。
// 上一枚验证码剩余有效期仍较长时拒绝重发，返回等待秒数。
func (s *DeliveryService) SendOTP(ctx context.Context, courierID, assignmentID uint) (*SendOTPResult, error) {
	assignment, subOrder, err := s.loadAssignedSubOrder(courierID, assignmentID)
	if err != nil {
		return nil, err
	}
	if subOrder.Status != constants.OrderStatusOutForDelivery {
		return nil, ErrOrderStatusInvalid
	}

	now := time.Now()
	if subOrder.OTPCode != "" && subOrder.OTPExpiresAt != nil {
		remaining := subOrder.OTPExpiresAt.Sub(now)
		if remaining > s.otpMinFresh {
			wait := remaining - s.otpMinFresh
			return nil, &OTPCooldownError{WaitSeconds: int((wait + time.Second - 1) / time.Second)}
		}
	}

	order, customer, err := s.loadCustomer(subOrder.OrderID)
	if err != nil {
		return nil, err
	}

	code := randNumeric(constants.OTPLength)
	expiresAt := now.Add(s.otpExpire)
	if err := s.orderRepo.UpdateSubOrderOTP(subOrder.ID, code, now, expiresAt); err != nil {
		return nil, err
	}

	locale := customer.Locale
	if s.queueClient.Enabled() {
		err = s.queueClient.EnqueueDeliveryOTPEmail(queue.DeliveryOTPEmailPayload{
			AssignmentID: assignment.ID,
			Email:        customer.Email,
			Code:         code,
			Locale:       locale,
		})
	} else if s.emailService != nil {
		err = s.emailService.SendDeliveryOTP(customer.Email, code, locale)
	}
	if err != nil {
		// 验证码已落库，骑手可在冷却后重发
		logger.Warnw("delivery_otp_email_failed",
			"assignment_id", assignment.ID,
			"order_no", order.OrderNo,
			"error", err)
		return nil, ErrOTPEmailSendFailed
	}

	logger.Infow("delivery_otp_issued",
		"assignment_id", assignment.ID,
		"sub_order_id", subOrder.ID,
		"expires_at", expiresAt)
	return &SendOTPResult{ExpiresAt: expiresAt}, nil
}

// VerifyOTP 核销收货验证码：子订单置为送达，删除配送任务
func (s *DeliveryService) VerifyOTP(ctx context.Context, courierID, assignmentID uint, code string) (*models.SubOrder, error) {
	assignment, subOrder, err := s.loadAssignedSubOrder(courierID, assignmentID)
	if err != nil {
		return nil, err
	}
	if subOrder.Status != constants.OrderStatusOutForDelivery {
		return nil, ErrOrderStatusInvalid
	}
	if subOrder.OTPCode == "" || subOrder.OTPIssuedAt == nil {
		return nil, ErrOTPNotIssued
	}

	now := time.Now()
	if !subOrder.OTPValid(now) {
		return nil, ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(subOrder.OTPCode), []byte(code)) != 1 {
		return nil, ErrOTPInvalid
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.orderRepo.WithTx(tx).UpdateSubOrderStatus(
			subOrder.ID,
			constants.OrderStatusOutForDelivery,
			constants.OrderStatusDelivered,
			map[string]interface{}{
				"delivered_at":   now,
				"otp_code":       "",
				"otp_issued_at":  nil,
				"otp_expires_at": nil,
			})
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderStatusInvalid
		}
		return s.assignmentRepo.WithTx(tx).Delete(assignment.ID)
	}); err != nil {
		return nil, err
	}

	subOrder.Status = constants.OrderStatusDelivered
	subOrder.DeliveredAt = &now
	subOrder.OTPCode = ""
	subOrder.OTPIssuedAt = nil
	subOrder.OTPExpiresAt = nil

	s.settleAndNotify(subOrder, now)
	return subOrder, nil
}

// loadAssignedSubOrder 校验配送任务归属并返回其子订单
func (s *DeliveryService) loadAssignedSubOrder(courierID, assignmentID uint) (*models.Assignment, *models.SubOrder, error) {
	assignment, err := s.assignmentRepo.GetByID(assignmentID)
	if err != nil {
		return nil, nil, err
	}
	if assignment == nil {
		return nil, nil, ErrAssignmentNotFound
	}
	if assignment.Status != constants.AssignmentStatusAssigned ||
		assignment.CourierID == nil || *assignment.CourierID != courierID {
		return nil, nil, ErrNotAssignedCourier
	}
	subOrder := assignment.SubOrder
	if subOrder == nil {
		subOrder, err = s.orderRepo.GetSubOrderByID(assignment.SubOrderID)
		if err != nil {
			return nil, nil, err
		}
		if subOrder == nil {
			return nil, nil, ErrSubOrderNotFound
		}
	}
	return assignment, subOrder, nil
}

// loadCustomer 获取订单与下单顾客
func (s *DeliveryService) loadCustomer(orderID uint) (*models.Order, *models.User, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}
	customer, err := s.userRepo.GetByID(order.UserID)
	if err != nil {
		return nil, nil, err
	}
	if customer == nil {
		return nil, nil, ErrOrderNotFound
	}
	return order, customer, nil
}

// settleAndNotify 送达后的收尾：货到付款结算、推送与邮件通知
func (s *DeliveryService) settleAndNotify(subOrder *models.SubOrder, deliveredAt time.Time) {
	order, err := s.orderRepo.GetByID(subOrder.OrderID)
	if err != nil || order == nil {
		logger.Warnw("delivery_order_load_failed", "order_id", subOrder.OrderID, "error", err)
		return
	}

	// 货到付款：全部子订单送达后视为收款完成
	if order.PaymentMethod == constants.PaymentMethodCOD && !order.PaymentCaptured && allDelivered(order.SubOrders) {
		if _, err := s.orderRepo.MarkCaptured(order.ID, constants.PaymentMethodCOD, deliveredAt); err != nil {
			logger.Errorw("cod_capture_failed", "order_id", order.ID, "error", err)
		}
	}

	if s.hub != nil {
		// 顾客与店主各推一条
		event := realtime.StatusUpdateEvent(map[string]interface{}{
			"order_id":     order.ID,
			"sub_order_id": subOrder.ID,
			"shop_id":      subOrder.ShopID,
			"status":       constants.OrderStatusDelivered,
		})
		s.hub.PublishToUser(order.UserID, event)
		s.hub.PublishToUser(subOrder.OwnerID, event)
	}
	if err := s.queueClient.EnqueueOrderStatusEmail(queue.OrderStatusEmailPayload{
		OrderID: order.ID,
		Status:  constants.OrderStatusDelivered,
	}); err != nil {
		logger.Warnw("order_status_email_enqueue_failed", "order_id", order.ID, "error", err)
	}
}

// allDelivered 判断订单的全部未取消子订单是否均已送达
func allDelivered(subOrders []models.SubOrder) bool {
	delivered := 0
	for _, sub := range subOrders {
		switch sub.Status {
		case constants.OrderStatusCanceled:
			continue
		case constants.OrderStatusDelivered:
			delivered++
		default:
			return false
		}
	}
	return delivered > 0
}
