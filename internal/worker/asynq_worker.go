package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/provider"
	"github.com/waimai-next/internal/queue"
	"github.com/waimai-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderStatusEmail, c.handleOrderStatusEmail)
	mux.HandleFunc(queue.TaskDeliveryOTPEmail, c.handleDeliveryOTPEmail)
	mux.HandleFunc(queue.TaskAssignmentBroadcast, c.handleAssignmentBroadcast)
}

func (c *Consumer) handleOrderStatusEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_status_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderStatusEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_status_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_status_email_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_status_email_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_status_email_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}
	customer, err := c.UserRepo.GetByID(order.UserID)
	if err != nil {
		logger.Warnw("worker_order_status_email_fetch_user_failed", "order_id", order.ID, "user_id", order.UserID, "error", err)
		return err
	}
	if customer == nil || strings.TrimSpace(customer.Email) == "" {
		logger.Debugw("worker_order_status_email_skip_empty_receiver", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_order_status_email_skip_email_service_nil", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	input := service.OrderStatusEmailInput{
		OrderNo: order.OrderNo,
		Status:  strings.TrimSpace(payload.Status),
		Amount:  order.TotalAmount,
	}
	if err := c.EmailService.SendOrderStatusEmail(strings.TrimSpace(customer.Email), input, customer.Locale); err != nil {
		logger.Warnw("worker_order_status_email_send_failed",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"status", payload.Status,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleDeliveryOTPEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_delivery_otp_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.DeliveryOTPEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_delivery_otp_email_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Code == "" {
		logger.Debugw("worker_delivery_otp_email_skip_invalid_payload", "assignment_id", payload.AssignmentID)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_delivery_otp_email_skip_email_service_nil", "assignment_id", payload.AssignmentID)
		return nil
	}
	if err := c.EmailService.SendDeliveryOTP(strings.TrimSpace(payload.Email), payload.Code, payload.Locale); err != nil {
		logger.Warnw("worker_delivery_otp_email_send_failed",
			"assignment_id", payload.AssignmentID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleAssignmentBroadcast(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_assignment_broadcast_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AssignmentBroadcastPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_assignment_broadcast_unmarshal_failed", "error", err)
		return err
	}
	if payload.SubOrderID == 0 {
		logger.Debugw("worker_assignment_broadcast_skip_invalid_payload", "sub_order_id", payload.SubOrderID)
		return nil
	}
	if c.DispatchService == nil {
		logger.Warnw("worker_assignment_broadcast_skip_dispatch_service_nil", "sub_order_id", payload.SubOrderID)
		return nil
	}
	if err := c.DispatchService.BroadcastSubOrder(ctx, payload.SubOrderID); err != nil {
		switch {
		case errors.Is(err, service.ErrSubOrderNotFound), errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_assignment_broadcast_skip_sub_order_not_found", "sub_order_id", payload.SubOrderID)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			logger.Debugw("worker_assignment_broadcast_skip_invalid_status", "sub_order_id", payload.SubOrderID)
			return nil
		default:
			logger.Warnw("worker_assignment_broadcast_failed", "sub_order_id", payload.SubOrderID, "error", err)
			return err
		}
	}
	return nil
}
