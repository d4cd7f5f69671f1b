package queue

import (
	"encoding/json"

	"github.com/waimai-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderStatusEmail 订单状态邮件通知任务
	TaskOrderStatusEmail = constants.TaskOrderStatusEmail
	// TaskDeliveryOTPEmail 收货验证码邮件任务
	TaskDeliveryOTPEmail = constants.TaskDeliveryOTPEmail
	// TaskAssignmentBroadcast 配送任务广播任务
	TaskAssignmentBroadcast = constants.TaskAssignmentBroadcast
)

// OrderStatusEmailPayload 订单状态邮件任务载荷
type OrderStatusEmailPayload struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
}

// DeliveryOTPEmailPayload 收货验证码邮件任务载荷
type DeliveryOTPEmailPayload struct {
	AssignmentID uint   `json:"assignment_id"`
	Email        string `json:"email"`
	Code         string `json:"code"`
	Locale       string `json:"locale"`
}

// AssignmentBroadcastPayload 配送任务广播任务载荷
type AssignmentBroadcastPayload struct {
	SubOrderID uint `json:"sub_order_id"`
}

// NewOrderStatusEmailTask 创建订单状态邮件任务
func NewOrderStatusEmailTask(payload OrderStatusEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStatusEmail, body), nil
}

// NewDeliveryOTPEmailTask 创建收货验证码邮件任务
func NewDeliveryOTPEmailTask(payload DeliveryOTPEmailPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliveryOTPEmail, body), nil
}

// NewAssignmentBroadcastTask 创建配送任务广播任务
func NewAssignmentBroadcastTask(payload AssignmentBroadcastPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentBroadcast, body), nil
}
