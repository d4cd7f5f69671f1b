package service

import (
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"
)

// allowedTransitions 子订单状态机：只允许前进，取消仅限未完结状态
var allowedTransitions = map[string][]string{
	constants.OrderStatusPending:        {constants.OrderStatusPreparing, constants.OrderStatusCanceled},
	constants.OrderStatusPreparing:      {constants.OrderStatusOutForDelivery, constants.OrderStatusCanceled},
	constants.OrderStatusOutForDelivery: {constants.OrderStatusDelivered, constants.OrderStatusCanceled},
	constants.OrderStatusDelivered:      {},
	constants.OrderStatusCanceled:       {},
}

// statusRank 状态推进次序，用于父订单状态聚合
var statusRank = map[string]int{
	constants.OrderStatusPending:        0,
	constants.OrderStatusPreparing:      1,
	constants.OrderStatusOutForDelivery: 2,
	constants.OrderStatusDelivered:      3,
}

// CanTransition 判断子订单状态迁移是否合法
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus 判断状态是否已完结
func IsTerminalStatus(status string) bool {
	return status == constants.OrderStatusDelivered || status == constants.OrderStatusCanceled
}

// ProjectOrderStatus 由子订单聚合出父订单状态。
// 取消的子订单不参与推进计算；其余子订单取推进最慢者。
func ProjectOrderStatus(subOrders []models.SubOrder) string {
	if len(subOrders) == 0 {
		return constants.OrderStatusPending
	}

	slowest := -1
	for _, sub := range subOrders {
		if sub.Status == constants.OrderStatusCanceled {
			continue
		}
		rank, ok := statusRank[sub.Status]
		if !ok {
			rank = 0
		}
		if slowest < 0 || rank < slowest {
			slowest = rank
		}
	}
	if slowest < 0 {
		// 全部取消
		return constants.OrderStatusCanceled
	}

	for status, rank := range statusRank {
		if rank == slowest {
			return status
		}
	}
	return constants.OrderStatusPending
}
