package realtime

import (
	"fmt"
	"time"

	"github.com/waimai-next/internal/constants"
)

// Event 推送事件
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

// NewEvent 创建推送事件
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		Type: eventType,
		Data: data,
		At:   time.Now(),
	}
}

// UserSubject 用户维度的订阅主题
func UserSubject(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// NewOrderEvent 新订单事件（推送给店主）
func NewOrderEvent(data interface{}) Event {
	return NewEvent(constants.EventNewOrder, data)
}

// NewAssignmentEvent 新配送任务事件（推送给骑手）
func NewAssignmentEvent(data interface{}) Event {
	return NewEvent(constants.EventNewAssignment, data)
}

// StatusUpdateEvent 状态变更事件（推送给顾客）
func StatusUpdateEvent(data interface{}) Event {
	return NewEvent(constants.EventStatusUpdate, data)
}

// CourierPositionUpdateEvent 骑手位置事件（推送给顾客）
func CourierPositionUpdateEvent(data interface{}) Event {
	return NewEvent(constants.EventCourierPositionUpdate, data)
}
