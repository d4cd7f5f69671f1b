package models

import (
	"time"

	"gorm.io/gorm"
)

// Assignment 配送任务表（子订单出餐后广播给附近骑手，先抢先得，送达后删除）
type Assignment struct {
	ID          uint           `gorm:"primarykey" json:"id"`                     // 主键
	OrderID     uint           `gorm:"index;not null" json:"order_id"`           // 订单ID
	ShopID      uint           `gorm:"index;not null" json:"shop_id"`            // 店铺ID
	SubOrderID  uint           `gorm:"uniqueIndex;not null" json:"sub_order_id"` // 子订单ID
	CourierID   *uint          `gorm:"index:idx_assignments_courier_status" json:"courier_id,omitempty"` // 接单骑手ID
	Status      string         `gorm:"index:idx_assignments_courier_status;not null" json:"status"`      // 状态（broadcasted/assigned/completed）
	BroadcastTo StringArray    `gorm:"type:json" json:"broadcast_to,omitempty"`  // 广播骑手名单快照
	ClaimedAt   *time.Time     `gorm:"index" json:"claimed_at,omitempty"`        // 抢单时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                  // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                  // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                           // 软删除时间

	SubOrder *SubOrder `gorm:"foreignKey:SubOrderID" json:"sub_order,omitempty"` // 子订单
}

// TableName 指定表名
func (Assignment) TableName() string {
	return "assignments"
}
