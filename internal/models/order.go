package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表（顾客一次下单，按店铺拆分为子订单）
type Order struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                      // 主键
	OrderNo         string         `gorm:"uniqueIndex;not null" json:"order_no"`                      // 订单编号
	UserID          uint           `gorm:"index;not null" json:"user_id"`                             // 顾客用户ID
	PaymentMethod   string         `gorm:"not null" json:"payment_method"`                            // 支付方式（cod/online）
	PaymentCaptured bool           `gorm:"not null;default:false" json:"payment_captured"`            // 是否已收款
	ProviderRef     string         `gorm:"type:varchar(100)" json:"provider_ref,omitempty"`           // 支付网关流水号
	TotalAmount     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 订单总额
	DeliveryAddress string         `gorm:"type:varchar(500);not null" json:"delivery_address"`        // 收货地址
	DeliveryLat     float64        `gorm:"not null" json:"delivery_lat"`                              // 收货纬度
	DeliveryLon     float64        `gorm:"not null" json:"delivery_lon"`                              // 收货经度
	CapturedAt      *time.Time     `gorm:"index" json:"captured_at,omitempty"`                        // 收款确认时间
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	SubOrders []SubOrder `gorm:"foreignKey:OrderID" json:"sub_orders,omitempty"` // 子订单
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// SubOrder 子订单表（单店铺维度的履约单元）
type SubOrder struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                  // 主键
	SubOrderNo   string         `gorm:"uniqueIndex;not null" json:"sub_order_no"`              // 子订单编号
	OrderID      uint           `gorm:"index;not null" json:"order_id"`                        // 父订单ID
	ShopID       uint           `gorm:"index;not null" json:"shop_id"`                         // 店铺ID
	OwnerID      uint           `gorm:"index;not null" json:"owner_id"`                        // 店主ID快照
	CourierID    *uint          `gorm:"index" json:"courier_id,omitempty"`                     // 配送骑手ID
	AssignmentID *uint          `gorm:"index" json:"assignment_id,omitempty"`                  // 配送任务ID
	Status       string         `gorm:"index;not null" json:"status"`                          // 子订单状态
	Subtotal     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"` // 子订单金额
	OTPCode      string         `gorm:"type:varchar(12)" json:"-"`                             // 收货验证码
	OTPExpiresAt *time.Time     `json:"-"`                                                     // 验证码过期时间
	OTPIssuedAt  *time.Time     `json:"-"`                                                     // 验证码签发时间
	DeliveredAt  *time.Time     `gorm:"index" json:"delivered_at,omitempty"`                   // 送达时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                               // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间

	Items []SubOrderItem `gorm:"foreignKey:SubOrderID" json:"items,omitempty"` // 子订单项
	Shop  *Shop          `gorm:"foreignKey:ShopID" json:"shop,omitempty"`      // 店铺
}

// TableName 指定表名
func (SubOrder) TableName() string {
	return "sub_orders"
}

// OTPValid 判断验证码是否仍在有效期内
func (s *SubOrder) OTPValid(now time.Time) bool {
	return s.OTPCode != "" && s.OTPExpiresAt != nil && now.Before(*s.OTPExpiresAt)
}

// SubOrderItem 子订单项表
type SubOrderItem struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                     // 主键
	SubOrderID uint           `gorm:"index;not null" json:"sub_order_id"`                       // 子订单ID
	MenuItemID uint           `gorm:"index;not null" json:"menu_item_id"`                       // 菜品ID
	Name       string         `gorm:"not null" json:"name"`                                     // 菜品名称快照
	UnitPrice  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价快照
	Quantity   int            `gorm:"not null" json:"quantity"`                                 // 数量
	TotalPrice Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                                  // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间
}

// TableName 指定表名
func (SubOrderItem) TableName() string {
	return "sub_order_items"
}
