package models

import (
	"time"

	"gorm.io/gorm"
)

// Shop 店铺表
type Shop struct {
	ID        uint           `gorm:"primarykey" json:"id"`              // 主键
	OwnerID   uint           `gorm:"index;not null" json:"owner_id"`    // 店主用户ID
	Name      string         `gorm:"not null" json:"name"`              // 店铺名称
	Status    string         `gorm:"index;default:'open'" json:"status"` // 营业状态（open/closed）
	Address   string         `gorm:"type:varchar(500)" json:"address"`  // 店铺地址
	Lat       float64        `gorm:"not null" json:"lat"`               // 纬度
	Lon       float64        `gorm:"not null" json:"lon"`               // 经度
	CreatedAt time.Time      `gorm:"index" json:"created_at"`           // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`           // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                    // 软删除时间

	MenuItems []MenuItem `gorm:"foreignKey:ShopID" json:"menu_items,omitempty"` // 菜单项
}

// TableName 指定表名
func (Shop) TableName() string {
	return "shops"
}

// MenuItem 菜单项表
type MenuItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`                             // 主键
	ShopID    uint           `gorm:"index;not null" json:"shop_id"`                    // 店铺ID
	Name      string         `gorm:"not null" json:"name"`                             // 菜品名称
	Price     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // 单价
	Available bool           `gorm:"default:true" json:"available"`                    // 是否在售
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                          // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                          // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间
}

// TableName 指定表名
func (MenuItem) TableName() string {
	return "menu_items"
}
