package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表（顾客 / 店主 / 骑手）
type User struct {
	ID          uint           `gorm:"primarykey" json:"id"`               // 主键
	Email       string         `gorm:"uniqueIndex;not null" json:"email"`  // 邮箱
	DisplayName string         `gorm:"default:''" json:"display_name"`     // 昵称
	Role        string         `gorm:"index;not null" json:"role"`         // 角色（customer/shop_owner/courier）
	Locale      string         `gorm:"default:'zh-CN'" json:"locale"`      // 语言偏好
	Phone       string         `gorm:"type:varchar(30)" json:"phone"`      // 联系电话
	Address     string         `gorm:"type:varchar(500)" json:"address"`   // 默认收货地址
	OnShift     bool           `gorm:"default:false" json:"on_shift"`      // 骑手是否在班
	Lat         *float64       `json:"lat,omitempty"`                      // 最近上报纬度（骑手）
	Lon         *float64       `json:"lon,omitempty"`                      // 最近上报经度（骑手）
	LocatedAt   *time.Time     `gorm:"index" json:"located_at,omitempty"`  // 最近位置上报时间
	LastLoginAt *time.Time     `json:"last_login_at"`                      // 最后登录时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`            // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`            // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                     // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// HasFreshPosition 判断骑手位置是否在有效期内
func (u *User) HasFreshPosition(ttl time.Duration, now time.Time) bool {
	if u.Lat == nil || u.Lon == nil || u.LocatedAt == nil {
		return false
	}
	return now.Sub(*u.LocatedAt) <= ttl
}
