package repository

import (
	"errors"
	"strconv"
	"time"

	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"

	"gorm.io/gorm"
)

// activeAssignmentStatuses 占用骑手的配送任务状态
var activeAssignmentStatuses = []string{
	constants.AssignmentStatusBroadcasted,
	constants.AssignmentStatusAssigned,
}

// AssignmentRepository 配送任务数据访问接口
type AssignmentRepository interface {
	Create(assignment *models.Assignment) error
	GetByID(id uint) (*models.Assignment, error)
	GetBySubOrderID(subOrderID uint) (*models.Assignment, error)
	GetActiveByCourier(courierID uint) (*models.Assignment, error)
	CountHeldByCourier(courierID uint) (int64, error)
	ListHeldCourierIDs(courierIDs []uint) ([]uint, error)
	ListBroadcastedForCourier(courierID uint) ([]models.Assignment, error)
	Claim(id uint, courierID uint, claimedAt time.Time) (bool, error)
	Release(id uint) error
	Delete(id uint) error
	UpdateBroadcastTo(id uint, broadcastTo models.StringArray) error
	WithTx(tx *gorm.DB) *GormAssignmentRepository
}

// GormAssignmentRepository GORM 实现
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建配送任务仓库
func NewAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAssignmentRepository) WithTx(tx *gorm.DB) *GormAssignmentRepository {
	if tx == nil {
		return r
	}
	return &GormAssignmentRepository{db: tx}
}

// Create 创建配送任务
func (r *GormAssignmentRepository) Create(assignment *models.Assignment) error {
	return r.db.Create(assignment).Error
}

// GetByID 根据 ID 获取配送任务
func (r *GormAssignmentRepository) GetByID(id uint) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.Preload("SubOrder").Preload("SubOrder.Items").Preload("SubOrder.Shop").
		First(&assignment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// GetBySubOrderID 根据子订单获取配送任务
func (r *GormAssignmentRepository) GetBySubOrderID(subOrderID uint) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.Where("sub_order_id = ?", subOrderID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// GetActiveByCourier 获取骑手当前已接单的配送任务
func (r *GormAssignmentRepository) GetActiveByCourier(courierID uint) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.Preload("SubOrder").Preload("SubOrder.Items").Preload("SubOrder.Shop").
		Where("courier_id = ? AND status = ?", courierID, constants.AssignmentStatusAssigned).
		Order("claimed_at desc").
		First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// CountHeldByCourier 统计骑手名下占用中的配送任务数量
func (r *GormAssignmentRepository) CountHeldByCourier(courierID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.Assignment{}).
		Where("courier_id = ? AND status IN ?", courierID, activeAssignmentStatuses).
		Count(&total).Error
	return total, err
}

// ListHeldCourierIDs 过滤出给定骑手中已被配送任务占用的
func (r *GormAssignmentRepository) ListHeldCourierIDs(courierIDs []uint) ([]uint, error) {
	if len(courierIDs) == 0 {
		return nil, nil
	}
	var held []uint
	err := r.db.Model(&models.Assignment{}).
		Where("courier_id IN ? AND status IN ?", courierIDs, activeAssignmentStatuses).
		Pluck("courier_id", &held).Error
	if err != nil {
		return nil, err
	}
	return held, nil
}

// ListBroadcastedForCourier 获取广播中且可见于该骑手的配送任务
func (r *GormAssignmentRepository) ListBroadcastedForCourier(courierID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.Preload("SubOrder").Preload("SubOrder.Items").Preload("SubOrder.Shop").
		Where("status = ?", constants.AssignmentStatusBroadcasted).
		Order("id asc").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	// 广播名单为快照，在应用层过滤
	filtered := assignments[:0]
	for _, assignment := range assignments {
		if BroadcastContains(assignment.BroadcastTo, courierID) {
			filtered = append(filtered, assignment)
		}
	}
	return filtered, nil
}

// Claim 抢单：仅当仍处于广播状态时成功，返回是否命中
func (r *GormAssignmentRepository) Claim(id uint, courierID uint, claimedAt time.Time) (bool, error) {
	result := r.db.Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, constants.AssignmentStatusBroadcasted).
		Updates(map[string]interface{}{
			"courier_id": courierID,
			"status":     constants.AssignmentStatusAssigned,
			"claimed_at": claimedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release 回滚至广播状态并清空骑手信息
func (r *GormAssignmentRepository) Release(id uint) error {
	return r.db.Model(&models.Assignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"courier_id": nil,
			"status":     constants.AssignmentStatusBroadcasted,
			"claimed_at": nil,
		}).Error
}

// Delete 删除配送任务（送达后）
func (r *GormAssignmentRepository) Delete(id uint) error {
	return r.db.Delete(&models.Assignment{}, id).Error
}

// UpdateBroadcastTo 更新广播名单快照
func (r *GormAssignmentRepository) UpdateBroadcastTo(id uint, broadcastTo models.StringArray) error {
	return r.db.Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, constants.AssignmentStatusBroadcasted).
		Update("broadcast_to", broadcastTo).Error
}

// BroadcastContains 判断骑手是否在广播名单内
func BroadcastContains(broadcastTo models.StringArray, courierID uint) bool {
	target := FormatCourierID(courierID)
	for _, id := range broadcastTo {
		if id == target {
			return true
		}
	}
	return false
}

// FormatCourierID 广播名单中骑手 ID 的统一字符串形式
func FormatCourierID(courierID uint) string {
	return strconv.FormatUint(uint64(courierID), 10)
}
