package repository

import (
	"errors"
	"time"

	"github.com/waimai-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, subOrders []models.SubOrder) error
	GetByID(id uint) (*models.Order, error)
	GetByIDAndUser(id uint, userID uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	ListByUser(filter OrderListFilter) ([]models.Order, int64, error)
	MarkCaptured(id uint, providerRef string, capturedAt time.Time) (bool, error)
	GetSubOrderByID(id uint) (*models.SubOrder, error)
	GetSubOrderByOrderAndShop(orderID, shopID uint) (*models.SubOrder, error)
	ListSubOrdersByOrder(orderID uint) ([]models.SubOrder, error)
	ListSubOrdersByShop(filter SubOrderListFilter) ([]models.SubOrder, int64, error)
	UpdateSubOrderStatus(id uint, fromStatus, toStatus string, updates map[string]interface{}) (bool, error)
	LinkSubOrderAssignment(id uint, assignmentID uint) error
	BindSubOrderCourier(id uint, courierID uint) error
	UnbindSubOrderCourier(id uint) error
	UpdateSubOrderOTP(id uint, code string, issuedAt, expiresAt time.Time) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) withSubOrders(query *gorm.DB) *gorm.DB {
	return query.Preload("SubOrders").Preload("SubOrders.Items").Preload("SubOrders.Shop")
}

// Create 创建订单与子订单
func (r *GormOrderRepository) Create(order *models.Order, subOrders []models.SubOrder) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range subOrders {
		subOrders[i].OrderID = order.ID
	}
	if len(subOrders) > 0 {
		if err := r.db.Create(&subOrders).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	query := r.withSubOrders(r.db)
	if err := query.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDAndUser 获取顾客订单详情
func (r *GormOrderRepository) GetByIDAndUser(id uint, userID uint) (*models.Order, error) {
	var order models.Order
	query := r.withSubOrders(r.db)
	if err := query.Where("id = ? AND user_id = ?", id, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	var order models.Order
	query := r.withSubOrders(r.db)
	if err := query.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 获取顾客订单列表
func (r *GormOrderRepository) ListByUser(filter OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	query := r.db.Model(&models.Order{}).Where("user_id = ?", filter.UserID)

	if filter.OrderNo != "" {
		query = query.Where("order_no LIKE ?", "%"+filter.OrderNo+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	query = r.withSubOrders(query)
	if err := query.Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// MarkCaptured 标记订单已收款，仅在尚未收款时命中
func (r *GormOrderRepository) MarkCaptured(id uint, providerRef string, capturedAt time.Time) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_captured = ?", id, false).
		Updates(map[string]interface{}{
			"payment_captured": true,
			"provider_ref":     providerRef,
			"captured_at":      capturedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetSubOrderByID 根据 ID 获取子订单
func (r *GormOrderRepository) GetSubOrderByID(id uint) (*models.SubOrder, error) {
	var subOrder models.SubOrder
	if err := r.db.Preload("Items").Preload("Shop").First(&subOrder, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subOrder, nil
}

// GetSubOrderByOrderAndShop 获取订单内指定店铺的子订单
func (r *GormOrderRepository) GetSubOrderByOrderAndShop(orderID, shopID uint) (*models.SubOrder, error) {
	var subOrder models.SubOrder
	if err := r.db.Preload("Items").Preload("Shop").
		Where("order_id = ? AND shop_id = ?", orderID, shopID).
		First(&subOrder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subOrder, nil
}

// ListSubOrdersByOrder 获取订单下的全部子订单
func (r *GormOrderRepository) ListSubOrdersByOrder(orderID uint) ([]models.SubOrder, error) {
	var subOrders []models.SubOrder
	if orderID == 0 {
		return subOrders, nil
	}
	if err := r.db.Preload("Items").Preload("Shop").
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&subOrders).Error; err != nil {
		return nil, err
	}
	return subOrders, nil
}

// ListSubOrdersByShop 店铺维度的子订单列表
func (r *GormOrderRepository) ListSubOrdersByShop(filter SubOrderListFilter) ([]models.SubOrder, int64, error) {
	query := r.db.Model(&models.SubOrder{}).Where("shop_id = ?", filter.ShopID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var subOrders []models.SubOrder
	if err := query.Preload("Items").Preload("Shop").Order("id desc").Find(&subOrders).Error; err != nil {
		return nil, 0, err
	}
	return subOrders, total, nil
}

// UpdateSubOrderStatus 条件更新子订单状态，返回是否命中
func (r *GormOrderRepository) UpdateSubOrderStatus(id uint, fromStatus, toStatus string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	result := r.db.Model(&models.SubOrder{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LinkSubOrderAssignment 记录子订单对应的配送任务
func (r *GormOrderRepository) LinkSubOrderAssignment(id uint, assignmentID uint) error {
	return r.db.Model(&models.SubOrder{}).
		Where("id = ?", id).
		Update("assignment_id", assignmentID).Error
}

// BindSubOrderCourier 绑定接单骑手
func (r *GormOrderRepository) BindSubOrderCourier(id uint, courierID uint) error {
	return r.db.Model(&models.SubOrder{}).
		Where("id = ?", id).
		Update("courier_id", courierID).Error
}

// UnbindSubOrderCourier 解绑骑手（抢单补偿回滚）
func (r *GormOrderRepository) UnbindSubOrderCourier(id uint) error {
	return r.db.Model(&models.SubOrder{}).
		Where("id = ?", id).
		Update("courier_id", nil).Error
}

// UpdateSubOrderOTP 写入配送确认验证码
func (r *GormOrderRepository) UpdateSubOrderOTP(id uint, code string, issuedAt, expiresAt time.Time) error {
	return r.db.Model(&models.SubOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"otp_code":       code,
			"otp_issued_at":  issuedAt,
			"otp_expires_at": expiresAt,
		}).Error
}
