package repository

import (
	"errors"

	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"

	"gorm.io/gorm"
)

// ShopRepository 店铺数据访问接口
type ShopRepository interface {
	GetByID(id uint) (*models.Shop, error)
	GetByIDWithMenu(id uint) (*models.Shop, error)
	List(filter ShopListFilter) ([]models.Shop, int64, error)
	ListByIDs(ids []uint) ([]models.Shop, error)
	Update(shop *models.Shop) error
	ListMenuItems(ids []uint) ([]models.MenuItem, error)
	WithTx(tx *gorm.DB) *GormShopRepository
}

// GormShopRepository GORM 实现
type GormShopRepository struct {
	db *gorm.DB
}

// NewShopRepository 创建店铺仓库
func NewShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShopRepository) WithTx(tx *gorm.DB) *GormShopRepository {
	if tx == nil {
		return r
	}
	return &GormShopRepository{db: tx}
}

// GetByID 根据 ID 获取店铺
func (r *GormShopRepository) GetByID(id uint) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.First(&shop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

// GetByIDWithMenu 获取店铺及其菜单
func (r *GormShopRepository) GetByIDWithMenu(id uint) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.Preload("MenuItems").First(&shop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

// List 店铺列表
func (r *GormShopRepository) List(filter ShopListFilter) ([]models.Shop, int64, error) {
	query := r.db.Model(&models.Shop{})

	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}
	if filter.OnlyOpen {
		query = query.Where("status = ?", constants.ShopStatusOpen)
	}
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var shops []models.Shop
	if err := query.Order("id ASC").Find(&shops).Error; err != nil {
		return nil, 0, err
	}
	return shops, total, nil
}

// ListByIDs 批量获取店铺
func (r *GormShopRepository) ListByIDs(ids []uint) ([]models.Shop, error) {
	if len(ids) == 0 {
		return []models.Shop{}, nil
	}
	var shops []models.Shop
	if err := r.db.Where("id IN ?", ids).Find(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}

// Update 更新店铺
func (r *GormShopRepository) Update(shop *models.Shop) error {
	return r.db.Save(shop).Error
}

// ListMenuItems 跨店铺批量获取菜品，用于下单拆分
func (r *GormShopRepository) ListMenuItems(ids []uint) ([]models.MenuItem, error) {
	if len(ids) == 0 {
		return []models.MenuItem{}, nil
	}
	var items []models.MenuItem
	if err := r.db.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
