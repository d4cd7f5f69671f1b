package service

import (
	"context"
	"fmt"
	"time"

	"github.com/waimai-next/internal/cache"
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/logger"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/repository"
)

// 菜单缓存短 TTL，店主改状态时主动失效
const shopMenuCacheTTL = 2 * time.Minute

// ShopService 店铺服务
type ShopService struct {
	shopRepo repository.ShopRepository
}

// NewShopService 创建店铺服务
func NewShopService(shopRepo repository.ShopRepository) *ShopService {
	return &ShopService{shopRepo: shopRepo}
}

// ListShops 店铺列表
func (s *ShopService) ListShops(filter repository.ShopListFilter) ([]models.Shop, int64, error) {
	return s.shopRepo.List(filter)
}

// GetShopWithMenu 店铺详情与菜单，带旁路缓存
func (s *ShopService) GetShopWithMenu(ctx context.Context, shopID uint) (*models.Shop, error) {
	cacheKey := shopMenuCacheKey(shopID)
	var cached models.Shop
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		logger.Warnw("shop_menu_cache_read_failed", "shop_id", shopID, "error", err)
	} else if hit {
		return &cached, nil
	}

	shop, err := s.shopRepo.GetByIDWithMenu(shopID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, ErrShopNotFound
	}
	if err := cache.SetJSON(ctx, cacheKey, shop, shopMenuCacheTTL); err != nil {
		logger.Warnw("shop_menu_cache_write_failed", "shop_id", shopID, "error", err)
	}
	return shop, nil
}

// SetShopStatus 店主设置店铺营业状态
func (s *ShopService) SetShopStatus(ctx context.Context, ownerID, shopID uint, status string) (*models.Shop, error) {
	if status != constants.ShopStatusOpen && status != constants.ShopStatusClosed {
		return nil, ErrShopStatusInvalid
	}
	shop, err := s.shopRepo.GetByID(shopID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, ErrShopNotFound
	}
	if shop.OwnerID != ownerID {
		return nil, ErrNotShopOwner
	}
	if shop.Status == status {
		return shop, nil
	}
	shop.Status = status
	if err := s.shopRepo.Update(shop); err != nil {
		return nil, err
	}
	if err := cache.Del(ctx, shopMenuCacheKey(shopID)); err != nil {
		logger.Warnw("shop_menu_cache_invalidate_failed", "shop_id", shopID, "error", err)
	}
	logger.Infow("shop_status_changed", "shop_id", shopID, "owner_id", ownerID, "status", status)
	return shop, nil
}

func shopMenuCacheKey(shopID uint) string {
	return fmt.Sprintf("shop:menu:%d", shopID)
}
