package main

import (
	"github.com/waimai-next/internal/logger"

	"github.com/waimai-next/internal/config"
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加示例用户（顾客 / 店主 / 骑手）
	users := []models.User{
		{
			Email:       "customer@example.com",
			DisplayName: "测试顾客",
			Role:        constants.RoleCustomer,
			Locale:      "zh-CN",
			Phone:       "13800000001",
			Address:     "海淀区中关村大街 27 号",
		},
		{
			Email:       "owner@example.com",
			DisplayName: "测试店主",
			Role:        constants.RoleShopOwner,
			Locale:      "zh-CN",
			Phone:       "13800000002",
		},
		{
			Email:       "owner2@example.com",
			DisplayName: "测试店主二",
			Role:        constants.RoleShopOwner,
			Locale:      "zh-CN",
			Phone:       "13800000003",
		},
		{
			Email:       "courier@example.com",
			DisplayName: "测试骑手",
			Role:        constants.RoleCourier,
			Locale:      "zh-CN",
			Phone:       "13800000004",
			OnShift:     true,
		},
	}

	byEmail := make(map[string]*models.User)
	for i := range users {
		user := &users[i]
		var existing models.User
		if err := models.DB.Where("email = ?", user.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(user).Error; err != nil {
				stdLog.Fatalf("Failed to create user %s: %v", user.Email, err)
			}
			stdLog.Printf("Created user: %s (%s)", user.Email, user.Role)
		} else {
			*user = existing
			stdLog.Printf("User already exists: %s", user.Email)
		}
		byEmail[user.Email] = user
	}

	// 添加示例店铺与菜单
	shops := []struct {
		shop  models.Shop
		items []models.MenuItem
	}{
		{
			shop: models.Shop{
				OwnerID: byEmail["owner@example.com"].ID,
				Name:    "张记小面",
				Status:  constants.ShopStatusOpen,
				Address: "海淀区学院路 30 号",
				Lat:     39.9910,
				Lon:     116.3530,
			},
			items: []models.MenuItem{
				{Name: "重庆小面", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(18.00)), Available: true},
				{Name: "豌杂面", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(22.00)), Available: true},
				{Name: "冰豆浆", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(6.00)), Available: true},
			},
		},
		{
			shop: models.Shop{
				OwnerID: byEmail["owner2@example.com"].ID,
				Name:    "老王烧烤",
				Status:  constants.ShopStatusOpen,
				Address: "海淀区成府路 45 号",
				Lat:     39.9935,
				Lon:     116.3610,
			},
			items: []models.MenuItem{
				{Name: "羊肉串（10 串）", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(30.00)), Available: true},
				{Name: "烤茄子", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(12.00)), Available: true},
				{Name: "烤冷面", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(10.00)), Available: false},
			},
		},
	}

	for _, entry := range shops {
		shop := entry.shop
		var existing models.Shop
		if err := models.DB.Where("name = ? AND owner_id = ?", shop.Name, shop.OwnerID).First(&existing).Error; err != nil {
			if err := models.DB.Create(&shop).Error; err != nil {
				stdLog.Printf("Failed to create shop %s: %v", shop.Name, err)
				continue
			}
			stdLog.Printf("Created shop: %s", shop.Name)
		} else {
			shop = existing
			stdLog.Printf("Shop already exists: %s", shop.Name)
		}

		for _, item := range entry.items {
			item.ShopID = shop.ID
			var existingItem models.MenuItem
			if err := models.DB.Where("shop_id = ? AND name = ?", item.ShopID, item.Name).First(&existingItem).Error; err != nil {
				if err := models.DB.Create(&item).Error; err != nil {
					stdLog.Printf("Failed to create menu item %s: %v", item.Name, err)
				} else {
					stdLog.Printf("Created menu item: %s / %s", shop.Name, item.Name)
				}
			} else {
				stdLog.Printf("Menu item already exists: %s / %s", shop.Name, item.Name)
			}
		}
	}

	// 打印开发用 Token，便于本地调试接口
	for _, email := range []string{"customer@example.com", "owner@example.com", "owner2@example.com", "courier@example.com"} {
		user := byEmail[email]
		token, err := service.IssueUserToken(cfg.JWT.SecretKey, user, cfg.JWT.ExpireHours)
		if err != nil {
			stdLog.Printf("Failed to issue token for %s: %v", email, err)
			continue
		}
		stdLog.Printf("Dev token (%s / %s): %s", user.Role, email, token)
	}

	stdLog.Println("Seed completed!")
}
