package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupOrderRepositoryTest(t *testing.T) (*GormOrderRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:order_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Shop{}, &models.Order{}, &models.SubOrder{}, &models.SubOrderItem{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewOrderRepository(db), db
}

func createOrderWithSubOrders(t *testing.T, repo *GormOrderRepository, userID uint) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:         fmt.Sprintf("WM%d", time.Now().UnixNano()),
		UserID:          userID,
		PaymentMethod:   constants.PaymentMethodCOD,
		TotalAmount:     models.NewMoneyFromDecimal(decimal.NewFromInt(60)),
		DeliveryAddress: "学院路 30 号",
	}
	subOrders := []models.SubOrder{
		{
			SubOrderNo: order.OrderNo + "-01",
			ShopID:     1,
			OwnerID:    11,
			Status:     constants.OrderStatusPending,
			Subtotal:   models.NewMoneyFromDecimal(decimal.NewFromInt(40)),
			Items: []models.SubOrderItem{
				{MenuItemID: 1, Name: "小面", UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromInt(20)), Quantity: 2, TotalPrice: models.NewMoneyFromDecimal(decimal.NewFromInt(40))},
			},
		},
		{
			SubOrderNo: order.OrderNo + "-02",
			ShopID:     2,
			OwnerID:    12,
			Status:     constants.OrderStatusPending,
			Subtotal:   models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		},
	}
	if err := repo.Create(order, subOrders); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	order.SubOrders = subOrders
	return order
}

func TestOrderCreateLinksSubOrders(t *testing.T) {
	repo, _ := setupOrderRepositoryTest(t)
	order := createOrderWithSubOrders(t, repo, 5)

	loaded, err := repo.GetByID(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if loaded == nil || len(loaded.SubOrders) != 2 {
		t.Fatalf("expected 2 sub-orders preloaded")
	}
	for _, sub := range loaded.SubOrders {
		if sub.OrderID != order.ID {
			t.Fatalf("sub-order %d not linked to order", sub.ID)
		}
	}
	if len(loaded.SubOrders[0].Items)+len(loaded.SubOrders[1].Items) != 1 {
		t.Fatalf("expected item rows preloaded")
	}
}

func TestMarkCapturedExactlyOnce(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	order := createOrderWithSubOrders(t, repo, 5)

	now := time.Now()
	ok, err := repo.MarkCaptured(order.ID, "T123", now)
	if err != nil {
		t.Fatalf("mark captured failed: %v", err)
	}
	if !ok {
		t.Fatalf("first capture should succeed")
	}

	ok, err = repo.MarkCaptured(order.ID, "T456", now)
	if err != nil {
		t.Fatalf("second capture errored: %v", err)
	}
	if ok {
		t.Fatalf("second capture must not succeed")
	}

	var stored models.Order
	if err := db.First(&stored, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if !stored.PaymentCaptured || stored.ProviderRef != "T123" {
		t.Fatalf("first provider ref must win, got %q", stored.ProviderRef)
	}
}

func TestUpdateSubOrderStatusConditional(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	order := createOrderWithSubOrders(t, repo, 5)
	subID := order.SubOrders[0].ID

	ok, err := repo.UpdateSubOrderStatus(subID, constants.OrderStatusPending, constants.OrderStatusPreparing, nil)
	if err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if !ok {
		t.Fatalf("matching precondition should update")
	}

	// 前置状态不匹配时不更新
	ok, err = repo.UpdateSubOrderStatus(subID, constants.OrderStatusPending, constants.OrderStatusOutForDelivery, nil)
	if err != nil {
		t.Fatalf("stale update errored: %v", err)
	}
	if ok {
		t.Fatalf("stale precondition must not update")
	}

	var stored models.SubOrder
	if err := db.First(&stored, subID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	if stored.Status != constants.OrderStatusPreparing {
		t.Fatalf("status = %s, want preparing", stored.Status)
	}

	// 附带字段随状态一起写入
	deliveredAt := time.Now()
	if _, err := repo.UpdateSubOrderStatus(subID, constants.OrderStatusPreparing, constants.OrderStatusOutForDelivery, nil); err != nil {
		t.Fatalf("to out_for_delivery failed: %v", err)
	}
	ok, err = repo.UpdateSubOrderStatus(subID, constants.OrderStatusOutForDelivery, constants.OrderStatusDelivered,
		map[string]interface{}{"delivered_at": deliveredAt})
	if err != nil || !ok {
		t.Fatalf("to delivered failed: ok=%v err=%v", ok, err)
	}
	if err := db.First(&stored, subID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	if stored.DeliveredAt == nil {
		t.Fatalf("delivered_at should be written with the status")
	}
}

func TestUpdateSubOrderOTP(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	order := createOrderWithSubOrders(t, repo, 5)
	subID := order.SubOrders[0].ID

	issuedAt := time.Now()
	expiresAt := issuedAt.Add(5 * time.Minute)
	if err := repo.UpdateSubOrderOTP(subID, "482913", issuedAt, expiresAt); err != nil {
		t.Fatalf("update otp failed: %v", err)
	}

	var stored models.SubOrder
	if err := db.First(&stored, subID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	if stored.OTPCode != "482913" || stored.OTPIssuedAt == nil || stored.OTPExpiresAt == nil {
		t.Fatalf("otp fields not persisted: %+v", stored)
	}
	if !stored.OTPValid(issuedAt.Add(time.Minute)) {
		t.Fatalf("otp should be valid within expiry")
	}
	if stored.OTPValid(expiresAt.Add(time.Second)) {
		t.Fatalf("otp should be invalid after expiry")
	}
}

func TestBindAndUnbindSubOrderCourier(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	order := createOrderWithSubOrders(t, repo, 5)
	subID := order.SubOrders[0].ID

	if err := repo.BindSubOrderCourier(subID, 77); err != nil {
		t.Fatalf("bind courier failed: %v", err)
	}
	var stored models.SubOrder
	if err := db.First(&stored, subID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	if stored.CourierID == nil || *stored.CourierID != 77 {
		t.Fatalf("courier not bound")
	}

	if err := repo.UnbindSubOrderCourier(subID); err != nil {
		t.Fatalf("unbind courier failed: %v", err)
	}
	if err := db.First(&stored, subID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	if stored.CourierID != nil {
		t.Fatalf("courier should be cleared")
	}
}

func TestListSubOrdersByShopFilters(t *testing.T) {
	repo, _ := setupOrderRepositoryTest(t)
	createOrderWithSubOrders(t, repo, 5)
	createOrderWithSubOrders(t, repo, 6)

	subs, total, err := repo.ListSubOrdersByShop(SubOrderListFilter{Page: 1, PageSize: 10, ShopID: 1})
	if err != nil {
		t.Fatalf("list by shop failed: %v", err)
	}
	if total != 2 || len(subs) != 2 {
		t.Fatalf("expected 2 sub-orders for shop 1, got total=%d rows=%d", total, len(subs))
	}
	for _, sub := range subs {
		if sub.ShopID != 1 {
			t.Fatalf("unexpected shop %d in result", sub.ShopID)
		}
	}

	subs, total, err = repo.ListSubOrdersByShop(SubOrderListFilter{Page: 1, PageSize: 10, ShopID: 1, Status: constants.OrderStatusDelivered})
	if err != nil {
		t.Fatalf("list by status failed: %v", err)
	}
	if total != 0 || len(subs) != 0 {
		t.Fatalf("expected no delivered sub-orders, got total=%d", total)
	}
}
