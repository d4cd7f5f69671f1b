package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/waimai-next/internal/config"
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type dispatchFixture struct {
	svc      *DispatchService
	db       *gorm.DB
	customer models.User
	owner    models.User
	shop     models.Shop
	order    models.Order
	subOrder models.SubOrder
}

func setupDispatchTest(t *testing.T) *dispatchFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:dispatch_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Shop{},
		&models.MenuItem{},
		&models.Order{},
		&models.SubOrder{},
		&models.SubOrderItem{},
		&models.Assignment{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	f := &dispatchFixture{db: db}
	f.svc = NewDispatchService(
		db,
		repository.NewOrderRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewUserRepository(db),
		nil,
		config.DispatchConfig{},
	)

	f.customer = models.User{Email: "customer@dispatch.local", Role: constants.RoleCustomer}
	f.owner = models.User{Email: "owner@dispatch.local", Role: constants.RoleShopOwner}
	for _, user := range []*models.User{&f.customer, &f.owner} {
		if err := db.Create(user).Error; err != nil {
			t.Fatalf("create user failed: %v", err)
		}
	}
	f.shop = models.Shop{OwnerID: f.owner.ID, Name: "面馆", Status: constants.ShopStatusOpen, Lat: 39.9900, Lon: 116.3500}
	if err := db.Create(&f.shop).Error; err != nil {
		t.Fatalf("create shop failed: %v", err)
	}
	f.order = models.Order{
		OrderNo:         fmt.Sprintf("WM%d", time.Now().UnixNano()),
		UserID:          f.customer.ID,
		PaymentMethod:   constants.PaymentMethodCOD,
		TotalAmount:     models.NewMoneyFromDecimal(decimal.NewFromInt(42)),
		DeliveryAddress: "学院路 30 号",
		DeliveryLat:     39.9920,
		DeliveryLon:     116.3550,
	}
	if err := db.Create(&f.order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	f.subOrder = models.SubOrder{
		SubOrderNo: f.order.OrderNo + "-01",
		OrderID:    f.order.ID,
		ShopID:     f.shop.ID,
		OwnerID:    f.owner.ID,
		Status:     constants.OrderStatusOutForDelivery,
		Subtotal:   models.NewMoneyFromDecimal(decimal.NewFromInt(42)),
	}
	if err := db.Create(&f.subOrder).Error; err != nil {
		t.Fatalf("create sub-order failed: %v", err)
	}
	return f
}

// createCourier 在距收货地址 latOffset 度（纬度方向）处创建一名在班骑手
func (f *dispatchFixture) createCourier(t *testing.T, email string, latOffset float64, onShift bool) models.User {
	t.Helper()
	lat := f.order.DeliveryLat + latOffset
	lon := f.order.DeliveryLon
	now := time.Now()
	courier := models.User{
		Email:     email,
		Role:      constants.RoleCourier,
		OnShift:   onShift,
		Lat:       &lat,
		Lon:       &lon,
		LocatedAt: &now,
	}
	if err := f.db.Create(&courier).Error; err != nil {
		t.Fatalf("create courier failed: %v", err)
	}
	return courier
}

func (f *dispatchFixture) loadAssignment(t *testing.T) *models.Assignment {
	t.Helper()
	var assignment models.Assignment
	if err := f.db.Where("sub_order_id = ?", f.subOrder.ID).First(&assignment).Error; err != nil {
		t.Fatalf("load assignment failed: %v", err)
	}
	return &assignment
}

func TestBroadcastSubOrderFiltersByRadius(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	// 纬度 1 度约 111km：0.018≈2km、0.036≈4km、0.072≈8km
	near := f.createCourier(t, "near@dispatch.local", 0.018, true)
	mid := f.createCourier(t, "mid@dispatch.local", 0.036, true)
	far := f.createCourier(t, "far@dispatch.local", 0.072, true)
	offShift := f.createCourier(t, "off@dispatch.local", 0.018, false)

	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	assignment := f.loadAssignment(t)
	if assignment.Status != constants.AssignmentStatusBroadcasted {
		t.Fatalf("assignment status = %s, want broadcasted", assignment.Status)
	}
	if !repository.BroadcastContains(assignment.BroadcastTo, near.ID) {
		t.Fatalf("courier at 2km should be in broadcast list")
	}
	if !repository.BroadcastContains(assignment.BroadcastTo, mid.ID) {
		t.Fatalf("courier at 4km should be in broadcast list")
	}
	if repository.BroadcastContains(assignment.BroadcastTo, far.ID) {
		t.Fatalf("courier at 8km should be outside the 5km radius")
	}
	if repository.BroadcastContains(assignment.BroadcastTo, offShift.ID) {
		t.Fatalf("off-shift courier should be excluded")
	}

	var stored models.SubOrder
	if err := f.db.First(&stored, f.subOrder.ID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	if stored.AssignmentID == nil || *stored.AssignmentID != assignment.ID {
		t.Fatalf("sub-order should link the assignment")
	}
}

func TestBroadcastCentersOnDeliveryAddress(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	// 店铺搬远到距收货地址约 9.4km 处，骑手在收货地址旁 0.55km
	if err := f.db.Model(&models.Shop{}).Where("id = ?", f.shop.ID).
		Update("lat", f.order.DeliveryLat+0.085).Error; err != nil {
		t.Fatalf("move shop failed: %v", err)
	}
	nearby := f.createCourier(t, "doorstep@dispatch.local", 0.005, true)

	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	assignment := f.loadAssignment(t)
	if !repository.BroadcastContains(assignment.BroadcastTo, nearby.ID) {
		t.Fatalf("courier near the delivery address should be offered the assignment even when the shop is far")
	}
}

func TestBroadcastSubOrderStalePositionExcluded(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	stale := f.createCourier(t, "stale@dispatch.local", 0.018, true)
	old := time.Now().Add(-time.Hour)
	if err := f.db.Model(&models.User{}).Where("id = ?", stale.ID).Update("located_at", old).Error; err != nil {
		t.Fatalf("age position failed: %v", err)
	}

	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	assignment := f.loadAssignment(t)
	if len(assignment.BroadcastTo) != 0 {
		t.Fatalf("stale-position courier should be excluded, got %v", assignment.BroadcastTo)
	}
}

func TestBroadcastSubOrderEmptyCandidatesStillPersists(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast with no couriers should not fail: %v", err)
	}
	assignment := f.loadAssignment(t)
	if assignment.Status != constants.AssignmentStatusBroadcasted {
		t.Fatalf("assignment status = %s, want broadcasted", assignment.Status)
	}
	if len(assignment.BroadcastTo) != 0 {
		t.Fatalf("expected empty broadcast list, got %v", assignment.BroadcastTo)
	}
}

func TestBroadcastSubOrderRequiresOutForDelivery(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	if err := f.db.Model(&models.SubOrder{}).Where("id = ?", f.subOrder.ID).
		Update("status", constants.OrderStatusPreparing).Error; err != nil {
		t.Fatalf("set status failed: %v", err)
	}
	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != ErrOrderStatusInvalid {
		t.Fatalf("expected ErrOrderStatusInvalid, got %v", err)
	}
	if err := f.svc.BroadcastSubOrder(ctx, 99999); err != ErrSubOrderNotFound {
		t.Fatalf("expected ErrSubOrderNotFound, got %v", err)
	}
}

func TestAcceptAssignmentClaimRace(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	first := f.createCourier(t, "first@dispatch.local", 0.018, true)
	second := f.createCourier(t, "second@dispatch.local", 0.020, true)
	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	assignment := f.loadAssignment(t)

	claimed, err := f.svc.AcceptAssignment(ctx, first.ID, assignment.ID)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if claimed.Status != constants.AssignmentStatusAssigned {
		t.Fatalf("claimed status = %s, want assigned", claimed.Status)
	}
	if claimed.CourierID == nil || *claimed.CourierID != first.ID {
		t.Fatalf("claimed courier mismatch")
	}
	if claimed.ClaimedAt == nil {
		t.Fatalf("claimed_at should be set")
	}

	var stored models.SubOrder
	if err := f.db.First(&stored, f.subOrder.ID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	if stored.CourierID == nil || *stored.CourierID != first.ID {
		t.Fatalf("sub-order should bind the winning courier")
	}

	// 后到者拿到冲突
	if _, err := f.svc.AcceptAssignment(ctx, second.ID, assignment.ID); err != ErrAssignmentConflict {
		t.Fatalf("expected ErrAssignmentConflict, got %v", err)
	}
}

func TestAcceptAssignmentVanishedSubOrderRollsBack(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	courier := f.createCourier(t, "rollback@dispatch.local", 0.005, true)
	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	assignment := f.loadAssignment(t)

	// 广播后子订单被删除（如订单取消）
	if err := f.db.Delete(&models.SubOrder{}, f.subOrder.ID).Error; err != nil {
		t.Fatalf("delete sub-order failed: %v", err)
	}
	if _, err := f.svc.AcceptAssignment(ctx, courier.ID, assignment.ID); err != ErrSubOrderNotFound {
		t.Fatalf("expected ErrSubOrderNotFound, got %v", err)
	}

	// 抢单已回滚，任务回到广播态
	rolled := f.loadAssignment(t)
	if rolled.Status != constants.AssignmentStatusBroadcasted {
		t.Fatalf("assignment status = %s, want broadcasted after rollback", rolled.Status)
	}
	if rolled.CourierID != nil {
		t.Fatalf("courier binding should be cleared after rollback")
	}

	// 子订单恢复后可以再次抢单
	if err := f.db.Unscoped().Model(&models.SubOrder{}).Where("id = ?", f.subOrder.ID).
		Update("deleted_at", nil).Error; err != nil {
		t.Fatalf("restore sub-order failed: %v", err)
	}
	claimed, err := f.svc.AcceptAssignment(ctx, courier.ID, assignment.ID)
	if err != nil {
		t.Fatalf("re-claim failed: %v", err)
	}
	if claimed.Status != constants.AssignmentStatusAssigned {
		t.Fatalf("re-claim status = %s, want assigned", claimed.Status)
	}
}

func TestAcceptAssignmentGuards(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	inside := f.createCourier(t, "inside@dispatch.local", 0.018, true)
	outside := f.createCourier(t, "outside@dispatch.local", 0.072, true)
	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	assignment := f.loadAssignment(t)

	// 不在广播名单内
	if _, err := f.svc.AcceptAssignment(ctx, outside.ID, assignment.ID); err != ErrAssignmentNotOffered {
		t.Fatalf("expected ErrAssignmentNotOffered, got %v", err)
	}

	// 下班骑手
	if err := f.db.Model(&models.User{}).Where("id = ?", inside.ID).Update("on_shift", false).Error; err != nil {
		t.Fatalf("set off shift failed: %v", err)
	}
	if _, err := f.svc.AcceptAssignment(ctx, inside.ID, assignment.ID); err != ErrCourierOffShift {
		t.Fatalf("expected ErrCourierOffShift, got %v", err)
	}
	if err := f.db.Model(&models.User{}).Where("id = ?", inside.ID).Update("on_shift", true).Error; err != nil {
		t.Fatalf("set on shift failed: %v", err)
	}

	// 非骑手
	if _, err := f.svc.AcceptAssignment(ctx, f.customer.ID, assignment.ID); err != ErrAssignmentNotFound {
		t.Fatalf("expected ErrAssignmentNotFound for non-courier, got %v", err)
	}

	// 手上已有任务
	busyHold := models.Assignment{
		OrderID:    f.order.ID,
		ShopID:     f.shop.ID,
		SubOrderID: f.subOrder.ID + 1000,
		CourierID:  &inside.ID,
		Status:     constants.AssignmentStatusAssigned,
	}
	if err := f.db.Create(&busyHold).Error; err != nil {
		t.Fatalf("create busy hold failed: %v", err)
	}
	if _, err := f.svc.AcceptAssignment(ctx, inside.ID, assignment.ID); err != ErrCourierBusy {
		t.Fatalf("expected ErrCourierBusy, got %v", err)
	}
}

func TestNewAssignmentPayloadIsSelfContained(t *testing.T) {
	f := setupDispatchTest(t)

	sub := f.subOrder
	sub.Shop = &f.shop
	sub.Items = []models.SubOrderItem{
		{MenuItemID: 1, Name: "小面", Quantity: 2},
		{MenuItemID: 2, Name: "豆浆", Quantity: 1},
	}
	assignment := models.Assignment{ID: 7, SubOrderID: sub.ID}

	payload := newAssignmentPayload(&assignment, &sub, &f.order)
	if payload["assignment_id"] != assignment.ID || payload["sub_order_no"] != sub.SubOrderNo {
		t.Fatalf("payload identity mismatch: %v", payload)
	}
	if payload["delivery_address"] != f.order.DeliveryAddress {
		t.Fatalf("payload should carry the delivery address")
	}
	if payload["delivery_lat"] != f.order.DeliveryLat || payload["delivery_lon"] != f.order.DeliveryLon {
		t.Fatalf("payload should carry the delivery coordinates")
	}
	subtotal, ok := payload["subtotal"].(models.Money)
	if !ok || !subtotal.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("payload subtotal = %v, want 42", payload["subtotal"])
	}
	items, ok := payload["items"].([]map[string]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("payload items = %v, want 2 entries", payload["items"])
	}
	if items[0]["name"] != "小面" || items[0]["quantity"] != 2 {
		t.Fatalf("first item = %v, want 小面 x2", items[0])
	}
	if payload["shop_name"] != f.shop.Name {
		t.Fatalf("payload should carry the shop name")
	}
}

func TestRebroadcastRefreshesCandidates(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	assignment := f.loadAssignment(t)
	if len(assignment.BroadcastTo) != 0 {
		t.Fatalf("expected empty initial broadcast list")
	}

	// 新骑手上线后改派
	late := f.createCourier(t, "late@dispatch.local", 0.018, true)
	if err := f.svc.Rebroadcast(ctx, f.owner.ID, f.order.ID, f.shop.ID); err != nil {
		t.Fatalf("rebroadcast failed: %v", err)
	}
	assignment = f.loadAssignment(t)
	if !repository.BroadcastContains(assignment.BroadcastTo, late.ID) {
		t.Fatalf("late courier should be picked up by rebroadcast")
	}

	// 非店主不能改派
	if err := f.svc.Rebroadcast(ctx, f.customer.ID, f.order.ID, f.shop.ID); err != ErrNotShopOwner {
		t.Fatalf("expected ErrNotShopOwner, got %v", err)
	}

	// 已被接单的任务不能改派
	if _, err := f.svc.AcceptAssignment(ctx, late.ID, assignment.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := f.svc.Rebroadcast(ctx, f.owner.ID, f.order.ID, f.shop.ID); err != ErrAssignmentConflict {
		t.Fatalf("expected ErrAssignmentConflict, got %v", err)
	}
}

func TestCurrentAssignmentView(t *testing.T) {
	f := setupDispatchTest(t)
	ctx := context.Background()

	courier := f.createCourier(t, "rider@dispatch.local", 0.018, true)
	if _, err := f.svc.CurrentAssignment(courier.ID); err != ErrAssignmentNotFound {
		t.Fatalf("expected ErrAssignmentNotFound before claim, got %v", err)
	}

	if err := f.svc.BroadcastSubOrder(ctx, f.subOrder.ID); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	assignment := f.loadAssignment(t)

	open, err := f.svc.ListOpenAssignments(courier.ID)
	if err != nil {
		t.Fatalf("list open failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != assignment.ID {
		t.Fatalf("expected the broadcasted assignment in open list, got %v", open)
	}

	if _, err := f.svc.AcceptAssignment(ctx, courier.ID, assignment.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	view, err := f.svc.CurrentAssignment(courier.ID)
	if err != nil {
		t.Fatalf("current assignment failed: %v", err)
	}
	if view.Status != constants.AssignmentStatusAssigned {
		t.Fatalf("view status = %s, want assigned", view.Status)
	}
	if view.DeliveryAddress != f.order.DeliveryAddress {
		t.Fatalf("view delivery address mismatch")
	}
	// 货到付款未结清时带代收金额
	if !view.CollectAmount.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("collect amount = %s, want 42", view.CollectAmount.String())
	}
}
