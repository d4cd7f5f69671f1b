package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/waimai-next/internal/config"
	"github.com/waimai-next/internal/constants"
	"github.com/waimai-next/internal/models"
	"github.com/waimai-next/internal/realtime"
	"github.com/waimai-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type deliveryFixture struct {
	svc        *DeliveryService
	db         *gorm.DB
	customer   models.User
	courier    models.User
	order      models.Order
	subOrder   models.SubOrder
	assignment models.Assignment
}

func setupDeliveryTest(t *testing.T, email *EmailService) *deliveryFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:delivery_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Shop{},
		&models.Order{},
		&models.SubOrder{},
		&models.SubOrderItem{},
		&models.Assignment{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	f := &deliveryFixture{db: db}
	f.svc = NewDeliveryService(
		db,
		repository.NewOrderRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewUserRepository(db),
		nil,
		email,
		nil,
		config.DeliveryConfig{},
	)

	f.customer = models.User{Email: "customer@delivery.local", Role: constants.RoleCustomer, Locale: "zh-CN"}
	f.courier = models.User{Email: "courier@delivery.local", Role: constants.RoleCourier, OnShift: true}
	for _, user := range []*models.User{&f.customer, &f.courier} {
		if err := db.Create(user).Error; err != nil {
			t.Fatalf("create user failed: %v", err)
		}
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
		ShopID:     1,
		OwnerID:    1,
		Status:     constants.OrderStatusOutForDelivery,
		CourierID:  &f.courier.ID,
		Subtotal:   models.NewMoneyFromDecimal(decimal.NewFromInt(42)),
	}
	if err := db.Create(&f.subOrder).Error; err != nil {
		t.Fatalf("create sub-order failed: %v", err)
	}
	claimedAt := time.Now()
	f.assignment = models.Assignment{
		OrderID:    f.order.ID,
		ShopID:     f.subOrder.ShopID,
		SubOrderID: f.subOrder.ID,
		CourierID:  &f.courier.ID,
		Status:     constants.AssignmentStatusAssigned,
		ClaimedAt:  &claimedAt,
	}
	if err := db.Create(&f.assignment).Error; err != nil {
		t.Fatalf("create assignment failed: %v", err)
	}
	return f
}

func (f *deliveryFixture) storedSubOrder(t *testing.T) models.SubOrder {
	t.Helper()
	var stored models.SubOrder
	if err := f.db.First(&stored, f.subOrder.ID).Error; err != nil {
		t.Fatalf("load sub-order failed: %v", err)
	}
	return stored
}

func TestSendOTPIssuesAndPersistsCode(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	result, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID)
	if err != nil {
		t.Fatalf("send otp failed: %v", err)
	}
	if result.ExpiresAt.Before(time.Now().Add(4 * time.Minute)) {
		t.Fatalf("expiry too close: %v", result.ExpiresAt)
	}

	stored := f.storedSubOrder(t)
	if len(stored.OTPCode) != constants.OTPLength {
		t.Fatalf("otp code length = %d, want %d", len(stored.OTPCode), constants.OTPLength)
	}
	for _, r := range stored.OTPCode {
		if r < '0' || r > '9' {
			t.Fatalf("otp code should be numeric, got %q", stored.OTPCode)
		}
	}
	if stored.OTPIssuedAt == nil || stored.OTPExpiresAt == nil {
		t.Fatalf("otp timestamps should be set")
	}
}

func TestSendOTPCooldown(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	_, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID)
	if err == nil {
		t.Fatalf("second send should hit cooldown")
	}
	var cooldown *OTPCooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected OTPCooldownError, got %v", err)
	}
	if cooldown.WaitSeconds <= 0 || cooldown.WaitSeconds > 60 {
		t.Fatalf("wait seconds = %d, want within (0, 60]", cooldown.WaitSeconds)
	}
	if !errors.Is(err, ErrOTPRateLimited) {
		t.Fatalf("cooldown error should match ErrOTPRateLimited")
	}
}

func TestSendOTPResendAfterCooldownWindow(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	first := f.storedSubOrder(t)

	// 剩余有效期压到阈值以下后放行重发
	soon := time.Now().Add(3 * time.Minute)
	if err := f.db.Model(&models.SubOrder{}).Where("id = ?", f.subOrder.ID).
		Update("otp_expires_at", soon).Error; err != nil {
		t.Fatalf("shrink expiry failed: %v", err)
	}
	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	second := f.storedSubOrder(t)
	if second.OTPExpiresAt.Equal(*first.OTPExpiresAt) {
		t.Fatalf("resend should refresh expiry")
	}
}

func TestSendOTPGuards(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	stranger := models.User{Email: "other@delivery.local", Role: constants.RoleCourier, OnShift: true}
	if err := f.db.Create(&stranger).Error; err != nil {
		t.Fatalf("create courier failed: %v", err)
	}
	if _, err := f.svc.SendOTP(ctx, stranger.ID, f.assignment.ID); err != ErrNotAssignedCourier {
		t.Fatalf("expected ErrNotAssignedCourier, got %v", err)
	}
	if _, err := f.svc.SendOTP(ctx, f.courier.ID, 99999); err != ErrAssignmentNotFound {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestSendOTPEmailFailureKeepsCode(t *testing.T) {
	// 启用但缺 SMTP 配置的邮件服务：发送必然失败
	email := NewEmailService(&config.EmailConfig{Enabled: true})
	f := setupDeliveryTest(t, email)
	ctx := context.Background()

	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != ErrOTPEmailSendFailed {
		t.Fatalf("expected ErrOTPEmailSendFailed, got %v", err)
	}
	stored := f.storedSubOrder(t)
	if stored.OTPCode == "" {
		t.Fatalf("code should stay persisted after email failure")
	}
}

func TestVerifyOTPDeliversAndSettlesCOD(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != nil {
		t.Fatalf("send otp failed: %v", err)
	}
	code := f.storedSubOrder(t).OTPCode

	wrong := []byte(code)
	wrong[0] = '0' + (wrong[0]-'0'+1)%10
	if _, err := f.svc.VerifyOTP(ctx, f.courier.ID, f.assignment.ID, string(wrong)); err != ErrOTPInvalid {
		t.Fatalf("expected ErrOTPInvalid for wrong code, got %v", err)
	}

	sub, err := f.svc.VerifyOTP(ctx, f.courier.ID, f.assignment.ID, code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if sub.Status != constants.OrderStatusDelivered {
		t.Fatalf("status = %s, want delivered", sub.Status)
	}

	stored := f.storedSubOrder(t)
	if stored.Status != constants.OrderStatusDelivered || stored.DeliveredAt == nil {
		t.Fatalf("stored sub-order not delivered: %+v", stored)
	}
	if stored.OTPCode != "" || stored.OTPIssuedAt != nil || stored.OTPExpiresAt != nil {
		t.Fatalf("otp fields should be cleared after verification")
	}

	// 配送任务已删除
	var count int64
	if err := f.db.Model(&models.Assignment{}).Where("id = ?", f.assignment.ID).Count(&count).Error; err != nil {
		t.Fatalf("count assignments failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("assignment should be deleted after delivery")
	}

	// 货到付款：全部子订单送达后标记收款
	var order models.Order
	if err := f.db.First(&order, f.order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if !order.PaymentCaptured || order.ProviderRef != constants.PaymentMethodCOD {
		t.Fatalf("cod order should be captured, got captured=%v ref=%q", order.PaymentCaptured, order.ProviderRef)
	}
	if order.CapturedAt == nil {
		t.Fatalf("captured_at should be set")
	}

	// 送达后不能再核销
	if _, err := f.svc.VerifyOTP(ctx, f.courier.ID, f.assignment.ID, code); err != ErrNotAssignedCourier && err != ErrAssignmentNotFound {
		t.Fatalf("expected assignment gone after delivery, got %v", err)
	}
}

func TestVerifyOTPNotIssuedAndExpired(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	if _, err := f.svc.VerifyOTP(ctx, f.courier.ID, f.assignment.ID, "123456"); err != ErrOTPNotIssued {
		t.Fatalf("expected ErrOTPNotIssued, got %v", err)
	}

	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != nil {
		t.Fatalf("send otp failed: %v", err)
	}
	code := f.storedSubOrder(t).OTPCode

	expired := time.Now().Add(-time.Minute)
	if err := f.db.Model(&models.SubOrder{}).Where("id = ?", f.subOrder.ID).
		Update("otp_expires_at", expired).Error; err != nil {
		t.Fatalf("expire otp failed: %v", err)
	}
	if _, err := f.svc.VerifyOTP(ctx, f.courier.ID, f.assignment.ID, code); err != ErrOTPExpired {
		t.Fatalf("expected ErrOTPExpired for expired code, got %v", err)
	}

	stored := f.storedSubOrder(t)
	if stored.Status != constants.OrderStatusOutForDelivery {
		t.Fatalf("expired verification must not change status, got %s", stored.Status)
	}
}

// subscribeHub 以 WebSocket 客户端身份订阅主题，返回可读取推送的连接
func subscribeHub(t *testing.T, hub *realtime.Hub, subject string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Subscribe(subject, conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial hub failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(subject) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.SubscriberCount(subject) == 0 {
		t.Fatalf("subscription for %s never registered", subject)
	}
	return client
}

func readHubEvent(t *testing.T, conn *websocket.Conn) realtime.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event failed: %v", err)
	}
	var event realtime.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("unmarshal event failed: %v", err)
	}
	return event
}

func TestVerifyOTPNotifiesCustomerAndOwner(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	// 店主与顾客 ID 错开，便于分辨两个主题
	ownerID := uint(77)
	if err := f.db.Model(&models.SubOrder{}).Where("id = ?", f.subOrder.ID).
		Update("owner_id", ownerID).Error; err != nil {
		t.Fatalf("set owner failed: %v", err)
	}

	hub := realtime.NewHub()
	f.svc.hub = hub
	customerConn := subscribeHub(t, hub, realtime.UserSubject(f.customer.ID))
	ownerConn := subscribeHub(t, hub, realtime.UserSubject(ownerID))

	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != nil {
		t.Fatalf("send otp failed: %v", err)
	}
	code := f.storedSubOrder(t).OTPCode
	if _, err := f.svc.VerifyOTP(ctx, f.courier.ID, f.assignment.ID, code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	for _, conn := range []*websocket.Conn{customerConn, ownerConn} {
		event := readHubEvent(t, conn)
		if event.Type != constants.EventStatusUpdate {
			t.Fatalf("event type = %s, want %s", event.Type, constants.EventStatusUpdate)
		}
		data, ok := event.Data.(map[string]interface{})
		if !ok {
			t.Fatalf("event data = %T, want object", event.Data)
		}
		if data["status"] != constants.OrderStatusDelivered {
			t.Fatalf("event status = %v, want delivered", data["status"])
		}
	}
}

func TestVerifyOTPCODNotCapturedUntilAllDelivered(t *testing.T) {
	f := setupDeliveryTest(t, nil)
	ctx := context.Background()

	// 同一订单的另一家店铺还在备餐
	sibling := models.SubOrder{
		SubOrderNo: f.order.OrderNo + "-02",
		OrderID:    f.order.ID,
		ShopID:     2,
		OwnerID:    2,
		Status:     constants.OrderStatusPreparing,
		Subtotal:   models.NewMoneyFromDecimal(decimal.NewFromInt(30)),
	}
	if err := f.db.Create(&sibling).Error; err != nil {
		t.Fatalf("create sibling failed: %v", err)
	}

	if _, err := f.svc.SendOTP(ctx, f.courier.ID, f.assignment.ID); err != nil {
		t.Fatalf("send otp failed: %v", err)
	}
	code := f.storedSubOrder(t).OTPCode
	if _, err := f.svc.VerifyOTP(ctx, f.courier.ID, f.assignment.ID, code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	var order models.Order
	if err := f.db.First(&order, f.order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if order.PaymentCaptured {
		t.Fatalf("cod must not capture while a sibling sub-order is undelivered")
	}
}
